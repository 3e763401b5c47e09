package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string, retries int) *Client {
	return NewClient(Config{
		BaseURL:      url + "/",
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		BreakerName:  fmt.Sprintf("test-%d", time.Now().UnixNano()),
	})
}

func TestListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/productos", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"id_producto": 1, "nombre": "Antipulgas", "precio": 25.5, "stock": 2},
			{"id_producto": 2, "nombre": "Collar", "precio": "10.00", "stock": 0}
		]`))
	}))
	defer server.Close()

	items, err := testClient(server.URL, 0).ListProducts(context.Background(), "tok")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "Antipulgas", items[0].Name)
	assert.True(t, decimal.RequireFromString("25.50").Equal(items[0].UnitPrice))
	assert.Equal(t, 2, items[0].AvailableQuantity)
	assert.True(t, decimal.RequireFromString("10").Equal(items[1].UnitPrice))
}

func TestListClients_DocumentFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/clientes", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id_cliente": 7, "nombre": "Ana", "apellido": "Quispe", "dni": "45678912", "telefono": 987654321},
			{"id_cliente": 8, "nombre": "Luis", "apellido": "Ramos", "documento": "20123456789", "direccion": "Jr. Lima 1"}
		]`))
	}))
	defer server.Close()

	clients, err := testClient(server.URL, 0).ListClients(context.Background(), "tok")

	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "45678912", clients[0].DocumentID)
	assert.Equal(t, "987654321", clients[0].Phone)
	assert.Equal(t, "20123456789", clients[1].DocumentID)
	assert.Equal(t, "RUC", clients[1].DocumentKind())
	assert.Equal(t, "Jr. Lima 1", clients[1].Address)
}

func TestSubmitSale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/ventas", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["id_tipo_comprobante"])
		assert.EqualValues(t, 7, body["id_cliente"])
		detail := body["detalle"].([]any)
		require.Len(t, detail, 1)
		line := detail[0].(map[string]any)
		assert.EqualValues(t, 1, line["id_producto"])
		assert.EqualValues(t, 2, line["cantidad"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id_venta": 42, "fecha": "2026-03-14T09:30:00"}`))
	}))
	defer server.Close()

	conf, err := testClient(server.URL, 2).SubmitSale(context.Background(), "tok", models.SaleRequest{
		ClientID:    7,
		ReceiptType: models.ReceiptFactura,
		Lines:       []models.SaleRequestLine{{ItemID: 1, Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), conf.SaleID)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), conf.Timestamp)
}

func TestSubmitSale_AlternateIDFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"id", `{"id": 42}`},
		{"nested data", `{"data": {"id_venta": 42}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			conf, err := testClient(server.URL, 0).SubmitSale(context.Background(), "tok", models.SaleRequest{})

			require.NoError(t, err)
			assert.Equal(t, int64(42), conf.SaleID)
			assert.True(t, conf.Timestamp.IsZero())
		})
	}
}

func TestSubmitSale_NotRetriedOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message": "database unavailable"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL, 3).SubmitSale(context.Background(), "tok", models.SaleRequest{})

	assert.ErrorIs(t, err, apperrors.ErrServer)
	assert.Equal(t, "database unavailable", apperrors.Message(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSubmitSale_TimeoutIsAmbiguous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id_venta": 1}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond, BreakerName: "test-timeout"})
	_, err := c.SubmitSale(context.Background(), "tok", models.SaleRequest{})

	assert.ErrorIs(t, err, apperrors.ErrServer)
	assert.Equal(t, "SALE_OUTCOME_UNKNOWN", apperrors.Code(err))
}

func TestGet_RetriesOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	items, err := testClient(server.URL, 2).ListProducts(context.Background(), "tok")

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message": "Token expirado"}`, apperrors.ErrAuth, "Token expirado"},
		{"forbidden", http.StatusForbidden, `{"error": "Acceso denegado"}`, apperrors.ErrAuth, "Acceso denegado"},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "Datos inválidos"}}`, apperrors.ErrValidation, "Datos inválidos"},
		{"unprocessable without body", http.StatusUnprocessableEntity, ``, apperrors.ErrValidation, "request rejected by the backend (422)"},
		{"server error", http.StatusServiceUnavailable, `oops`, apperrors.ErrServer, "backend error (503)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := testClient(server.URL, 0).ListClients(context.Background(), "tok")

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, apperrors.Message(err))
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL, 0).ListProducts(context.Background(), "tok")

	assert.ErrorIs(t, err, apperrors.ErrServer)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(server.URL, 0)
	for i := 0; i < 5; i++ {
		_, err := c.ListProducts(context.Background(), "tok")
		require.Error(t, err)
	}

	_, err := c.ListProducts(context.Background(), "tok")

	assert.ErrorIs(t, err, apperrors.ErrServer)
	assert.Equal(t, "the backend is temporarily unavailable", apperrors.Message(err))
	assert.Equal(t, int32(5), atomic.LoadInt32(&attempts))
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "Credenciales inválidas"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token": "jwt", "usuario": {"nombre": "María", "rol": "ADMIN"}}`))
	}))
	defer server.Close()

	c := testClient(server.URL, 0)

	res, err := c.Login(context.Background(), "maria", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "María", res.UserName)
	assert.Equal(t, "ADMIN", res.Role)

	_, err = c.Login(context.Background(), "maria", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrAuth)
	assert.Equal(t, "Credenciales inválidas", apperrors.Message(err))
}

func TestParseTimestamp(t *testing.T) {
	assert.Equal(t, time.Date(2025, 10, 7, 10, 45, 0, 0, time.UTC), parseTimestamp("2025-10-07 10:45"))
	assert.Equal(t, 2026, parseTimestamp("2026-01-02T03:04:05.123Z").Year())
	assert.True(t, parseTimestamp("ayer").IsZero())
	assert.True(t, parseTimestamp("").IsZero())
}
