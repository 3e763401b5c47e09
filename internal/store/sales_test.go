package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

func testArchivedSale() *models.ArchivedSale {
	return &models.ArchivedSale{
		SaleID:        42,
		ClientID:      7,
		ClientName:    "Ana Quispe",
		ReceiptType:   "Boleta",
		Total:         decimal.RequireFromString("61.00"),
		IssuedAt:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Operator:      "María",
		ReceiptStatus: models.ReceiptStatusIssued,
		Snapshot:      []byte(`{"sale":{"sale_id":42}}`),
	}
}

func TestArchiveSale_FirstDelivery(t *testing.T) {
	s, mock := newMockStore(t)
	sale := testArchivedSale()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertProcessedEventSQL)).
		WithArgs("evt-1", models.EventTypeSaleCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertArchivedSaleSQL)).
		WithArgs(sale.SaleID, sale.ClientID, sale.ClientName, sale.ReceiptType, sale.Total,
			sale.IssuedAt, sale.Operator, sale.ReceiptStatus, string(sale.Snapshot)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	archived, err := s.ArchiveSale(context.Background(), "evt-1", sale)

	require.NoError(t, err)
	assert.True(t, archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveSale_DuplicateEvent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertProcessedEventSQL)).
		WithArgs("evt-1", models.EventTypeSaleCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	archived, err := s.ArchiveSale(context.Background(), "evt-1", testArchivedSale())

	require.NoError(t, err)
	assert.False(t, archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReceiptReissued(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertProcessedEventSQL)).
		WithArgs("evt-2", models.EventTypeReceiptReissued).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(markReissuedSQL)).
		WithArgs(models.ReceiptStatusIssued, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := s.MarkReceiptReissued(context.Background(), "evt-2", 42)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetArchivedSale(t *testing.T) {
	s, mock := newMockStore(t)
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"sale_id", "client_id", "client_name", "receipt_type", "total",
		"issued_at", "operator", "receipt_status", "reissue_count", "snapshot", "created_at"}).
		AddRow(42, 7, "Ana Quispe", "Boleta", "61.00", issued, "María", "ISSUED", 1, []byte(`{}`), issued)
	mock.ExpectQuery(regexp.QuoteMeta(selectArchivedSaleSQL)).WithArgs(int64(42)).WillReturnRows(rows)

	sale, err := s.GetArchivedSale(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), sale.SaleID)
	assert.True(t, decimal.RequireFromString("61").Equal(sale.Total))
	assert.Equal(t, 1, sale.ReissueCount)
	assert.Equal(t, []byte(`{}`), sale.Snapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetArchivedSale_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectArchivedSaleSQL)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"sale_id"}))

	_, err := s.GetArchivedSale(context.Background(), 99)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListArchivedSales(t *testing.T) {
	s, mock := newMockStore(t)
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"sale_id", "client_id", "client_name", "receipt_type", "total",
		"issued_at", "operator", "receipt_status", "reissue_count", "created_at"}).
		AddRow(43, 8, "Luis Ramos", "Factura", "10.00", issued, "María", "FAILED", 0, issued).
		AddRow(42, 7, "Ana Quispe", "Boleta", "61.00", issued, "María", "ISSUED", 0, issued)
	mock.ExpectQuery(regexp.QuoteMeta(listArchivedSalesSQL)).WithArgs(20, 0).WillReturnRows(rows)

	sales, err := s.ListArchivedSales(context.Background(), 20, 0)

	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, int64(43), sales[0].SaleID)
	assert.Equal(t, models.ReceiptStatusFailed, sales[0].ReceiptStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
