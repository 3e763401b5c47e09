package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Backend endpoints, relative to the base URL
const (
	productsPath = "/v1/productos"
	clientsPath  = "/v1/clientes"
	salesPath    = "/v1/ventas"
	loginPath    = "/auth/login"
)

// Config holds backend client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	BreakerName  string
}

// DefaultConfig returns defaults for the VetHope backend
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 3 * time.Second,
		BreakerName:  "vethope-backend",
	}
}

// Client calls the VetHope REST backend on behalf of an operator. GET
// requests are retried with backoff; POST requests are sent exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     Config
	logger     *zap.Logger
}

// NewClient creates a new backend client
func NewClient(cfg Config) *Client {
	logger := util.GetLogger()
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	name := cfg.BreakerName
	if name == "" {
		name = "vethope-backend"
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			util.BackendBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	util.BackendBreakerState.WithLabelValues(name).Set(0)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		config:  cfg,
		logger:  logger,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ListProducts fetches the sellable catalog
func (c *Client) ListProducts(ctx context.Context, token string) ([]models.CatalogItem, error) {
	ctx, span := util.StartSpan(ctx, "Backend.ListProducts")
	defer span.End()

	var dtos []productDTO
	if err := c.do(ctx, http.MethodGet, productsPath, token, nil, &dtos); err != nil {
		return nil, err
	}

	items := make([]models.CatalogItem, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, d.toModel())
	}
	return items, nil
}

// ListClients fetches the whole client directory
func (c *Client) ListClients(ctx context.Context, token string) ([]models.Client, error) {
	ctx, span := util.StartSpan(ctx, "Backend.ListClients")
	defer span.End()

	var dtos []clientDTO
	if err := c.do(ctx, http.MethodGet, clientsPath, token, nil, &dtos); err != nil {
		return nil, err
	}

	clients := make([]models.Client, 0, len(dtos))
	for _, d := range dtos {
		clients = append(clients, d.toModel())
	}
	return clients, nil
}

// SubmitSale registers a sale. It is never retried: a timeout leaves the
// outcome unknown and is reported as an ambiguous submission.
func (c *Client) SubmitSale(ctx context.Context, token string, req models.SaleRequest) (*models.SaleConfirmation, error) {
	ctx, span := util.StartSpan(ctx, "Backend.SubmitSale")
	defer span.End()

	var resp saleResponseDTO
	if err := c.do(ctx, http.MethodPost, salesPath, token, newSaleRequestDTO(req), &resp); err != nil {
		return nil, err
	}

	conf := resp.confirmation()
	if conf.SaleID == 0 {
		return nil, apperrors.AmbiguousSubmission(errors.New("backend confirmed the sale without an id"))
	}
	return &conf, nil
}

// Login exchanges operator credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "Backend.Login")
	defer span.End()

	var resp loginResponseDTO
	body := loginRequestDTO{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, loginPath, "", body, &resp); err != nil {
		return nil, err
	}

	return &models.LoginResult{
		Token:    resp.Token,
		UserName: resp.User.Name,
		Role:     resp.User.Role,
	}, nil
}

// statusError carries a 5xx response through the circuit breaker
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.status)
}

// do sends one logical request, retrying idempotent ones, and decodes a 2xx
// body into out.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return apperrors.Server("backend request cancelled", err)
			}
		}

		resp, err := c.send(ctx, method, path, token, payload)
		if err == nil {
			return c.decode(resp, method, path, out)
		}

		lastErr = err
		if !c.retryable(err) {
			break
		}
		c.logger.Debug("Retrying backend request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return c.classify(method, path, lastErr)
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > c.config.RetryWaitMax {
		wait = c.config.RetryWaitMax
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send performs a single attempt through the circuit breaker. A 5xx response
// comes back as a statusError so it counts against the breaker.
func (c *Client) send(ctx context.Context, method, path, token string, payload []byte) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			util.BackendRequestDuration.WithLabelValues(method, path, "error").Observe(time.Since(start).Seconds())
			return nil, err
		}
		util.BackendRequestDuration.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			return nil, &statusError{status: resp.StatusCode, body: b}
		}
		return resp, nil
	})
}

func (c *Client) retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status != http.StatusNotImplemented
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify maps a failed attempt to the checkout error taxonomy
func (c *Client) classify(method, path string, err error) error {
	c.logger.Warn("Backend request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err))

	var se *statusError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.Server("the backend is temporarily unavailable", err)
	case errors.As(err, &se):
		return apperrors.Server(errorMessage(se.body, fmt.Sprintf("backend error (%d)", se.status)), err)
	case method == http.MethodPost && isTimeout(err):
		return apperrors.AmbiguousSubmission(err)
	default:
		return apperrors.Server("could not reach the backend", err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decode consumes a non-5xx response
func (c *Client) decode(resp *http.Response, method, path string, out any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		if method == http.MethodPost && isTimeout(err) {
			return apperrors.AmbiguousSubmission(err)
		}
		return apperrors.Server("failed to read backend response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.Auth(errorMessage(body, "session expired or access denied, please log in again"))
	case resp.StatusCode >= 400:
		return apperrors.Validation(errorMessage(body, fmt.Sprintf("request rejected by the backend (%d)", resp.StatusCode)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.Server(fmt.Sprintf("unexpected backend status %d", resp.StatusCode), nil)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Server(fmt.Sprintf("malformed response from %s %s", method, path), err)
	}
	return nil
}

// errorMessage extracts "message", "error" or "error.message" from a backend error body
func errorMessage(body []byte, fallback string) string {
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) != nil {
		return fallback
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	switch e := parsed["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}
