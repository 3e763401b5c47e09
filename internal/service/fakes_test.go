package service

import (
	"context"
	"sync"
	"time"

	"pos-checkout/internal/models"
	"pos-checkout/internal/receipt"

	"github.com/shopspring/decimal"
)

type fakeProducts struct {
	mu    sync.Mutex
	items []models.CatalogItem
	err   error
	calls int
}

func (f *fakeProducts) ListProducts(ctx context.Context, token string) ([]models.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CatalogItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

type fakeClients struct {
	clients []models.Client
	err     error
	calls   int
}

func (f *fakeClients) ListClients(ctx context.Context, token string) ([]models.Client, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.clients, nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	conf    *models.SaleConfirmation
	err     error
	calls   int
	last    models.SaleRequest
	started chan struct{}
	unblock chan struct{}
}

func (f *fakeSubmitter) SubmitSale(ctx context.Context, token string, req models.SaleRequest) (*models.SaleConfirmation, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.unblock != nil {
		<-f.unblock
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.conf, nil
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEmitter struct {
	err      error
	received []models.Receipt
}

func (f *fakeEmitter) Emit(ctx context.Context, r models.Receipt) (*receipt.Document, error) {
	f.received = append(f.received, r)
	if f.err != nil {
		return nil, f.err
	}
	return &receipt.Document{
		Format:   receipt.FormatPDF,
		FileName: receipt.FileName(r.Sale, receipt.FormatPDF),
		Body:     []byte("%PDF-1.3"),
	}, nil
}

type fakeTerminator struct {
	terminated []string
	reasons    []string
}

func (f *fakeTerminator) Terminate(ctx context.Context, sessionID, reason string) error {
	f.terminated = append(f.terminated, sessionID)
	f.reasons = append(f.reasons, reason)
	return nil
}

type fakePublisher struct {
	events []*models.SaleCompletedEvent
	err    error
}

func (f *fakePublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeIdempotency struct {
	sales map[string]models.Receipt
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{sales: make(map[string]models.Receipt)}
}

func (f *fakeIdempotency) LookupSale(ctx context.Context, key string) (*models.Receipt, bool, error) {
	r, ok := f.sales[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (f *fakeIdempotency) RememberSale(ctx context.Context, key string, r *models.Receipt, ttl time.Duration) error {
	f.sales[key] = *r
	return nil
}

type fakeSessionStore struct {
	sessions map[string]*models.Session
	ttls     map[string]time.Duration
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*models.Session),
		ttls:     make(map[string]time.Duration),
	}
}

func (f *fakeSessionStore) SaveSession(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	f.sessions[sess.ID] = sess
	f.ttls[sess.ID] = ttl
	return nil
}

func (f *fakeSessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

type fakeAuthenticator struct {
	result *models.LoginResult
	err    error
}

func (f *fakeAuthenticator) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	return f.result, f.err
}

func item(id int64, name, price string, stock int) models.CatalogItem {
	return models.CatalogItem{
		ID:                id,
		Name:              name,
		UnitPrice:         decimal.RequireFromString(price),
		AvailableQuantity: stock,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSession() *models.Session {
	return &models.Session{ID: "sess-1", Token: "tok", UserName: "María", Role: models.RoleReceptionist}
}

func testDirectory() []models.Client {
	return []models.Client{
		{ID: 7, FirstName: "Ana", LastName: "Quispe", DocumentID: "45678912", Phone: "987654321"},
		{ID: 8, FirstName: "Luis", LastName: "Ramos", DocumentID: "20123456789", Phone: "912345678"},
		{ID: 9, FirstName: "Carmen", LastName: "Anaya", DocumentID: "41234567", Phone: "955111222"},
	}
}

// loadedCatalog returns a ready cache over items
func loadedCatalog(items ...models.CatalogItem) *CatalogCache {
	c := NewCatalogCache(&fakeProducts{items: items})
	if err := c.Load(context.Background(), "tok"); err != nil {
		panic(err)
	}
	return c
}
