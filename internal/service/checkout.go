package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
)

// Checkout is the sale being assembled by one operator session: its catalog
// view, cart and client selection. Mutations are serialized; while a sale is
// being submitted every mutation fails with SaleInProgress.
type Checkout struct {
	mu       sync.Mutex
	inFlight atomic.Bool
	lastUsed atomic.Int64

	sessionID string
	catalog   *CatalogCache
	cart      *Cart
	clients   *ClientSelector
}

// State is a read-only view of a checkout
type State struct {
	SessionID    string            `json:"session_id"`
	CatalogReady bool              `json:"catalog_ready"`
	Lines        []models.CartLine `json:"lines"`
	Totals       models.Totals     `json:"totals"`
	Client       *models.Client    `json:"client,omitempty"`
	Submitting   bool              `json:"submitting"`
}

// NewCheckout creates an empty checkout over the given collaborators
func NewCheckout(sessionID string, products ProductLister, directory ClientLister) *Checkout {
	catalog := NewCatalogCache(products)
	co := &Checkout{
		sessionID: sessionID,
		catalog:   catalog,
		cart:      NewCart(catalog),
		clients:   NewClientSelector(directory),
	}
	co.touch()
	return co
}

func (co *Checkout) touch() {
	co.lastUsed.Store(time.Now().UnixNano())
}

// IdleSince returns the last time the checkout was used
func (co *Checkout) IdleSince() time.Time {
	return time.Unix(0, co.lastUsed.Load())
}

// lock acquires the checkout for a mutation, refusing while a sale is in flight
func (co *Checkout) lock() (func(), error) {
	if co.inFlight.Load() {
		return nil, apperrors.SaleInProgress()
	}
	co.mu.Lock()
	if co.inFlight.Load() {
		co.mu.Unlock()
		return nil, apperrors.SaleInProgress()
	}
	co.touch()
	return co.mu.Unlock, nil
}

// beginSubmit marks the checkout as submitting until the returned func is
// called. A second concurrent call fails immediately. The mutex is not held
// meanwhile: mutations are refused by the mark, reads keep answering and
// report Submitting.
func (co *Checkout) beginSubmit() (func(), error) {
	if !co.inFlight.CompareAndSwap(false, true) {
		return nil, apperrors.SaleInProgress()
	}
	co.touch()
	return func() {
		co.touch()
		co.inFlight.Store(false)
	}, nil
}

// locked runs fn holding the mutex, for the finalizer's own reads and writes
// of a checkout it has marked as submitting
func (co *Checkout) locked(fn func()) {
	co.mu.Lock()
	defer co.mu.Unlock()
	fn()
}

// Open loads the catalog and the client directory
func (co *Checkout) Open(ctx context.Context, sess *models.Session) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := co.catalog.Load(ctx, sess.Token); err != nil {
		return err
	}
	return co.clients.Load(ctx, sess.Token)
}

// ReloadCatalog refetches the catalog. It is refused while the cart holds
// reservations because a fresh snapshot would not account for them.
func (co *Checkout) ReloadCatalog(ctx context.Context, sess *models.Session) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if !co.cart.IsEmpty() {
		return apperrors.Validation("empty the cart before reloading the catalog")
	}
	return co.catalog.Load(ctx, sess.Token)
}

// ReloadClients refetches the client directory, keeping the current selection
func (co *Checkout) ReloadClients(ctx context.Context, sess *models.Session) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	return co.clients.Load(ctx, sess.Token)
}

// CatalogItems returns the catalog with provisional availability
func (co *Checkout) CatalogItems() ([]models.CatalogItem, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.catalog.Items(), co.catalog.Ready()
}

// AddItem adds one unit of itemID to the cart
func (co *Checkout) AddItem(itemID int64) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if !co.catalog.Ready() {
		return apperrors.CatalogNotReady()
	}
	return co.cart.AddItem(itemID)
}

// SetQuantity sets the quantity of a cart line
func (co *Checkout) SetQuantity(itemID int64, quantity int) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	return co.cart.SetQuantity(itemID, quantity)
}

// RemoveItem deletes a cart line
func (co *Checkout) RemoveItem(itemID int64) error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	return co.cart.RemoveItem(itemID)
}

// ClearCart empties the cart, releasing all reservations
func (co *Checkout) ClearCart() error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	co.cart.Clear()
	return nil
}

// SearchClients returns the directory entries matching query
func (co *Checkout) SearchClients(query string) []models.Client {
	co.mu.Lock()
	defer co.mu.Unlock()
	return slices.Collect(co.clients.Search(query))
}

// SelectClient sets the purchaser
func (co *Checkout) SelectClient(clientID int64) (models.Client, error) {
	unlock, err := co.lock()
	if err != nil {
		return models.Client{}, err
	}
	defer unlock()

	return co.clients.Select(clientID)
}

// ClearClient unsets the purchaser
func (co *Checkout) ClearClient() error {
	unlock, err := co.lock()
	if err != nil {
		return err
	}
	defer unlock()

	co.clients.Clear()
	return nil
}

// State returns a snapshot of the cart and selection
func (co *Checkout) State() State {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.stateLocked()
}

func (co *Checkout) stateLocked() State {
	st := State{
		SessionID:    co.sessionID,
		CatalogReady: co.catalog.Ready(),
		Lines:        co.cart.Lines(),
		Totals:       co.cart.Totals(),
		Submitting:   co.inFlight.Load(),
	}
	if c, ok := co.clients.Selected(); ok {
		st.Client = &c
	}
	return st
}

// Close releases every reservation and clears the selection
func (co *Checkout) Close() {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.cart.Clear()
	co.clients.Clear()
}
