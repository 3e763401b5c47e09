package service

import (
	"context"
	"sync"
	"time"

	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// Registry keeps one Checkout per operator session
type Registry struct {
	mu        sync.Mutex
	checkouts map[string]*Checkout

	products   ProductLister
	directory  ClientLister
	terminator SessionTerminator
	logger     *zap.Logger
}

// NewRegistry creates an empty checkout registry
func NewRegistry(products ProductLister, directory ClientLister, terminator SessionTerminator) *Registry {
	return &Registry{
		checkouts:  make(map[string]*Checkout),
		products:   products,
		directory:  directory,
		terminator: terminator,
		logger:     util.GetLogger(),
	}
}

// Get returns the session's checkout, opening a new one on first use. When
// opening fails the checkout is still registered so the operator can retry
// the load, except on AuthError which also ends the session.
func (r *Registry) Get(ctx context.Context, sess *models.Session) (*Checkout, error) {
	r.mu.Lock()
	co, ok := r.checkouts[sess.ID]
	if ok {
		r.mu.Unlock()
		co.touch()
		return co, nil
	}
	co = NewCheckout(sess.ID, r.products, r.directory)
	r.checkouts[sess.ID] = co
	r.mu.Unlock()

	if err := co.Open(ctx, sess); err != nil {
		if isAuthError(err) {
			r.Drop(sess.ID)
			forceLogout(ctx, r.terminator, sess.ID, r.logger)
			return nil, err
		}
		r.logger.Warn("Checkout opened with errors",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return co, err
	}

	r.logger.Debug("Checkout opened", zap.String("session_id", sess.ID))
	return co, nil
}

// Lookup returns the session's checkout without opening one
func (r *Registry) Lookup(sessionID string) (*Checkout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	co, ok := r.checkouts[sessionID]
	return co, ok
}

// Drop releases and forgets the session's checkout
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	co, ok := r.checkouts[sessionID]
	delete(r.checkouts, sessionID)
	r.mu.Unlock()

	if ok {
		co.Close()
	}
}

// Len returns the number of open checkouts
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.checkouts)
}

// Sweep drops checkouts unused for longer than maxIdle and returns how many
// were dropped. Checkouts with a sale in flight are kept.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Checkout
	for id, co := range r.checkouts {
		if co.inFlight.Load() || co.IdleSince().After(cutoff) {
			continue
		}
		stale = append(stale, co)
		delete(r.checkouts, id)
	}
	r.mu.Unlock()

	for _, co := range stale {
		co.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("Swept idle checkouts", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunSweeper sweeps idle checkouts every interval until ctx is done
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}
