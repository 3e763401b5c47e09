package service

import (
	"context"
	"errors"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/receipt"
	"pos-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaleSubmitter posts a sale to the backend
type SaleSubmitter interface {
	SubmitSale(ctx context.Context, token string, req models.SaleRequest) (*models.SaleConfirmation, error)
}

// ReceiptEmitter renders the receipt of a completed sale
type ReceiptEmitter interface {
	Emit(ctx context.Context, r models.Receipt) (*receipt.Document, error)
}

// SaleEventPublisher announces completed sales
type SaleEventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
}

// IdempotencyStore remembers which idempotency keys already produced a sale
type IdempotencyStore interface {
	LookupSale(ctx context.Context, key string) (*models.Receipt, bool, error)
	RememberSale(ctx context.Context, key string, r *models.Receipt, ttl time.Duration) error
}

// FinalizeRequest carries the operator's choices for one finalize call
type FinalizeRequest struct {
	ReceiptType    string
	IdempotencyKey string
}

// FinalizeResult describes a committed sale. ReceiptErr and CatalogErr
// report follow-up steps that failed after the sale was already committed.
type FinalizeResult struct {
	Sale       models.Sale
	Client     models.Client
	Receipt    *receipt.Document
	ReceiptErr error
	CatalogErr error
	Replayed   bool
}

// Finalizer validates a checkout, submits its sale once and coordinates the
// receipt, cleanup and catalog reconciliation that follow.
type Finalizer struct {
	submitter      SaleSubmitter
	emitter        ReceiptEmitter
	terminator     SessionTerminator
	publisher      SaleEventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	defaultReceipt models.ReceiptType
	logger         *zap.Logger
}

// NewFinalizer creates a new sale finalizer. publisher and idempotency may be nil.
func NewFinalizer(
	submitter SaleSubmitter,
	emitter ReceiptEmitter,
	terminator SessionTerminator,
	publisher SaleEventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
	defaultReceipt models.ReceiptType,
) *Finalizer {
	if defaultReceipt == "" {
		defaultReceipt = models.ReceiptBoleta
	}
	return &Finalizer{
		submitter:      submitter,
		emitter:        emitter,
		terminator:     terminator,
		publisher:      publisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		defaultReceipt: defaultReceipt,
		logger:         util.GetLogger(),
	}
}

// DefaultReceiptType returns the receipt type used when none is chosen
func (f *Finalizer) DefaultReceiptType() models.ReceiptType {
	return f.defaultReceipt
}

// Finalize submits the checkout's sale. On error the cart and selection are
// left exactly as they were.
func (f *Finalizer) Finalize(ctx context.Context, sess *models.Session, co *Checkout, req FinalizeRequest) (*FinalizeResult, error) {
	ctx, span := util.StartSpan(ctx, "Finalizer.Finalize")
	defer span.End()

	release, err := co.beginSubmit()
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("in_progress").Inc()
		return nil, err
	}
	defer release()

	// A committed sale cannot be aborted, so the caller going away must not
	// cancel the submission or the cleanup after it.
	ctx = context.WithoutCancel(ctx)

	idemKey := idempotencyKey(sess, req.IdempotencyKey)
	if res, ok := f.replay(ctx, idemKey); ok {
		return res, nil
	}

	var (
		saleReq  models.SaleRequest
		snapshot models.Receipt
	)
	co.locked(func() {
		saleReq, snapshot, err = f.prepare(co, req.ReceiptType)
	})
	if err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	start := time.Now()
	conf, err := f.submitter.SubmitSale(ctx, sess.Token, saleReq)
	util.SaleSubmissionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		f.logger.Warn("Sale submission failed",
			zap.String("session_id", sess.ID),
			zap.Int64("client_id", saleReq.ClientID),
			zap.Error(err))
		if isAuthError(err) {
			forceLogout(ctx, f.terminator, sess.ID, f.logger)
		}
		return nil, err
	}

	snapshot.Sale.ID = conf.SaleID
	snapshot.Sale.Timestamp = conf.Timestamp
	if snapshot.Sale.Timestamp.IsZero() {
		snapshot.Sale.Timestamp = time.Now().UTC()
	}

	util.SalesFinalizedTotal.Inc()
	f.logger.Info("Sale committed",
		zap.Int64("sale_id", snapshot.Sale.ID),
		zap.Int64("client_id", snapshot.Client.ID),
		zap.String("receipt_type", string(snapshot.Sale.ReceiptType)),
		zap.String("total", snapshot.Sale.Total.StringFixed(2)))

	result := &FinalizeResult{Sale: snapshot.Sale, Client: snapshot.Client}
	result.Receipt, result.ReceiptErr = f.emit(ctx, snapshot)

	var loadErr error
	co.locked(func() {
		co.cart.Clear()
		co.clients.Clear()
		loadErr = co.catalog.Load(ctx, sess.Token)
	})
	if loadErr != nil {
		result.CatalogErr = loadErr
		f.logger.Warn("Post-sale catalog reload failed",
			zap.Int64("sale_id", snapshot.Sale.ID),
			zap.Error(loadErr))
		if isAuthError(loadErr) {
			forceLogout(ctx, f.terminator, sess.ID, f.logger)
		}
	}

	if idemKey != "" && f.idempotency != nil {
		if err := f.idempotency.RememberSale(ctx, idemKey, &snapshot, f.idempotencyTTL); err != nil {
			f.logger.Error("Failed to record idempotency key",
				zap.String("idempotency_key", idemKey),
				zap.Error(err))
		}
	}

	f.publish(ctx, sess, snapshot, result.ReceiptErr == nil)
	return result, nil
}

// prepare checks the preconditions in order and snapshots the sale
func (f *Finalizer) prepare(co *Checkout, receiptType string) (models.SaleRequest, models.Receipt, error) {
	if co.cart.IsEmpty() {
		return models.SaleRequest{}, models.Receipt{}, apperrors.EmptyCart()
	}
	client, ok := co.clients.Selected()
	if !ok {
		return models.SaleRequest{}, models.Receipt{}, apperrors.NoClientSelected()
	}

	rt := f.defaultReceipt
	if receiptType != "" {
		parsed, err := models.ParseReceiptType(receiptType)
		if err != nil {
			return models.SaleRequest{}, models.Receipt{}, apperrors.Validation(err.Error())
		}
		rt = parsed
	}

	cartLines := co.cart.Lines()
	req := models.SaleRequest{
		ClientID:    client.ID,
		ReceiptType: rt,
		Lines:       make([]models.SaleRequestLine, 0, len(cartLines)),
	}
	lines := make([]models.SaleLine, 0, len(cartLines))
	for _, l := range cartLines {
		req.Lines = append(req.Lines, models.SaleRequestLine{ItemID: l.ItemID, Quantity: l.Quantity})
		lines = append(lines, models.SaleLine{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}

	snapshot := models.Receipt{
		Sale: models.Sale{
			ClientID:    client.ID,
			ReceiptType: rt,
			Lines:       lines,
			Total:       co.cart.Totals().TotalPrice,
		},
		Client: client,
	}
	return req, snapshot, nil
}

func (f *Finalizer) emit(ctx context.Context, snapshot models.Receipt) (*receipt.Document, error) {
	doc, err := f.emitter.Emit(ctx, snapshot)
	if err == nil {
		return doc, nil
	}

	f.logger.Error("Receipt generation failed",
		zap.Int64("sale_id", snapshot.Sale.ID),
		zap.Error(err))
	if !errors.Is(err, apperrors.ErrReceiptGeneration) {
		err = apperrors.ReceiptGeneration(err)
	}
	return nil, err
}

// idempotencyKey scopes a caller-supplied key to the session that sent it,
// so a key reused by another operator never replays someone else's sale
func idempotencyKey(sess *models.Session, key string) string {
	if key == "" {
		return ""
	}
	return sess.ID + ":" + key
}

// replay answers a repeated idempotency key with the sale it already produced
func (f *Finalizer) replay(ctx context.Context, key string) (*FinalizeResult, bool) {
	if key == "" || f.idempotency == nil {
		return nil, false
	}

	snapshot, ok, err := f.idempotency.LookupSale(ctx, key)
	if err != nil {
		f.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	util.SalesReplayedTotal.Inc()
	f.logger.Info("Duplicate finalize request detected",
		zap.String("idempotency_key", key),
		zap.Int64("sale_id", snapshot.Sale.ID))

	result := &FinalizeResult{Sale: snapshot.Sale, Client: snapshot.Client, Replayed: true}
	result.Receipt, result.ReceiptErr = f.emit(ctx, *snapshot)
	return result, true
}

func (f *Finalizer) publish(ctx context.Context, sess *models.Session, snapshot models.Receipt, receiptOK bool) {
	if f.publisher == nil {
		return
	}

	status := models.ReceiptStatusIssued
	if !receiptOK {
		status = models.ReceiptStatusFailed
	}
	event := &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCompleted,
			Timestamp: time.Now(),
		},
		SaleID:        snapshot.Sale.ID,
		SessionID:     sess.ID,
		Operator:      sess.UserName,
		ReceiptStatus: status,
		Receipt:       snapshot,
	}

	if err := f.publisher.PublishSaleCompleted(ctx, event); err != nil {
		f.logger.Error("Failed to publish SaleCompleted event",
			zap.Int64("sale_id", snapshot.Sale.ID),
			zap.Error(err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, apperrors.ErrNoClientSelected):
		return "no_client"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrAuth):
		return "auth"
	case errors.Is(err, apperrors.ErrServer):
		return "server"
	default:
		return "other"
	}
}
