package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-checkout/internal/broker"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// SaleArchive persists completed sales for history and receipt reissue
type SaleArchive interface {
	ArchiveSale(ctx context.Context, eventID string, sale *models.ArchivedSale) (bool, error)
	MarkReceiptReissued(ctx context.Context, eventID string, saleID int64) (bool, error)
}

// ArchiveWorker consumes sale events and records them in the sales archive
type ArchiveWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	archive      SaleArchive
	logger       *zap.Logger
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(consumer *broker.Consumer, archive SaleArchive) *ArchiveWorker {
	w := &ArchiveWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		archive:      archive,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnSaleCompleted(w.HandleSaleCompleted)
	w.eventHandler.OnReceiptReissued(w.HandleReceiptReissued)
	return w
}

// Start starts the worker
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting archive worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ArchiveWorker) Stop() error {
	w.logger.Info("Stopping archive worker")
	return w.consumer.Close()
}

// HandleSaleCompleted archives the sale snapshot carried by the event
func (w *ArchiveWorker) HandleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "ArchiveWorker.HandleSaleCompleted")
	defer span.End()

	snapshot, err := json.Marshal(event.Receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt snapshot: %w", err)
	}

	sale := &models.ArchivedSale{
		SaleID:        event.SaleID,
		ClientID:      event.Receipt.Client.ID,
		ClientName:    event.Receipt.Client.FullName(),
		ReceiptType:   string(event.Receipt.Sale.ReceiptType),
		Total:         event.Receipt.Sale.Total,
		IssuedAt:      event.Receipt.Sale.Timestamp,
		Operator:      event.Operator,
		ReceiptStatus: event.ReceiptStatus,
		Snapshot:      snapshot,
	}
	if sale.ReceiptStatus == "" {
		sale.ReceiptStatus = models.ReceiptStatusIssued
	}

	archived, err := w.archive.ArchiveSale(ctx, event.EventID, sale)
	if err != nil {
		return fmt.Errorf("failed to archive sale %d: %w", event.SaleID, err)
	}
	if !archived {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Info("Sale archived",
		zap.Int64("sale_id", sale.SaleID),
		zap.String("receipt_status", sale.ReceiptStatus))
	return nil
}

// HandleReceiptReissued marks the archived sale's receipt as issued
func (w *ArchiveWorker) HandleReceiptReissued(ctx context.Context, event *models.ReceiptReissuedEvent) error {
	ctx, span := util.StartSpan(ctx, "ArchiveWorker.HandleReceiptReissued")
	defer span.End()

	updated, err := w.archive.MarkReceiptReissued(ctx, event.EventID, event.SaleID)
	if err != nil {
		return fmt.Errorf("failed to record reissue of sale %d: %w", event.SaleID, err)
	}
	if !updated {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
	}
	return nil
}
