package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-checkout/internal/models"
	"pos-checkout/internal/receipt"
	"pos-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaleArchiveReader reads completed sales from the archive
type SaleArchiveReader interface {
	GetArchivedSale(ctx context.Context, saleID int64) (*models.ArchivedSale, error)
	ListArchivedSales(ctx context.Context, limit, offset int) ([]models.ArchivedSale, error)
}

// ReceiptRenderer renders a receipt in a given format
type ReceiptRenderer interface {
	Render(ctx context.Context, r models.Receipt, format receipt.Format) (*receipt.Document, error)
}

// ReissuePublisher announces regenerated receipts
type ReissuePublisher interface {
	PublishReceiptReissued(ctx context.Context, event *models.ReceiptReissuedEvent) error
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// SalesHistory lists archived sales and regenerates their receipts
type SalesHistory struct {
	archive   SaleArchiveReader
	renderer  ReceiptRenderer
	publisher ReissuePublisher
	logger    *zap.Logger
}

// NewSalesHistory creates a new sales history service. publisher may be nil.
func NewSalesHistory(archive SaleArchiveReader, renderer ReceiptRenderer, publisher ReissuePublisher) *SalesHistory {
	return &SalesHistory{
		archive:   archive,
		renderer:  renderer,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// List returns the most recent sales, newest first
func (h *SalesHistory) List(ctx context.Context, limit, offset int) ([]models.ArchivedSale, error) {
	ctx, span := util.StartSpan(ctx, "SalesHistory.List")
	defer span.End()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return h.archive.ListArchivedSales(ctx, limit, offset)
}

// Reissue renders the receipt of an archived sale from its stored snapshot,
// so prices are those captured when the sale was made.
func (h *SalesHistory) Reissue(ctx context.Context, saleID int64, format receipt.Format) (*receipt.Document, error) {
	ctx, span := util.StartSpan(ctx, "SalesHistory.Reissue")
	defer span.End()

	sale, err := h.archive.GetArchivedSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	var snapshot models.Receipt
	if err := json.Unmarshal(sale.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of sale %d: %w", saleID, err)
	}

	doc, err := h.renderer.Render(ctx, snapshot, format)
	if err != nil {
		return nil, err
	}

	if h.publisher != nil {
		event := &models.ReceiptReissuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeReceiptReissued,
				Timestamp: time.Now(),
			},
			SaleID: saleID,
			Format: string(format),
		}
		if err := h.publisher.PublishReceiptReissued(ctx, event); err != nil {
			h.logger.Error("Failed to publish ReceiptReissued event",
				zap.Int64("sale_id", saleID),
				zap.Error(err))
		}
	}

	h.logger.Info("Receipt reissued", zap.Int64("sale_id", saleID), zap.String("format", string(format)))
	return doc, nil
}
