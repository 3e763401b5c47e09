package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	insertProcessedEventSQL = `INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`

	insertArchivedSaleSQL = `INSERT INTO archived_sales
		(sale_id, client_id, client_name, receipt_type, total, issued_at, operator, receipt_status, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sale_id) DO NOTHING`

	markReissuedSQL = `UPDATE archived_sales SET receipt_status = $1, reissue_count = reissue_count + 1 WHERE sale_id = $2`

	selectArchivedSaleSQL = `SELECT sale_id, client_id, client_name, receipt_type, total, issued_at, operator,
		receipt_status, reissue_count, snapshot, created_at
		FROM archived_sales WHERE sale_id = $1`

	listArchivedSalesSQL = `SELECT sale_id, client_id, client_name, receipt_type, total, issued_at, operator,
		receipt_status, reissue_count, created_at
		FROM archived_sales ORDER BY issued_at DESC, sale_id DESC LIMIT $1 OFFSET $2`
)

// ArchiveSale stores a completed sale once per event. It returns false when
// the event was already processed.
func (s *Store) ArchiveSale(ctx context.Context, eventID string, sale *models.ArchivedSale) (bool, error) {
	return s.withEvent(ctx, eventID, models.EventTypeSaleCompleted, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, insertArchivedSaleSQL,
			sale.SaleID, sale.ClientID, sale.ClientName, sale.ReceiptType, sale.Total,
			sale.IssuedAt, sale.Operator, sale.ReceiptStatus, string(sale.Snapshot))
		if err != nil {
			return fmt.Errorf("failed to archive sale: %w", err)
		}
		return nil
	})
}

// MarkReceiptReissued records a regenerated receipt once per event
func (s *Store) MarkReceiptReissued(ctx context.Context, eventID string, saleID int64) (bool, error) {
	return s.withEvent(ctx, eventID, models.EventTypeReceiptReissued, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, markReissuedSQL, models.ReceiptStatusIssued, saleID)
		if err != nil {
			return fmt.Errorf("failed to update receipt status: %w", err)
		}
		return nil
	})
}

// withEvent runs fn in a transaction guarded by the processed_events table
func (s *Store) withEvent(ctx context.Context, eventID, eventType string, fn func(tx *sqlx.Tx) error) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertProcessedEventSQL, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}

	if err := fn(tx); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// GetArchivedSale retrieves an archived sale with its receipt snapshot
func (s *Store) GetArchivedSale(ctx context.Context, saleID int64) (*models.ArchivedSale, error) {
	var sale models.ArchivedSale
	err := s.db.GetContext(ctx, &sale, selectArchivedSaleSQL, saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("sale", saleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived sale: %w", err)
	}
	return &sale, nil
}

// ListArchivedSales returns the most recent sales without their snapshots
func (s *Store) ListArchivedSales(ctx context.Context, limit, offset int) ([]models.ArchivedSale, error) {
	sales := []models.ArchivedSale{}
	if err := s.db.SelectContext(ctx, &sales, listArchivedSalesSQL, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list archived sales: %w", err)
	}
	return sales, nil
}
