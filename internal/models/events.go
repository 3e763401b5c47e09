package models

import "time"

// Event types
const (
	EventTypeSaleCompleted   = "SALE_COMPLETED"
	EventTypeReceiptReissued = "RECEIPT_REISSUED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published when the backend confirms a sale
type SaleCompletedEvent struct {
	BaseEvent
	SaleID        int64   `json:"sale_id"`
	SessionID     string  `json:"session_id"`
	Operator      string  `json:"operator"`
	ReceiptStatus string  `json:"receipt_status"`
	Receipt       Receipt `json:"receipt"`
}

// ReceiptReissuedEvent published when a receipt is regenerated from the archive
type ReceiptReissuedEvent struct {
	BaseEvent
	SaleID int64  `json:"sale_id"`
	Format string `json:"format"`
}
