package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem represents a sellable product as reported by the product listing service
type CatalogItem struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity int             `json:"available_quantity"`
}

// Client represents a purchaser from the client directory
type Client struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	DocumentID string `json:"document_id"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Email      string `json:"email"`
}

// FullName returns first and last name joined by a space
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// DocumentKind returns RUC for 11-character tax IDs and DNI otherwise
func (c Client) DocumentKind() string {
	if len(c.DocumentID) == 11 {
		return "RUC"
	}
	return "DNI"
}

// CartLine is one item selection in a cart. Name and UnitPrice are captured
// when the line is created.
type CartLine struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals holds the derived cart figures
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ReceiptType is the kind of fiscal document issued for a sale
type ReceiptType string

// Receipt types
const (
	ReceiptBoleta  ReceiptType = "Boleta"
	ReceiptFactura ReceiptType = "Factura"
)

// ParseReceiptType accepts Boleta or Factura in any letter case
func ParseReceiptType(s string) (ReceiptType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boleta":
		return ReceiptBoleta, nil
	case "factura":
		return ReceiptFactura, nil
	default:
		return "", fmt.Errorf("unknown receipt type %q", s)
	}
}

// Code returns the backend identifier of the receipt type
func (r ReceiptType) Code() int {
	if r == ReceiptFactura {
		return 2
	}
	return 1
}

// SaleRequest is the payload submitted to the sale submission service
type SaleRequest struct {
	ClientID    int64             `json:"client_id"`
	ReceiptType ReceiptType       `json:"receipt_type"`
	Lines       []SaleRequestLine `json:"lines"`
}

// SaleRequestLine is one submitted line
type SaleRequestLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// SaleConfirmation is returned by the backend once a sale is committed
type SaleConfirmation struct {
	SaleID    int64     `json:"sale_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleLine is a committed line with the name and price captured at sale time
type SaleLine struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price times quantity
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is a finalized transaction. It is immutable once the backend confirms it.
type Sale struct {
	ID          int64           `json:"sale_id"`
	ClientID    int64           `json:"client_id"`
	ReceiptType ReceiptType     `json:"receipt_type"`
	Lines       []SaleLine      `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Number returns the sale ID zero-padded to six digits
func (s Sale) Number() string {
	return fmt.Sprintf("%06d", s.ID)
}

// Receipt is everything needed to render a receipt for a completed sale
type Receipt struct {
	Sale   Sale   `json:"sale"`
	Client Client `json:"client"`
}

// Session is an authenticated operator session
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserName  string    `json:"user_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResult is what the backend returns for valid operator credentials
type LoginResult struct {
	Token    string
	UserName string
	Role     string
}

// Operator roles
const (
	RoleAdmin        = "Administrador"
	RoleVeterinarian = "Veterinario"
	RoleReceptionist = "Recepcionista"
	RoleGuest        = "Invitado"
)

// MapBackendRole converts a backend role name to the console role
func MapBackendRole(backendRole string) string {
	switch strings.ToUpper(strings.TrimSpace(backendRole)) {
	case "ADMIN":
		return RoleAdmin
	case "VETERINARIO":
		return RoleVeterinarian
	case "RECEPCIONISTA":
		return RoleReceptionist
	default:
		return RoleGuest
	}
}

// Receipt statuses recorded in the sales archive
const (
	ReceiptStatusIssued = "ISSUED"
	ReceiptStatusFailed = "FAILED"
)

// ArchivedSale is a completed sale stored for history and receipt reissue
type ArchivedSale struct {
	SaleID        int64           `db:"sale_id" json:"sale_id"`
	ClientID      int64           `db:"client_id" json:"client_id"`
	ClientName    string          `db:"client_name" json:"client_name"`
	ReceiptType   string          `db:"receipt_type" json:"receipt_type"`
	Total         decimal.Decimal `db:"total" json:"total"`
	IssuedAt      time.Time       `db:"issued_at" json:"issued_at"`
	Operator      string          `db:"operator" json:"operator"`
	ReceiptStatus string          `db:"receipt_status" json:"receipt_status"`
	ReissueCount  int             `db:"reissue_count" json:"reissue_count"`
	Snapshot      []byte          `db:"snapshot" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
