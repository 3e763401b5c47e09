package receipt

import (
	"pos-checkout/internal/models"
)

const timestampLayout = "02/01/2006 15:04:05"

// view is the formatted content shared by every receipt format
type view struct {
	Vendor       Vendor
	Title        string
	Number       string
	IssuedAt     string
	ClientName   string
	DocumentKind string
	DocumentID   string
	Phone        string
	Address      string
	Lines        []viewLine
	Total        string
}

type viewLine struct {
	Quantity    int
	Description string
	UnitPrice   string
	Subtotal    string
}

func newView(vendor Vendor, currency string, r models.Receipt) *view {
	money := func(s string) string {
		if currency == "" {
			return s
		}
		return currency + " " + s
	}

	v := &view{
		Vendor:       vendor,
		Title:        string(r.Sale.ReceiptType),
		Number:       r.Sale.Number(),
		IssuedAt:     r.Sale.Timestamp.Format(timestampLayout),
		ClientName:   r.Client.FullName(),
		DocumentKind: r.Client.DocumentKind(),
		DocumentID:   orDash(r.Client.DocumentID),
		Phone:        orDash(r.Client.Phone),
		Address:      orDash(r.Client.Address),
		Total:        money(r.Sale.Total.StringFixed(2)),
		Lines:        make([]viewLine, 0, len(r.Sale.Lines)),
	}
	for _, l := range r.Sale.Lines {
		v.Lines = append(v.Lines, viewLine{
			Quantity:    l.Quantity,
			Description: l.Name,
			UnitPrice:   money(l.UnitPrice.StringFixed(2)),
			Subtotal:    money(l.Subtotal().StringFixed(2)),
		})
	}
	return v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
