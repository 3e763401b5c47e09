package receipt

import (
	"context"
	"fmt"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// Format is the rendering of a receipt document
type Format string

// Supported formats
const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat accepts pdf or html. An empty string means pdf.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unknown receipt format %q", s))
	}
}

func (f Format) contentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "application/pdf"
}

// Document is a rendered receipt ready to be downloaded or printed
type Document struct {
	Format      Format `json:"format"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}

// Vendor identifies the issuing business on every receipt
type Vendor struct {
	Name    string
	TaxID   string
	Address string
	Phone   string
	Email   string
}

type renderFunc func(v *view) ([]byte, error)

// Emitter renders receipts for completed sales
type Emitter struct {
	vendor   Vendor
	currency string
	pdf      renderFunc
	html     renderFunc
	logger   *zap.Logger
}

// NewEmitter creates a receipt emitter for vendor, printing amounts with currency
func NewEmitter(vendor Vendor, currency string) *Emitter {
	return &Emitter{
		vendor:   vendor,
		currency: currency,
		pdf:      renderPDF,
		html:     renderHTML,
		logger:   util.GetLogger(),
	}
}

// Emit renders the receipt as a PDF, falling back to the print-ready HTML
// view when the PDF cannot be produced.
func (e *Emitter) Emit(ctx context.Context, r models.Receipt) (*Document, error) {
	_, span := util.StartSpan(ctx, "Emitter.Emit")
	defer span.End()

	doc, pdfErr := e.render(r, FormatPDF)
	if pdfErr == nil {
		return doc, nil
	}

	e.logger.Warn("PDF receipt failed, falling back to HTML",
		zap.Int64("sale_id", r.Sale.ID),
		zap.Error(pdfErr))

	doc, htmlErr := e.render(r, FormatHTML)
	if htmlErr != nil {
		util.ReceiptFailuresTotal.Inc()
		return nil, apperrors.ReceiptGeneration(fmt.Errorf("pdf: %v; html: %w", pdfErr, htmlErr))
	}
	return doc, nil
}

// Render produces the receipt in the requested format only
func (e *Emitter) Render(ctx context.Context, r models.Receipt, format Format) (*Document, error) {
	_, span := util.StartSpan(ctx, "Emitter.Render")
	defer span.End()

	doc, err := e.render(r, format)
	if err != nil {
		util.ReceiptFailuresTotal.Inc()
		return nil, apperrors.ReceiptGeneration(err)
	}
	return doc, nil
}

func (e *Emitter) render(r models.Receipt, format Format) (*Document, error) {
	var fn renderFunc
	switch format {
	case FormatPDF:
		fn = e.pdf
	case FormatHTML:
		fn = e.html
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	body, err := fn(newView(e.vendor, e.currency, r))
	if err != nil {
		return nil, fmt.Errorf("failed to render %s receipt: %w", format, err)
	}

	util.ReceiptsGeneratedTotal.WithLabelValues(string(format)).Inc()
	return &Document{
		Format:      format,
		FileName:    FileName(r.Sale, format),
		ContentType: format.contentType(),
		Body:        body,
	}, nil
}

// FileName returns <ReceiptType>_<number>.<format>
func FileName(s models.Sale, format Format) string {
	return fmt.Sprintf("%s_%s.%s", s.ReceiptType, s.Number(), format)
}
