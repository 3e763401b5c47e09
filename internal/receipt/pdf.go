package receipt

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin   = 20.0
	pdfRowH     = 7.0
	pdfFontBody = 10.0
)

// table column widths in mm: quantity, description, unit price, subtotal
var pdfColumns = [4]float64{20, 85, 30, 35}

func renderPDF(v *view) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(v.Vendor.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", pdfFontBody)
	for _, line := range []string{
		"RUC: " + v.Vendor.TaxID,
		v.Vendor.Address,
		fmt.Sprintf("Tel: %s / %s", v.Vendor.Phone, v.Vendor.Email),
	} {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 6, tr("Comprobante: "+v.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", pdfFontBody)
	pdf.CellFormat(0, 5, tr("N°: "+v.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Fecha: "+v.IssuedAt), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	for _, line := range []string{
		"Cliente: " + v.ClientName,
		v.DocumentKind + ": " + v.DocumentID,
		"Teléfono: " + v.Phone,
		"Dirección: " + v.Address,
	} {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", pdfFontBody)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Cant.", "Descripción", "P.Unit", "Subtotal"} {
		pdf.CellFormat(pdfColumns[i], pdfRowH, tr(h), "1", 0, columnAlign(i), true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", pdfFontBody)
	for _, l := range v.Lines {
		cells := [4]string{strconv.Itoa(l.Quantity), l.Description, l.UnitPrice, l.Subtotal}
		for i, c := range cells {
			pdf.CellFormat(pdfColumns[i], pdfRowH, tr(c), "1", 0, columnAlign(i), false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 12)
	labelW := pdfColumns[0] + pdfColumns[1] + pdfColumns[2]
	pdf.CellFormat(labelW, pdfRowH+1, "TOTAL", "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[3], pdfRowH+1, tr(v.Total), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnAlign(i int) string {
	switch i {
	case 0:
		return "C"
	case 1:
		return "L"
	default:
		return "R"
	}
}
