package receipt

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

//go:embed templates/receipt.html
var receiptHTML string

var htmlTemplate = template.Must(template.New("receipt").Parse(receiptHTML))

func renderHTML(v *view) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to execute receipt template: %w", err)
	}
	return buf.Bytes(), nil
}
