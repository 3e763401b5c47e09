package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"pos-checkout/internal/models"

	"github.com/shopspring/decimal"
)

// flexString accepts a JSON string or number. Document and phone fields come
// back as either depending on how the record was created.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type productDTO struct {
	ID    int64           `json:"id_producto"`
	Name  string          `json:"nombre"`
	Price decimal.Decimal `json:"precio"`
	Stock int             `json:"stock"`
}

func (p productDTO) toModel() models.CatalogItem {
	return models.CatalogItem{
		ID:                p.ID,
		Name:              p.Name,
		UnitPrice:         p.Price,
		AvailableQuantity: p.Stock,
	}
}

type clientDTO struct {
	ID        int64      `json:"id_cliente"`
	FirstName string     `json:"nombre"`
	LastName  string     `json:"apellido"`
	DNI       flexString `json:"dni"`
	Document  flexString `json:"documento"`
	Phone     flexString `json:"telefono"`
	Address   string     `json:"direccion"`
	Email     string     `json:"email"`
}

func (c clientDTO) toModel() models.Client {
	doc := string(c.DNI)
	if doc == "" {
		doc = string(c.Document)
	}
	return models.Client{
		ID:         c.ID,
		FirstName:  strings.TrimSpace(c.FirstName),
		LastName:   strings.TrimSpace(c.LastName),
		DocumentID: strings.TrimSpace(doc),
		Phone:      strings.TrimSpace(string(c.Phone)),
		Address:    c.Address,
		Email:      c.Email,
	}
}

type saleLineDTO struct {
	ItemID   int64 `json:"id_producto"`
	Quantity int   `json:"cantidad"`
}

type saleRequestDTO struct {
	ReceiptTypeID int           `json:"id_tipo_comprobante"`
	ClientID      int64         `json:"id_cliente"`
	Detail        []saleLineDTO `json:"detalle"`
}

func newSaleRequestDTO(req models.SaleRequest) saleRequestDTO {
	dto := saleRequestDTO{
		ReceiptTypeID: req.ReceiptType.Code(),
		ClientID:      req.ClientID,
		Detail:        make([]saleLineDTO, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		dto.Detail = append(dto.Detail, saleLineDTO{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return dto
}

type saleBodyDTO struct {
	SaleID int64  `json:"id_venta"`
	ID     int64  `json:"id"`
	Date   string `json:"fecha"`
}

type saleResponseDTO struct {
	saleBodyDTO
	Data *saleBodyDTO `json:"data"`
}

// confirmation picks the sale id from id_venta, id or data.id_venta
func (r saleResponseDTO) confirmation() models.SaleConfirmation {
	id, date := r.SaleID, r.Date
	if id == 0 {
		id = r.ID
	}
	if r.Data != nil {
		if id == 0 {
			id = r.Data.SaleID
		}
		if id == 0 {
			id = r.Data.ID
		}
		if date == "" {
			date = r.Data.Date
		}
	}
	return models.SaleConfirmation{SaleID: id, Timestamp: parseTimestamp(date)}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp returns the zero time when s matches no known layout
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type loginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponseDTO struct {
	Token string `json:"token"`
	User  struct {
		Name string `json:"nombre"`
		Role string `json:"rol"`
	} `json:"usuario"`
}
