// Package sales turns raw mapped CSV rows into canonical sale records and
// applies the paid-status filter. Everything here is pure: no I/O, no
// network, so the import driver can rely on normalization never failing a
// batch.
package sales

import (
	"strconv"
	"strings"

	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/mapping"
)

// fallbackName fills the CRM name field when the export has none.
const fallbackName = "Sem nome"

type Address struct {
	Zip     string `json:"zip"`
	Line    string `json:"line"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// NormalizedRow is the canonical sale shape every downstream consumer
// (CRM upsert, label generation, export) works with. Address is nil when
// the export carries no zip.
type NormalizedRow struct {
	Email         string
	Name          string
	Phone         string
	TaxID         string
	TransactionID string
	ProductName   string
	TotalValue    float64
	PurchaseDate  string
	Address       *Address
}

// SkipReason is non-empty when a row must not be sent to the CRM. Skipped
// rows count separately from errors.
type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipInvalidEmail       SkipReason = "email ausente ou invalido"
	SkipMissingTransaction SkipReason = "venda sem codigo de transacao"
	SkipMissingAddress     SkipReason = "venda sem cep de entrega"
)

// Normalize converts one mapped row into a NormalizedRow. The returned
// SkipReason is SkipNone when the row is fit for the CRM; a row without a
// usable email or transaction id is skipped before any network call.
func Normalize(row csvio.Row, m mapping.ColumnMapping) (NormalizedRow, SkipReason) {
	out := normalizeFields(row, m)
	if out.Email == "" {
		return out, SkipInvalidEmail
	}
	if out.TransactionID == "" {
		return out, SkipMissingTransaction
	}
	return out, SkipNone
}

// NormalizeDelivery builds the shipping view of the same row. A label does
// not need an email, but a parcel cannot exist without a transaction id and
// a destination zip.
func NormalizeDelivery(row csvio.Row, m mapping.ColumnMapping) (NormalizedRow, SkipReason) {
	out := normalizeFields(row, m)
	if out.TransactionID == "" {
		return out, SkipMissingTransaction
	}
	if out.Address == nil {
		return out, SkipMissingAddress
	}
	return out, SkipNone
}

func normalizeFields(row csvio.Row, m mapping.ColumnMapping) NormalizedRow {
	name := safeString(row[m.Name])
	if name == "" {
		name = fallbackName
	}

	return NormalizedRow{
		Email:         safeEmail(row[m.Email]),
		Name:          name,
		Phone:         normalizePhone(row[m.Phone]),
		TaxID:         digitsOnly(row[m.TaxID]),
		TransactionID: safeString(row[m.TransactionID]),
		ProductName:   safeString(row[m.Product]),
		TotalValue:    parseTotal(row[m.Total]),
		PurchaseDate:  safeString(row[m.Date]),
		Address:       composeAddress(row, m),
	}
}

func safeString(v string) string {
	return strings.TrimSpace(v)
}

// safeEmail lowercases and trims; anything without both "@" and "." is
// rejected as empty.
func safeEmail(v string) string {
	email := strings.ToLower(safeString(v))
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return ""
	}
	return email
}

// normalizePhone drops one leading "+" and every non-digit after it, so
// "+55 (81) 99999-0000" becomes "5581999990000".
func normalizePhone(v string) string {
	return digitsOnly(strings.TrimPrefix(safeString(v), "+"))
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseTotal reads Brazilian-formatted money ("1.234,56") as well as plain
// decimals. A comma marks the decimal separator, so dots before it are
// thousand separators and are dropped. Unparseable values default to 0 and
// never block the row.
func parseTotal(v string) float64 {
	s := safeString(v)
	if s == "" {
		return 0
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	total, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return total
}

// composeAddress builds the single free-text line the CRM stores:
// "street, number - complement - neighborhood". Returns nil when the row has
// no zip; country is always Brasil.
func composeAddress(row csvio.Row, m mapping.ColumnMapping) *Address {
	zip := digitsOnly(row[m.Zip])
	if zip == "" {
		return nil
	}

	line := safeString(row[m.Address])
	if number := safeString(row[m.Number]); number != "" {
		line += ", " + number
	}
	if complement := safeString(row[m.Complement]); complement != "" {
		line += " - " + complement
	}
	if neighborhood := safeString(row[m.Neighborhood]); neighborhood != "" {
		line += " - " + neighborhood
	}

	return &Address{
		Zip:     zip,
		Line:    line,
		City:    safeString(row[m.City]),
		State:   safeString(row[m.State]),
		Country: "Brasil",
	}
}
