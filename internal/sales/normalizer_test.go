package sales

import (
	"testing"

	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/mapping"
)

var testMapping = mapping.ColumnMapping{
	Email:         "Email",
	Name:          "Nome",
	Phone:         "Telefone",
	TaxID:         "Documento",
	Product:       "Produto",
	TransactionID: "ID",
	Total:         "Valor",
	Status:        "Status",
	StatusFilter:  "Aprovado",
	Zip:           "CEP",
	Address:       "Endereço",
	Number:        "Número",
	Complement:    "Complemento",
	Neighborhood:  "Bairro",
	City:          "Cidade",
	State:         "Estado",
}

func TestNormalize_PaidRowExample(t *testing.T) {
	row := csvio.Row{
		"Email":  "a@b.com",
		"Nome":   "Ana",
		"ID":     "T1",
		"Status": "Aprovado",
		"Valor":  "1.234,56",
	}

	out, skip := Normalize(row, testMapping)

	if skip != SkipNone {
		t.Fatalf("expected row accepted, got skip reason %q", skip)
	}
	if out.Email != "a@b.com" {
		t.Errorf("expected a@b.com, got %q", out.Email)
	}
	if out.Name != "Ana" {
		t.Errorf("expected Ana, got %q", out.Name)
	}
	if out.TransactionID != "T1" {
		t.Errorf("expected T1, got %q", out.TransactionID)
	}
	if out.TotalValue != 1234.56 {
		t.Errorf("expected 1234.56, got %v", out.TotalValue)
	}
	if out.Address != nil {
		t.Errorf("expected no address without zip, got %+v", out.Address)
	}
}

func TestNormalize_EmailLowercasedAndTrimmed(t *testing.T) {
	row := csvio.Row{"Email": "  Ana.Silva@Gmail.COM ", "ID": "T1"}

	out, skip := Normalize(row, testMapping)

	if skip != SkipNone {
		t.Fatalf("expected row accepted, got %q", skip)
	}
	if out.Email != "ana.silva@gmail.com" {
		t.Errorf("expected lowercased email, got %q", out.Email)
	}
}

func TestNormalize_SkipsInvalidEmail(t *testing.T) {
	cases := []string{"", "sem-arroba.com", "sem@ponto", "   "}
	for _, email := range cases {
		row := csvio.Row{"Email": email, "ID": "T1"}
		_, skip := Normalize(row, testMapping)
		if skip != SkipInvalidEmail {
			t.Errorf("email %q: expected SkipInvalidEmail, got %q", email, skip)
		}
	}
}

func TestNormalize_SkipsMissingTransaction(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "  "}

	_, skip := Normalize(row, testMapping)

	if skip != SkipMissingTransaction {
		t.Errorf("expected SkipMissingTransaction, got %q", skip)
	}
}

func TestNormalize_PhoneStripsPlusAndNonDigits(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "Telefone": "+55 (81) 99999-0000"}

	out, _ := Normalize(row, testMapping)

	if out.Phone != "5581999990000" {
		t.Errorf("expected 5581999990000, got %q", out.Phone)
	}
}

func TestNormalize_TaxIDDigitsOnly(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "Documento": "123.456.789-00"}

	out, _ := Normalize(row, testMapping)

	if out.TaxID != "12345678900" {
		t.Errorf("expected 12345678900, got %q", out.TaxID)
	}
}

func TestNormalize_NameFallbackWhenBlank(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "Nome": "  "}

	out, _ := Normalize(row, testMapping)

	if out.Name != "Sem nome" {
		t.Errorf("expected fallback name, got %q", out.Name)
	}
}

func TestNormalize_AddressComposition(t *testing.T) {
	row := csvio.Row{
		"Email":       "a@b.com",
		"ID":          "T1",
		"CEP":         "50.710-000",
		"Endereço":    "Rua das Flores",
		"Número":      "120",
		"Complemento": "Apto 301",
		"Bairro":      "Madalena",
		"Cidade":      "Recife",
		"Estado":      "PE",
	}

	out, _ := Normalize(row, testMapping)

	if out.Address == nil {
		t.Fatal("expected composed address")
	}
	if out.Address.Zip != "50710000" {
		t.Errorf("expected digits-only zip, got %q", out.Address.Zip)
	}
	if out.Address.Line != "Rua das Flores, 120 - Apto 301 - Madalena" {
		t.Errorf("unexpected address line: %q", out.Address.Line)
	}
	if out.Address.Country != "Brasil" {
		t.Errorf("expected Brasil, got %q", out.Address.Country)
	}
	if out.Address.City != "Recife" || out.Address.State != "PE" {
		t.Errorf("unexpected city/state: %q/%q", out.Address.City, out.Address.State)
	}
}

func TestNormalize_AddressOmittedWithoutZip(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "Endereço": "Rua A", "Cidade": "Recife"}

	out, _ := Normalize(row, testMapping)

	if out.Address != nil {
		t.Errorf("expected nil address when zip empty, got %+v", out.Address)
	}
}

func TestNormalize_AddressPartialComposition(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "CEP": "50710000", "Endereço": "Rua A", "Bairro": "Centro"}

	out, _ := Normalize(row, testMapping)

	if out.Address == nil {
		t.Fatal("expected address")
	}
	if out.Address.Line != "Rua A - Centro" {
		t.Errorf("expected number and complement omitted, got %q", out.Address.Line)
	}
}

func TestNormalizeDelivery_EmailOptional(t *testing.T) {
	row := csvio.Row{"ID": "T1", "CEP": "50710000", "Nome": "Ana"}

	out, skip := NormalizeDelivery(row, testMapping)

	if skip != SkipNone {
		t.Fatalf("expected row accepted without email, got %q", skip)
	}
	if out.Email != "" {
		t.Errorf("expected empty email, got %q", out.Email)
	}
	if out.Address == nil || out.Address.Zip != "50710000" {
		t.Errorf("expected address composed, got %+v", out.Address)
	}
}

func TestNormalizeDelivery_RequiresZip(t *testing.T) {
	row := csvio.Row{"Email": "a@b.com", "ID": "T1", "Endereço": "Rua A"}

	_, skip := NormalizeDelivery(row, testMapping)

	if skip != SkipMissingAddress {
		t.Errorf("expected SkipMissingAddress, got %q", skip)
	}
}

func TestNormalizeDelivery_RequiresTransaction(t *testing.T) {
	row := csvio.Row{"CEP": "50710000"}

	_, skip := NormalizeDelivery(row, testMapping)

	if skip != SkipMissingTransaction {
		t.Errorf("expected SkipMissingTransaction, got %q", skip)
	}
}

func TestParseTotal_Formats(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"12,5", 12.5},
		{"12.5", 12.5},
		{"1234", 1234},
		{"R$ 99,90", 99.9},
		{"", 0},
		{"abc", 0},
	}
	for _, c := range cases {
		if got := parseTotal(c.in); got != c.want {
			t.Errorf("parseTotal(%q): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	row := csvio.Row{
		"Email":    "ana@gmail.com",
		"Nome":     "Ana",
		"ID":       "T1",
		"Telefone": "5581999990000",
	}

	first, _ := Normalize(row, testMapping)

	again := csvio.Row{
		"Email":    first.Email,
		"Nome":     first.Name,
		"ID":       first.TransactionID,
		"Telefone": first.Phone,
	}
	second, _ := Normalize(again, testMapping)

	if second.Email != first.Email || second.Phone != first.Phone || second.Name != first.Name {
		t.Errorf("normalization not idempotent: %+v vs %+v", first, second)
	}
}

func TestIsPaid_ExactEquality(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"Aprovado", true},
		{"aprovado", false},
		{"Aprovado ", true}, // cell trimming happens before comparison
		{"Aprovada", false},
		{"", false},
	}
	for _, c := range cases {
		row := csvio.Row{"Status": c.status}
		if got := IsPaid(row, testMapping); got != c.want {
			t.Errorf("status %q: expected %v, got %v", c.status, c.want, got)
		}
	}
}

func TestFilterPaid_CountsDropped(t *testing.T) {
	rows := []csvio.Row{
		{"Status": "Aprovado", "Email": "a@b.com"},
		{"Status": "Pendente", "Email": "c@d.com"},
		{"Status": "Aprovado", "Email": "e@f.com"},
	}

	paid, filtered := FilterPaid(rows, testMapping)

	if len(paid) != 2 {
		t.Errorf("expected 2 paid rows, got %d", len(paid))
	}
	if filtered != 1 {
		t.Errorf("expected 1 filtered row, got %d", filtered)
	}
	if paid[0]["Email"] != "a@b.com" || paid[1]["Email"] != "e@f.com" {
		t.Error("expected file order preserved")
	}
}

func TestDistinctStatuses_FirstAppearanceOrder(t *testing.T) {
	rows := []csvio.Row{
		{"Status": "Pendente"},
		{"Status": "Cancelada"},
		{"Status": "Pendente"},
		{"Status": ""},
	}

	statuses := DistinctStatuses(rows, testMapping)

	if len(statuses) != 2 {
		t.Fatalf("expected 2 distinct statuses, got %v", statuses)
	}
	if statuses[0] != "Pendente" || statuses[1] != "Cancelada" {
		t.Errorf("unexpected order: %v", statuses)
	}
}
