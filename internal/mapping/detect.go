package mapping

import "strings"

// detectionKeywords lists, per field, the substrings that identify a column
// in an unknown export. Matching is case-insensitive substring against the
// header text. The table mixes Portuguese and English synonyms because the
// platforms export in both; extend it here rather than special-casing a
// platform elsewhere.
var detectionKeywords = map[Field][]string{
	FieldEmail:         {"e-mail", "email"},
	FieldName:          {"nome", "name", "cliente", "comprador", "customer"},
	FieldTransactionID: {"transa", "fatura", "pedido", "order", "codigo da venda", "código da venda", "codigo da compra", "código da compra"},
	FieldStatus:        {"status", "situa", "estado da"},
	FieldTotal:         {"valor", "total", "amount", "price"},
	FieldPhone:         {"telefone", "phone", "celular", "whatsapp", "fone"},
	FieldTaxID:         {"cpf", "cnpj", "documento", "document"},
	FieldProduct:       {"produto", "product", "item", "oferta"},
	FieldDate:          {"data", "date", "criado", "created"},
	FieldZip:           {"cep", "zip", "postcode", "postal"},
	FieldAddress:       {"endereco", "endereço", "address", "logradouro", "rua"},
	FieldNumber:        {"numero", "número", "number"},
	FieldComplement:    {"complemento", "complement"},
	FieldNeighborhood:  {"bairro", "neighborhood"},
	FieldCity:          {"cidade", "city", "municipio", "município"},
	FieldState:         {"estado", "state", "uf"},
}

// exactKeywords bind only when the whole header equals the keyword. The bare
// "id" cannot go in the substring table: "Cidade" contains it.
var exactKeywords = map[Field][]string{
	FieldTransactionID: {"id", "codigo", "código"},
}

// Detect proposes a mapping for an unknown export. Fields are tried in a
// fixed priority order; each binds the first header, in file order, whose
// lowercased text contains one of the field's keywords and that no earlier
// field has claimed. First writer wins; the result is a starting point for
// manual override, so StatusFilter is left for the operator to fill.
func Detect(headers []string) ColumnMapping {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(h)
	}

	var m ColumnMapping
	bound := make(map[string]bool, len(headers))
	for _, f := range headerFields() {
		for i, h := range headers {
			if bound[h] {
				continue
			}
			if matchesAny(lowered[i], detectionKeywords[f]) || equalsAny(lowered[i], exactKeywords[f]) {
				m.bind(f, h)
				bound[h] = true
				break
			}
		}
	}
	return m
}

func matchesAny(header string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(header, kw) {
			return true
		}
	}
	return false
}

func equalsAny(header string, keywords []string) bool {
	for _, kw := range keywords {
		if header == kw {
			return true
		}
	}
	return false
}
