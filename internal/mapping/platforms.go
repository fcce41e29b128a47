package mapping

import "github.com/vendaops/console/internal/platform"

// platformMappings are the fixed column tables, one per supported platform,
// matching the headers each platform writes in its sales export. Hubla and
// Eduzz exports carry no shipping address, so their address fields stay
// unbound and those platforms cannot feed label generation directly.
var platformMappings = map[platform.Platform]ColumnMapping{
	platform.Hubla: {
		Email:         "Email",
		Name:          "Nome",
		Phone:         "Telefone",
		TaxID:         "Documento",
		Product:       "Produto",
		TransactionID: "ID da fatura",
		Total:         "Total",
		Date:          "Data de criação",
		Status:        "Estado da fatura",
		StatusFilter:  "Paga",
	},
	platform.Hotmart: {
		Email:         "Email",
		Name:          "Nome",
		Phone:         "Telefone",
		TaxID:         "Documento",
		Product:       "Produto",
		TransactionID: "Transação",
		Total:         "Valor",
		Date:          "Data da transação",
		Status:        "Status da compra",
		StatusFilter:  "Aprovado",
		Zip:           "CEP",
		Address:       "Endereço",
		Number:        "Número",
		Complement:    "Complemento",
		Neighborhood:  "Bairro",
		City:          "Cidade",
		State:         "Estado",
	},
	platform.Eduzz: {
		Email:         "E-mail",
		Name:          "Cliente",
		Phone:         "Telefone",
		TaxID:         "CPF/CNPJ",
		Product:       "Produto",
		TransactionID: "Fatura",
		Total:         "Valor",
		Date:          "Data",
		Status:        "Situação",
		StatusFilter:  "Paga",
	},
	platform.Kiwify: {
		Email:         "Email",
		Name:          "Cliente",
		Phone:         "Telefone",
		TaxID:         "CPF",
		Product:       "Produto",
		TransactionID: "ID da venda",
		Total:         "Total",
		Date:          "Data de Criação",
		Status:        "Status",
		StatusFilter:  "paid",
		Zip:           "CEP",
		Address:       "Endereço",
		Number:        "Número",
		Complement:    "Complemento",
		Neighborhood:  "Bairro",
		City:          "Cidade",
		State:         "Estado",
	},
	platform.Woo: {
		Email:         "Billing Email Address",
		Name:          "Billing Full Name",
		Phone:         "Billing Phone Number",
		TaxID:         "Billing CPF",
		Product:       "Product Name",
		TransactionID: "Order Number",
		Total:         "Order Total",
		Date:          "Order Date",
		Status:        "Order Status",
		StatusFilter:  "wc-completed",
		Zip:           "Billing Postcode",
		Address:       "Billing Address 1",
		Number:        "Billing Number",
		Complement:    "Billing Address 2",
		Neighborhood:  "Billing Neighborhood",
		City:          "Billing City",
		State:         "Billing State",
	},
}

// ForPlatform returns the fixed mapping for a platform. Custom has none:
// its mapping travels with the upload.
func ForPlatform(p platform.Platform) (ColumnMapping, bool) {
	m, ok := platformMappings[p]
	return m, ok
}
