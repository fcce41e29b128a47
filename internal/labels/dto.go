package labels

import "github.com/vendaops/console/internal/mapping"

// ImportOrdersInput carries the uploaded spreadsheet plus how to read it.
// Assembled from a multipart form, hence no json tags.
type ImportOrdersInput struct {
	Filename    string
	Data        []byte
	Platform    string
	Mapping     *mapping.ColumnMapping
	ServiceCode string
}

type ImportOrdersOutput struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	NonPhysical int      `json:"nonPhysical"`
	Filtered    int      `json:"filtered"`
	Orders      []*Order `json:"orders"`
}

type GenerateInput struct {
	IDs []string `json:"ids"`
}

// GenerateResult reports one order's outcome inside a batch run. Error
// carries the carrier refusal; successful entries carry the fresh code.
type GenerateResult struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Etiqueta      string `json:"etiqueta,omitempty"`
	Status        Status `json:"status"`
	Error         string `json:"error,omitempty"`
}

type MergeInput struct {
	IDs             []string `json:"ids"`
	ConfirmMismatch bool     `json:"confirmMismatch"`
}

type PrintInput struct {
	IDs []string `json:"ids"`
}

type PlannedCountInput struct {
	Count int `json:"count"`
}
