package templates

import (
	"time"

	"github.com/vendaops/console/internal/mapping"
)

// Template kinds. Import templates carry the funnel stage leads land on;
// label templates carry the logo shown on the fulfillment screen.
const (
	KindImport = "import"
	KindLabel  = "label"
)

// Template is a saved column mapping under a user-chosen name, with an
// optional default funnel stage (import kind) or display logo (label kind).
type Template struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Kind      string                `json:"kind"`
	StageID   string                `json:"stageId,omitempty"`
	Logo      string                `json:"logo,omitempty"`
	Mapping   mapping.ColumnMapping `json:"mapping"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

type CreateTemplateInput struct {
	Name    string                `json:"name"`
	Kind    string                `json:"kind"`
	StageID string                `json:"stageId"`
	Logo    string                `json:"logo"`
	Mapping mapping.ColumnMapping `json:"mapping"`
}

type UpdateTemplateInput struct {
	Name    string                `json:"name"`
	Kind    string                `json:"kind"`
	StageID string                `json:"stageId"`
	Logo    string                `json:"logo"`
	Mapping mapping.ColumnMapping `json:"mapping"`
}
