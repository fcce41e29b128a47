// Package crm wraps the CRM's REST API behind typed operations and carries
// the lead-upsert logic the import pipeline runs per row: resolve the lead,
// recover duplicate-contact conflicts, tag by product and create the deal
// exactly once per transaction id.
package crm

import "time"

// Address is the CRM wire shape for a lead's address.
type Address struct {
	Zip     string `json:"zip"`
	Line    string `json:"line"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagRef references a tag by id inside a lead patch.
type TagRef struct {
	ID string `json:"id"`
}

type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	TaxID     string    `json:"taxId,omitempty"`
	Address   *Address  `json:"address,omitempty"`
	Tags      []Tag     `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateLeadInput struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone,omitempty"`
	TaxID   string   `json:"taxId,omitempty"`
	Address *Address `json:"address,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// LeadPatch is a partial update: nil fields are left untouched by the CRM.
type LeadPatch struct {
	Phone   *string  `json:"phone,omitempty"`
	TaxID   *string  `json:"taxId,omitempty"`
	Address *Address `json:"address,omitempty"`
	Tags    []TagRef `json:"tags,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p LeadPatch) Empty() bool {
	return p.Phone == nil && p.TaxID == nil && p.Address == nil && p.Tags == nil
}

// Deal is the CRM's sale record ("business"). ExternalID carries the
// checkout platform's transaction id and is the idempotency key.
type Deal struct {
	ID         string  `json:"id"`
	LeadID     string  `json:"leadId"`
	StageID    string  `json:"stageId"`
	ExternalID string  `json:"externalId"`
	Total      float64 `json:"total"`
}

type CreateDealInput struct {
	LeadID     string  `json:"leadId"`
	StageID    string  `json:"stageId"`
	ExternalID string  `json:"externalId"`
	Total      float64 `json:"total"`
}
