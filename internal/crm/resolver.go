package crm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vendaops/console/internal/sales"
)

// Outcome classifies one row after the CRM round-trip. Errors are not an
// Outcome: they travel back as error and the driver counts them.
type Outcome string

const (
	// OutcomeCreated means a new deal was created for the transaction.
	OutcomeCreated Outcome = "created"
	// OutcomeExists means the lead already had a deal with this
	// transaction id; nothing was written.
	OutcomeExists Outcome = "exists"
	// OutcomeSkipped means no lead could be resolved at all.
	OutcomeSkipped Outcome = "skipped"
)

// API is the slice of the CRM the resolver consumes.
type API interface {
	SearchLeadsByEmail(ctx context.Context, email string) ([]Lead, error)
	CreateLead(ctx context.Context, input CreateLeadInput) (Lead, error)
	PatchLead(ctx context.Context, id string, patch LeadPatch) (Lead, error)
	SearchTagsByName(ctx context.Context, name string) ([]Tag, error)
	ListLeadDeals(ctx context.Context, leadID string) ([]Deal, error)
	CreateDeal(ctx context.Context, input CreateDealInput) (Deal, error)
}

type Resolver struct {
	api    API
	logger *zap.Logger
}

func NewResolver(api API, logger *zap.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// UpsertSale resolves the row's lead (create or adopt), tags it by product
// name and creates the deal unless one with the same transaction id exists.
// source labels leads created here ("CSV Hotmart"). Exactly-once per
// transaction: a re-imported row comes back as OutcomeExists.
func (r *Resolver) UpsertSale(ctx context.Context, row sales.NormalizedRow, stageID, source string) (Outcome, error) {
	lead, err := r.resolveLead(ctx, row, source)
	if err != nil {
		return "", err
	}
	if lead == nil {
		return OutcomeSkipped, nil
	}

	r.ensureTag(ctx, lead, row.ProductName)

	return r.ensureDeal(ctx, lead.ID, stageID, row)
}

// resolveLead finds or creates the lead for the row's email. A duplicate
// contact conflict during creation is recovered by re-searching with the
// email the CRM reported; when that email is absent or the re-search comes
// back empty, the original error is surfaced unchanged.
func (r *Resolver) resolveLead(ctx context.Context, row sales.NormalizedRow, source string) (*Lead, error) {
	leads, err := r.api.SearchLeadsByEmail(ctx, row.Email)
	if err != nil {
		return nil, err
	}

	if len(leads) == 0 {
		created, err := r.api.CreateLead(ctx, CreateLeadInput{
			Name:    row.Name,
			Email:   row.Email,
			Phone:   row.Phone,
			TaxID:   row.TaxID,
			Address: toAddress(row.Address),
			Source:  source,
		})
		if err != nil {
			return r.recoverDuplicate(ctx, err)
		}
		return &created, nil
	}

	lead := leads[0]
	if err := r.patchMissingFields(ctx, &lead, row); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *Resolver) recoverDuplicate(ctx context.Context, createErr error) (*Lead, error) {
	var dup *DuplicateContactError
	if !errors.As(createErr, &dup) || dup.ConflictingEmail == "" {
		return nil, createErr
	}

	leads, err := r.api.SearchLeadsByEmail(ctx, dup.ConflictingEmail)
	if err != nil || len(leads) == 0 {
		// genuine conflict: the CRM says the contact exists but it cannot
		// be found, so the original error stands
		return nil, createErr
	}

	r.logger.Info("lead recovered from duplicate-contact conflict",
		zap.String("email", dup.ConflictingEmail))
	return &leads[0], nil
}

// patchMissingFields fills phone, tax id and address on an adopted lead,
// but only where the lead has nothing yet. Populated fields are never
// overwritten, whatever the CSV says.
func (r *Resolver) patchMissingFields(ctx context.Context, lead *Lead, row sales.NormalizedRow) error {
	var patch LeadPatch
	if row.Phone != "" && lead.Phone == "" {
		patch.Phone = &row.Phone
	}
	if row.TaxID != "" && lead.TaxID == "" {
		patch.TaxID = &row.TaxID
	}
	if row.Address != nil && (lead.Address == nil || lead.Address.Zip == "") {
		patch.Address = toAddress(row.Address)
	}
	if patch.Empty() {
		return nil
	}

	patched, err := r.api.PatchLead(ctx, lead.ID, patch)
	if err != nil {
		return err
	}
	*lead = patched
	return nil
}

// ensureTag attaches the tag matching the product name, preserving the tags
// the lead already carries. Failures here never fail the row.
func (r *Resolver) ensureTag(ctx context.Context, lead *Lead, productName string) {
	if productName == "" {
		return
	}

	tags, err := r.api.SearchTagsByName(ctx, productName)
	if err != nil {
		r.logger.Warn("tag search failed", zap.String("product", productName), zap.Error(err))
		return
	}
	if len(tags) == 0 {
		return
	}

	tag := tags[0]
	refs := make([]TagRef, 0, len(lead.Tags)+1)
	for _, t := range lead.Tags {
		if t.ID == tag.ID {
			return // already attached
		}
		refs = append(refs, TagRef{ID: t.ID})
	}
	refs = append(refs, TagRef{ID: tag.ID})

	if _, err := r.api.PatchLead(ctx, lead.ID, LeadPatch{Tags: refs}); err != nil {
		r.logger.Warn("tag attach failed", zap.String("lead_id", lead.ID), zap.Error(err))
	}
}

// ensureDeal creates the deal unless the lead already has one carrying the
// row's transaction id.
func (r *Resolver) ensureDeal(ctx context.Context, leadID, stageID string, row sales.NormalizedRow) (Outcome, error) {
	deals, err := r.api.ListLeadDeals(ctx, leadID)
	if err != nil {
		return "", err
	}
	for _, deal := range deals {
		if deal.ExternalID == row.TransactionID {
			return OutcomeExists, nil
		}
	}

	_, err = r.api.CreateDeal(ctx, CreateDealInput{
		LeadID:     leadID,
		StageID:    stageID,
		ExternalID: row.TransactionID,
		Total:      row.TotalValue,
	})
	if err != nil {
		return "", err
	}
	return OutcomeCreated, nil
}

func toAddress(a *sales.Address) *Address {
	if a == nil {
		return nil
	}
	return &Address{
		Zip:     a.Zip,
		Line:    a.Line,
		City:    a.City,
		State:   a.State,
		Country: a.Country,
	}
}
