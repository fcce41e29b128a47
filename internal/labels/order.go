// Package labels manages shipping-label fulfillment for physical-product
// sales: one order per purchase, a parcel counter per order, tracking codes
// issued one carrier call at a time, and merge support for shipping several
// purchases in a single box.
package labels

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of one fulfillment order. It is always derived from the relation
// between issued and planned parcels; error is a side state entered when a
// carrier call fails and left by issuing again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusGenerated Status = "generated"
	StatusError     Status = "error"
)

const (
	minParcels = 1
	maxParcels = 4
)

// ErrEmailMismatch marks a merge over orders addressed to different emails.
// The caller may retry with explicit confirmation.
var ErrEmailMismatch = errors.New("pedidos com emails de destinatarios diferentes")

// Order is one physical delivery to fulfill. Merged orders are synthetic:
// they carry the transaction ids and product names of the originals, which
// stay persisted but hidden behind FoldedInto until unmerged.
type Order struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId,omitempty"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	TaxID         string    `json:"taxId,omitempty"`
	Zip           string    `json:"zip"`
	AddressLine   string    `json:"addressLine,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	ProductName   string    `json:"productName,omitempty"`
	PurchaseDate  string    `json:"purchaseDate,omitempty"`
	ServiceCode   string    `json:"serviceCode,omitempty"`
	PlannedCount  int       `json:"plannedCount"`
	IssuedCount   int       `json:"issuedCount"`
	Status        Status    `json:"status"`
	Labels        []string  `json:"labels"`
	IsMerged      bool      `json:"isMerged"`
	MergedTxIDs   []string  `json:"mergedTransactions,omitempty"`
	MergedNames   []string  `json:"mergedProductNames,omitempty"`
	FoldedInto    string    `json:"foldedInto,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SetPlannedCount fixes how many parcels the order ships in. Only allowed
// before the first label exists, and capped at the carrier sheet limit.
func (o *Order) SetPlannedCount(n int) error {
	if o.Status != StatusPending {
		return errors.New("quantidade de volumes so pode ser alterada com o pedido pendente")
	}
	if n < minParcels || n > maxParcels {
		return fmt.Errorf("quantidade de volumes deve estar entre %d e %d", minParcels, maxParcels)
	}
	o.PlannedCount = n
	return nil
}

// IncrementPlannedCount adds one parcel to a partially shipped order,
// reopening it for another label without touching the codes already issued.
func (o *Order) IncrementPlannedCount() error {
	if o.Status != StatusPartial {
		return errors.New("volumes adicionais so podem ser incluidos em envios parciais")
	}
	if o.PlannedCount >= maxParcels {
		return fmt.Errorf("pedido ja esta no limite de %d volumes", maxParcels)
	}
	o.PlannedCount++
	o.recompute()
	return nil
}

// CanIssue reports whether another carrier call is legal for this order.
func (o *Order) CanIssue() error {
	if o.FoldedInto != "" {
		return errors.New("pedido esta oculto por uma mesclagem")
	}
	if o.IssuedCount >= o.PlannedCount {
		return errors.New("pedido ja possui todas as etiquetas")
	}
	return nil
}

// RegisterLabel appends a freshly issued tracking code and re-derives the
// fulfillment state. The issued count never passes the planned count.
func (o *Order) RegisterLabel(code string) error {
	if err := o.CanIssue(); err != nil {
		return err
	}
	o.Labels = append(o.Labels, code)
	o.IssuedCount++
	o.recompute()
	return nil
}

// MarkError flags a failed carrier call. Issued codes are untouched, so the
// order can be retried by selecting it again.
func (o *Order) MarkError() {
	if o.IssuedCount < o.PlannedCount {
		o.Status = StatusError
	}
}

// recompute derives the status from the issued/planned relation, clearing
// any error flag once a call succeeds.
func (o *Order) recompute() {
	switch {
	case o.IssuedCount == 0:
		o.Status = StatusPending
	case o.IssuedCount < o.PlannedCount:
		o.Status = StatusPartial
	default:
		o.Status = StatusGenerated
	}
}

// TransactionIDs expands the order to the purchase codes it covers: the
// folded originals for a merged order, its own id otherwise.
func (o *Order) TransactionIDs() []string {
	if o.IsMerged {
		return o.MergedTxIDs
	}
	return []string{o.TransactionID}
}

// ProductNameFor returns the product sold under one of the order's
// transaction ids, honoring the original pairing inside a merge.
func (o *Order) ProductNameFor(transactionID string) string {
	if !o.IsMerged {
		return o.ProductName
	}
	for i, id := range o.MergedTxIDs {
		if id == transactionID && i < len(o.MergedNames) {
			return o.MergedNames[i]
		}
	}
	return o.ProductName
}

// MergeOrders folds two or more pending orders into one synthetic order that
// ships as a single parcel. Recipient data comes from the first order; a
// recipient email mismatch is refused unless explicitly confirmed.
func MergeOrders(orders []*Order, confirmMismatch bool) (*Order, error) {
	if len(orders) < 2 {
		return nil, errors.New("mesclagem exige ao menos dois pedidos")
	}
	for _, o := range orders {
		if o.IsMerged || o.FoldedInto != "" {
			return nil, fmt.Errorf("pedido %s ja participa de uma mesclagem", o.TransactionID)
		}
		if o.Status != StatusPending {
			return nil, fmt.Errorf("pedido %s nao esta pendente", o.TransactionID)
		}
	}
	if !confirmMismatch && !sameRecipientEmail(orders) {
		return nil, ErrEmailMismatch
	}

	base := orders[0]
	merged := &Order{
		ID:           uuid.NewString(),
		Name:         base.Name,
		Email:        base.Email,
		Phone:        base.Phone,
		TaxID:        base.TaxID,
		Zip:          base.Zip,
		AddressLine:  base.AddressLine,
		City:         base.City,
		State:        base.State,
		PurchaseDate: base.PurchaseDate,
		ServiceCode:  base.ServiceCode,
		PlannedCount: 1,
		Status:       StatusPending,
		IsMerged:     true,
	}
	for _, o := range orders {
		merged.MergedTxIDs = append(merged.MergedTxIDs, o.TransactionID)
		merged.MergedNames = append(merged.MergedNames, o.ProductName)
	}
	merged.ProductName = strings.Join(merged.MergedNames, " + ")
	return merged, nil
}

func sameRecipientEmail(orders []*Order) bool {
	first := orders[0].Email
	for _, o := range orders[1:] {
		if !strings.EqualFold(o.Email, first) {
			return false
		}
	}
	return true
}
