package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vendaops/console/internal/carrier"
	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/database"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/platform"
	"github.com/vendaops/console/internal/sales"
	"github.com/vendaops/console/pkg/rest"
)

// CarrierClient is the slice of the postal middleware the service needs.
type CarrierClient interface {
	PostShipment(ctx context.Context, recipient carrier.Recipient, serviceCode, invoiceNumber string) (string, error)
	PrintLabels(ctx context.Context, codes []string) ([]byte, error)
}

// Config tunes the fulfillment flow. PhysicalMarker selects which product
// names count as physical goods on import; empty keeps every row.
type Config struct {
	PhysicalMarker     string
	DefaultServiceCode string
	CarrierName        string
	TrackingBaseURL    string
	IssueDelay         time.Duration
}

type Service interface {
	ImportOrders(ctx context.Context, input ImportOrdersInput) (*ImportOrdersOutput, *rest.ApiErr)
	ListOrders(ctx context.Context) ([]*Order, *rest.ApiErr)
	SetPlannedCount(ctx context.Context, id string, count int) (*Order, *rest.ApiErr)
	IncrementPlannedCount(ctx context.Context, id string) (*Order, *rest.ApiErr)
	GenerateLabels(ctx context.Context, ids []string) ([]GenerateResult, *rest.ApiErr)
	MergeOrders(ctx context.Context, input MergeInput) (*Order, *rest.ApiErr)
	UnmergeOrder(ctx context.Context, id string) *rest.ApiErr
	ExportTracking(ctx context.Context, ids []string) ([]byte, *rest.ApiErr)
	PrintSheet(ctx context.Context, ids []string) ([]byte, *rest.ApiErr)
}

type svc struct {
	repo    Repository
	carrier CarrierClient
	cfg     Config
	logger  *zap.Logger
}

func NewService(repo Repository, carrierClient CarrierClient, cfg Config, logger *zap.Logger) Service {
	return &svc{repo: repo, carrier: carrierClient, cfg: cfg, logger: logger}
}

// ImportOrders reads a sales spreadsheet and turns its physical-product rows
// into fulfillment orders. Rows already known keep their parcel counters;
// prior shipments are re-seeded from the persisted label records, so a fresh
// upload of an old file never loses progress.
func (s *svc) ImportOrders(ctx context.Context, input ImportOrdersInput) (*ImportOrdersOutput, *rest.ApiErr) {
	m, apiErr := s.resolveMapping(input.Platform, input.Mapping)
	if apiErr != nil {
		return nil, apiErr
	}

	doc, err := csvio.ParseUpload(input.Filename, input.Data)
	if err != nil {
		return nil, rest.NewBadRequestError("nao foi possivel ler o arquivo enviado")
	}
	if v := mapping.ValidateLabels(m, doc.Headers); !v.Valid {
		return nil, rest.NewBadRequestValidationError("mapeamento de colunas invalido", missingCauses(v))
	}

	rows := doc.Rows
	filtered := 0
	// the paid filter only applies when the mapping carries one; label
	// spreadsheets without a status column import every row
	if m.Status != "" && m.StatusFilter != "" {
		rows, filtered = sales.FilterPaid(rows, m)
	}

	orders := make([]*Order, 0, len(rows))
	skipped, nonPhysical := 0, 0
	for _, row := range rows {
		normalized, skip := sales.NormalizeDelivery(row, m)
		if skip != sales.SkipNone {
			skipped++
			continue
		}
		if !s.isPhysical(normalized.ProductName) {
			nonPhysical++
			continue
		}
		orders = append(orders, s.newOrder(normalized, input.ServiceCode))
	}

	if err := s.seedFromRecords(ctx, orders); err != nil {
		s.logger.Error("erro ao carregar historico de etiquetas", zap.Error(err))
		return nil, handleDBError(err, "")
	}
	if len(orders) > 0 {
		if err := s.repo.UpsertOrders(ctx, orders); err != nil {
			s.logger.Error("erro ao gravar pedidos", zap.Error(err))
			return nil, handleDBError(err, "")
		}
	}

	visible, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, handleDBError(err, "")
	}

	s.logger.Info("pedidos importados",
		zap.Int("imported", len(orders)),
		zap.Int("skipped", skipped),
		zap.Int("non_physical", nonPhysical),
		zap.Int("filtered", filtered))

	return &ImportOrdersOutput{
		Imported:    len(orders),
		Skipped:     skipped,
		NonPhysical: nonPhysical,
		Filtered:    filtered,
		Orders:      visible,
	}, nil
}

func (s *svc) ListOrders(ctx context.Context) ([]*Order, *rest.ApiErr) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		s.logger.Error("erro ao listar pedidos", zap.Error(err))
		return nil, handleDBError(err, "")
	}
	return orders, nil
}

func (s *svc) SetPlannedCount(ctx context.Context, id string, count int) (*Order, *rest.ApiErr) {
	order, apiErr := s.loadOrder(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	if order.FoldedInto != "" {
		return nil, rest.NewBadRequestError("pedido esta oculto por uma mesclagem")
	}
	if err := order.SetPlannedCount(count); err != nil {
		return nil, rest.NewBadRequestError(err.Error())
	}
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, handleDBError(err, "pedido nao encontrado")
	}
	return order, nil
}

func (s *svc) IncrementPlannedCount(ctx context.Context, id string) (*Order, *rest.ApiErr) {
	order, apiErr := s.loadOrder(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	if order.FoldedInto != "" {
		return nil, rest.NewBadRequestError("pedido esta oculto por uma mesclagem")
	}
	if err := order.IncrementPlannedCount(); err != nil {
		return nil, rest.NewBadRequestError(err.Error())
	}
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, handleDBError(err, "pedido nao encontrado")
	}
	return order, nil
}

// GenerateLabels issues the next label of each selected order, strictly in
// the order given and one carrier call at a time. A refused call flags that
// order and the batch moves on; the configured delay spaces the calls out.
func (s *svc) GenerateLabels(ctx context.Context, ids []string) ([]GenerateResult, *rest.ApiErr) {
	orders, apiErr := s.ordersByID(ctx, ids)
	if apiErr != nil {
		return nil, apiErr
	}

	results := make([]GenerateResult, 0, len(orders))
	called := false
	for _, order := range orders {
		if err := order.CanIssue(); err != nil {
			results = append(results, GenerateResult{
				OrderID:       order.ID,
				TransactionID: displayTransaction(order),
				Status:        order.Status,
				Error:         err.Error(),
			})
			continue
		}

		if called && s.cfg.IssueDelay > 0 {
			select {
			case <-ctx.Done():
				return results, nil
			case <-time.After(s.cfg.IssueDelay):
			}
		}
		called = true

		result, apiErr := s.issueLabel(ctx, order)
		if apiErr != nil {
			return nil, apiErr
		}
		results = append(results, result)
	}

	return results, nil
}

// issueLabel runs one carrier call and persists its outcome: on success the
// code joins the order and one record per original purchase is written; on
// refusal the order enters the error state with its issued count untouched.
func (s *svc) issueLabel(ctx context.Context, order *Order) (GenerateResult, *rest.ApiErr) {
	etiqueta, err := s.carrier.PostShipment(ctx, recipientFor(order), s.serviceCodeFor(order), "")
	if err != nil {
		order.MarkError()
		if updErr := s.repo.UpdateOrder(ctx, order); updErr != nil {
			s.logger.Error("erro ao gravar falha de postagem", zap.String("order_id", order.ID), zap.Error(updErr))
		}
		s.logger.Warn("postagem recusada",
			zap.String("order_id", order.ID),
			zap.String("transaction_id", displayTransaction(order)),
			zap.Error(err))
		return GenerateResult{
			OrderID:       order.ID,
			TransactionID: displayTransaction(order),
			Status:        order.Status,
			Error:         err.Error(),
		}, nil
	}

	if err := order.RegisterLabel(etiqueta); err != nil {
		return GenerateResult{
			OrderID:       order.ID,
			TransactionID: displayTransaction(order),
			Status:        order.Status,
			Error:         err.Error(),
		}, nil
	}
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return GenerateResult{}, handleDBError(err, "pedido nao encontrado")
	}

	records := make([]Record, 0, len(order.TransactionIDs()))
	for _, txID := range order.TransactionIDs() {
		records = append(records, Record{
			ID:            uuid.NewString(),
			TransactionID: txID,
			Etiqueta:      etiqueta,
			Recipient:     order.Name,
			Zip:           order.Zip,
			EnvioNumero:   order.IssuedCount,
			EnviosTotal:   order.PlannedCount,
		})
	}
	if err := s.repo.SaveRecords(ctx, records); err != nil {
		return GenerateResult{}, handleDBError(err, "")
	}

	s.logger.Info("etiqueta emitida",
		zap.String("order_id", order.ID),
		zap.String("etiqueta", etiqueta),
		zap.Int("envio", order.IssuedCount),
		zap.Int("total", order.PlannedCount))

	return GenerateResult{
		OrderID:       order.ID,
		TransactionID: displayTransaction(order),
		Etiqueta:      etiqueta,
		Status:        order.Status,
	}, nil
}

// MergeOrders folds the selected pending orders into one synthetic order
// shipping as a single parcel. Recipient emails must match unless the caller
// confirms the mismatch.
func (s *svc) MergeOrders(ctx context.Context, input MergeInput) (*Order, *rest.ApiErr) {
	orders, apiErr := s.ordersByID(ctx, input.IDs)
	if apiErr != nil {
		return nil, apiErr
	}

	merged, err := MergeOrders(orders, input.ConfirmMismatch)
	if err != nil {
		if errors.Is(err, ErrEmailMismatch) {
			return nil, rest.NewConflictError("pedidos com emails de destinatarios diferentes; confirme para mesclar mesmo assim")
		}
		return nil, rest.NewBadRequestError(err.Error())
	}

	if err := s.repo.CreateMerged(ctx, merged, input.IDs); err != nil {
		s.logger.Error("erro ao mesclar pedidos", zap.Error(err))
		return nil, handleDBError(err, "")
	}

	s.logger.Info("pedidos mesclados",
		zap.String("merged_id", merged.ID),
		zap.Strings("transactions", merged.MergedTxIDs))
	return merged, nil
}

// UnmergeOrder removes a synthetic order and restores the originals it hid.
// Refused once the merged shipment has issued labels, which would otherwise
// dangle without an order.
func (s *svc) UnmergeOrder(ctx context.Context, id string) *rest.ApiErr {
	order, apiErr := s.loadOrder(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if !order.IsMerged {
		return rest.NewBadRequestError("pedido nao e uma mesclagem")
	}
	if order.IssuedCount > 0 {
		return rest.NewBadRequestError("pedido mesclado ja possui etiquetas emitidas")
	}

	if err := s.repo.DeleteMerged(ctx, id); err != nil {
		s.logger.Error("erro ao desfazer mesclagem", zap.String("order_id", id), zap.Error(err))
		return handleDBError(err, "pedido nao encontrado")
	}
	return nil
}

// ExportTracking renders the logistics CSV for the selected orders, one row
// per original purchase.
func (s *svc) ExportTracking(ctx context.Context, ids []string) ([]byte, *rest.ApiErr) {
	orders, apiErr := s.ordersByID(ctx, ids)
	if apiErr != nil {
		return nil, apiErr
	}
	return buildTrackingCSV(orders, s.cfg), nil
}

// PrintSheet renders the combined label sheet PDF for every code the
// selected orders have issued.
func (s *svc) PrintSheet(ctx context.Context, ids []string) ([]byte, *rest.ApiErr) {
	orders, apiErr := s.ordersByID(ctx, ids)
	if apiErr != nil {
		return nil, apiErr
	}

	codes := []string{}
	for _, order := range orders {
		codes = append(codes, order.Labels...)
	}
	if len(codes) == 0 {
		return nil, rest.NewBadRequestError("nenhuma etiqueta emitida para os pedidos selecionados")
	}

	sheet, err := s.carrier.PrintLabels(ctx, codes)
	if err != nil {
		s.logger.Error("erro ao imprimir etiquetas", zap.Error(err))
		return nil, rest.NewInternalServerError("falha ao imprimir etiquetas")
	}
	return sheet, nil
}

func (s *svc) newOrder(row sales.NormalizedRow, serviceCode string) *Order {
	if serviceCode == "" {
		serviceCode = s.cfg.DefaultServiceCode
	}
	return &Order{
		ID:            uuid.NewString(),
		TransactionID: row.TransactionID,
		Name:          row.Name,
		Email:         row.Email,
		Phone:         row.Phone,
		TaxID:         row.TaxID,
		Zip:           row.Address.Zip,
		AddressLine:   row.Address.Line,
		City:          row.Address.City,
		State:         row.Address.State,
		ProductName:   row.ProductName,
		PurchaseDate:  row.PurchaseDate,
		ServiceCode:   serviceCode,
		PlannedCount:  1,
		Status:        StatusPending,
	}
}

// seedFromRecords replays the issued-label history onto freshly parsed
// orders, so re-importing a file shows shipments already made. Orders the
// database already knows keep their own row on upsert regardless.
func (s *svc) seedFromRecords(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.TransactionID)
	}
	history, err := s.repo.RecordsByTransactionIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, o := range orders {
		records := history[o.TransactionID]
		if len(records) == 0 {
			continue
		}
		for _, rec := range records {
			o.Labels = append(o.Labels, rec.Etiqueta)
		}
		o.IssuedCount = len(records)
		o.PlannedCount = max(records[len(records)-1].EnviosTotal, o.IssuedCount)
		o.recompute()
	}
	return nil
}

func (s *svc) isPhysical(productName string) bool {
	if s.cfg.PhysicalMarker == "" {
		return true
	}
	return strings.Contains(strings.ToLower(productName), strings.ToLower(s.cfg.PhysicalMarker))
}

func (s *svc) serviceCodeFor(order *Order) string {
	if order.ServiceCode != "" {
		return order.ServiceCode
	}
	return s.cfg.DefaultServiceCode
}

// ordersByID loads the selected orders preserving the request order, which
// fixes the sequence of carrier calls and export rows.
func (s *svc) ordersByID(ctx context.Context, ids []string) ([]*Order, *rest.ApiErr) {
	if len(ids) == 0 {
		return nil, rest.NewBadRequestError("nenhum pedido selecionado")
	}

	fetched, err := s.repo.GetOrders(ctx, ids)
	if err != nil {
		s.logger.Error("erro ao carregar pedidos", zap.Error(err))
		return nil, handleDBError(err, "")
	}

	byID := make(map[string]*Order, len(fetched))
	for _, o := range fetched {
		byID[o.ID] = o
	}

	orders := make([]*Order, 0, len(ids))
	for _, id := range ids {
		order, ok := byID[id]
		if !ok {
			return nil, rest.NewNotFoundError(fmt.Sprintf("pedido %s nao encontrado", id))
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *svc) loadOrder(ctx context.Context, id string) (*Order, *rest.ApiErr) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, handleDBError(err, "pedido nao encontrado")
	}
	return order, nil
}

// resolveMapping picks the column mapping for an upload: a custom mapping
// wins, otherwise the platform's built-in table.
func (s *svc) resolveMapping(platformName string, custom *mapping.ColumnMapping) (mapping.ColumnMapping, *rest.ApiErr) {
	if custom != nil {
		return *custom, nil
	}

	plat, err := platform.Parse(platformName)
	if err != nil {
		return mapping.ColumnMapping{}, rest.NewBadRequestError(err.Error())
	}
	m, ok := mapping.ForPlatform(plat)
	if !ok {
		return mapping.ColumnMapping{}, rest.NewBadRequestError("plataforma exige mapeamento de colunas proprio")
	}
	return m, nil
}

func recipientFor(order *Order) carrier.Recipient {
	return carrier.Recipient{
		Nome:     order.Name,
		Email:    order.Email,
		Telefone: order.Phone,
		CpfCnpj:  order.TaxID,
		Cep:      order.Zip,
		Endereco: order.AddressLine,
		Cidade:   order.City,
		Uf:       order.State,
	}
}

func displayTransaction(order *Order) string {
	return strings.Join(order.TransactionIDs(), ", ")
}

func handleDBError(err error, notFoundMessage string) *rest.ApiErr {
	if errors.Is(err, pgx.ErrNoRows) {
		if notFoundMessage == "" {
			notFoundMessage = "registro nao encontrado"
		}
		return rest.NewNotFoundError(notFoundMessage)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return database.GetError(pgErr, pgErr.ConstraintName)
	}
	return rest.NewInternalServerError("erro interno do servidor")
}

func missingCauses(v mapping.Validation) []rest.Causes {
	causes := make([]rest.Causes, 0, len(v.MissingFields))
	for _, field := range v.MissingFields {
		causes = append(causes, rest.Causes{Field: field, Message: "campo obrigatorio nao mapeado ou ausente no arquivo"})
	}
	return causes
}
