package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/jobstore"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/platform"
	"github.com/vendaops/console/internal/sales"
	"github.com/vendaops/console/pkg/rest"
)

// Store is the full job-store surface the service wires: the driver slice
// plus job CRUD, watching and the import lease.
type Store interface {
	JobStore
	Create(ctx context.Context, job jobstore.Job) (jobstore.Job, error)
	Get(ctx context.Context, id string) (jobstore.Job, error)
	List(ctx context.Context) ([]jobstore.Job, error)
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, id string) (<-chan jobstore.Job, func(), error)
	RequestCancel(ctx context.Context, id string) error
	AcquireLease(ctx context.Context, jobID string, ttl time.Duration) (*jobstore.Lease, error)
	ReleaseLease(ctx context.Context, lease *jobstore.Lease) error
}

type Service interface {
	StartImport(ctx context.Context, input StartImportInput) (*jobstore.Job, *rest.ApiErr)
	ResumeImport(ctx context.Context, input ResumeImportInput) (*jobstore.Job, *rest.ApiErr)
	GetJob(ctx context.Context, id string) (*jobstore.Job, *rest.ApiErr)
	ListJobs(ctx context.Context) ([]jobstore.Job, *rest.ApiErr)
	WatchJob(ctx context.Context, id string) (<-chan jobstore.Job, func(), *rest.ApiErr)
	CancelJob(ctx context.Context, id string) *rest.ApiErr
	DeleteJob(ctx context.Context, id string) *rest.ApiErr
	DetectMapping(ctx context.Context, input DetectMappingInput) (*DetectionOutput, *rest.ApiErr)
}

type svc struct {
	store  Store
	driver *Driver
	logger *zap.Logger
}

func NewService(store Store, resolver RowResolver, logger *zap.Logger) Service {
	return &svc{
		store:  store,
		driver: NewDriver(store, resolver, logger),
		logger: logger,
	}
}

// StartImport validates the upload, filters the paid rows and schedules the
// run. Only one import may run at a time: when the lease is held the call
// fails with a conflict naming the running job. A file with no paid rows
// completes immediately, reporting the status values it did find.
func (s *svc) StartImport(ctx context.Context, input StartImportInput) (*jobstore.Job, *rest.ApiErr) {
	plat, m, apiErr := s.resolveMapping(input.Platform, input.Mapping)
	if apiErr != nil {
		return nil, apiErr
	}
	if input.StageID == "" {
		return nil, rest.NewBadRequestError("etapa do funil e obrigatoria")
	}
	if input.DelayMS < 0 {
		return nil, rest.NewBadRequestError("intervalo entre linhas invalido")
	}

	doc, err := csvio.ParseUpload(input.Filename, input.Data)
	if err != nil {
		return nil, rest.NewBadRequestError("nao foi possivel ler o arquivo enviado")
	}
	if v := mapping.ValidateImport(m, doc.Headers); !v.Valid {
		return nil, rest.NewBadRequestValidationError("mapeamento de colunas invalido", missingCauses(v))
	}

	paid, filtered := sales.FilterPaid(doc.Rows, m)

	job := jobstore.Job{
		ID:                 uuid.NewString(),
		Status:             jobstore.StatusPending,
		Platform:           string(plat),
		Filename:           input.Filename,
		StageID:            input.StageID,
		Mapping:            &m,
		DelayMS:            input.DelayMS,
		TotalRows:          len(paid),
		Filtered:           filtered,
		LastProcessedIndex: -1,
		LastMessage:        "importacao agendada",
	}

	if len(paid) == 0 {
		job.Status = jobstore.StatusCompleted
		job.LastMessage = noPaidRowsMessage(doc.Rows, m)
		stored, err := s.store.Create(ctx, job)
		if err != nil {
			s.logger.Error("erro ao registrar importacao", zap.Error(err))
			return nil, rest.NewInternalServerError("erro ao registrar importacao")
		}
		return &stored, nil
	}

	lease, apiErr := s.acquireLease(ctx, job.ID)
	if apiErr != nil {
		return nil, apiErr
	}

	stored, err := s.store.Create(ctx, job)
	if err != nil {
		s.store.ReleaseLease(ctx, lease)
		s.logger.Error("erro ao registrar importacao", zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao registrar importacao")
	}

	s.logger.Info("importacao agendada",
		zap.String("job_id", stored.ID),
		zap.String("platform", stored.Platform),
		zap.Int("rows", len(paid)),
		zap.Int("filtered", filtered))

	go s.runBatch(Batch{
		JobID:      stored.ID,
		StageID:    input.StageID,
		Source:     importSource(stored.Platform),
		Mapping:    m,
		Rows:       paid,
		Delay:      time.Duration(input.DelayMS) * time.Millisecond,
		StartAfter: -1,
		Lease:      lease,
	})

	return &stored, nil
}

// ResumeImport restarts a stopped job from where it left off. The caller
// uploads the same file again; rows up to the stored LastProcessedIndex are
// skipped and the counters keep accumulating on top of the stored ones.
func (s *svc) ResumeImport(ctx context.Context, input ResumeImportInput) (*jobstore.Job, *rest.ApiErr) {
	job, apiErr := s.loadJob(ctx, input.JobID)
	if apiErr != nil {
		return nil, apiErr
	}
	if job.Status == jobstore.StatusCompleted {
		return nil, rest.NewBadRequestError("importacao ja concluida")
	}

	m, apiErr := s.mappingForJob(job)
	if apiErr != nil {
		return nil, apiErr
	}

	doc, err := csvio.ParseUpload(input.Filename, input.Data)
	if err != nil {
		return nil, rest.NewBadRequestError("nao foi possivel ler o arquivo enviado")
	}
	if v := mapping.ValidateImport(m, doc.Headers); !v.Valid {
		return nil, rest.NewBadRequestValidationError("arquivo nao corresponde ao mapeamento original", missingCauses(v))
	}

	paid, _ := sales.FilterPaid(doc.Rows, m)
	// the stored row indexes only make sense against the same paid sequence
	if len(paid) != job.TotalRows {
		return nil, rest.NewBadRequestError("arquivo enviado difere do original da importacao")
	}

	lease, apiErr := s.acquireLease(ctx, job.ID)
	if apiErr != nil {
		return nil, apiErr
	}

	updated, err := s.store.Update(ctx, job.ID, func(j *jobstore.Job) error {
		j.LastMessage = "retomando importacao"
		return nil
	})
	if err != nil {
		s.store.ReleaseLease(ctx, lease)
		s.logger.Error("erro ao retomar importacao", zap.String("job_id", job.ID), zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao retomar importacao")
	}

	s.logger.Info("importacao retomada",
		zap.String("job_id", job.ID),
		zap.Int("last_processed_index", job.LastProcessedIndex))

	go s.runBatch(Batch{
		JobID:      job.ID,
		StageID:    job.StageID,
		Source:     importSource(job.Platform),
		Mapping:    m,
		Rows:       paid,
		Delay:      time.Duration(job.DelayMS) * time.Millisecond,
		StartAfter: job.LastProcessedIndex,
		Lease:      lease,
	})

	return &updated, nil
}

func (s *svc) GetJob(ctx context.Context, id string) (*jobstore.Job, *rest.ApiErr) {
	job, apiErr := s.loadJob(ctx, id)
	if apiErr != nil {
		return nil, apiErr
	}
	return &job, nil
}

func (s *svc) ListJobs(ctx context.Context) ([]jobstore.Job, *rest.ApiErr) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("erro ao listar importacoes", zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao listar importacoes")
	}
	return jobs, nil
}

// WatchJob subscribes to a job's live updates. The cleanup func must be
// called when the watcher is done with the channel.
func (s *svc) WatchJob(ctx context.Context, id string) (<-chan jobstore.Job, func(), *rest.ApiErr) {
	if _, apiErr := s.loadJob(ctx, id); apiErr != nil {
		return nil, nil, apiErr
	}

	updates, cleanup, err := s.store.Watch(ctx, id)
	if err != nil {
		s.logger.Error("erro ao acompanhar importacao", zap.String("job_id", id), zap.Error(err))
		return nil, nil, rest.NewInternalServerError("erro ao acompanhar importacao")
	}
	return updates, cleanup, nil
}

// CancelJob raises the cancel marker for a running import. The driver honors
// it between rows, so cancellation is not immediate.
func (s *svc) CancelJob(ctx context.Context, id string) *rest.ApiErr {
	job, apiErr := s.loadJob(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if job.Status.Terminal() {
		return rest.NewBadRequestError("importacao ja finalizada")
	}

	if err := s.store.RequestCancel(ctx, id); err != nil {
		s.logger.Error("erro ao solicitar cancelamento", zap.String("job_id", id), zap.Error(err))
		return rest.NewInternalServerError("erro ao solicitar cancelamento")
	}
	s.logger.Info("cancelamento solicitado", zap.String("job_id", id))
	return nil
}

// DeleteJob removes a finished job document. Running jobs must be cancelled
// first.
func (s *svc) DeleteJob(ctx context.Context, id string) *rest.ApiErr {
	job, apiErr := s.loadJob(ctx, id)
	if apiErr != nil {
		return apiErr
	}
	if !job.Status.Terminal() {
		return rest.NewBadRequestError("importacao em andamento nao pode ser removida")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("erro ao remover importacao", zap.String("job_id", id), zap.Error(err))
		return rest.NewInternalServerError("erro ao remover importacao")
	}
	return nil
}

// DetectMapping parses the upload and proposes a column mapping from the
// header names alone.
func (s *svc) DetectMapping(ctx context.Context, input DetectMappingInput) (*DetectionOutput, *rest.ApiErr) {
	doc, err := csvio.ParseUpload(input.Filename, input.Data)
	if err != nil {
		return nil, rest.NewBadRequestError("nao foi possivel ler o arquivo enviado")
	}
	if len(doc.Headers) == 0 {
		return nil, rest.NewBadRequestError("arquivo sem cabecalho")
	}

	m := mapping.Detect(doc.Headers)
	return &DetectionOutput{
		Headers:    doc.Headers,
		Mapping:    m,
		Validation: mapping.ValidateImport(m, doc.Headers),
	}, nil
}

// runBatch owns the background run: it drives the rows on a fresh context,
// so an HTTP disconnect does not kill the import, and always gives the
// lease up when done.
func (s *svc) runBatch(batch Batch) {
	ctx := context.Background()
	defer func() {
		if err := s.store.ReleaseLease(ctx, batch.Lease); err != nil {
			s.logger.Warn("erro ao liberar trava de importacao", zap.String("job_id", batch.JobID), zap.Error(err))
		}
	}()

	if err := s.driver.Run(ctx, batch); err != nil {
		s.logger.Error("importacao interrompida", zap.String("job_id", batch.JobID), zap.Error(err))
	}
}

func (s *svc) acquireLease(ctx context.Context, jobID string) (*jobstore.Lease, *rest.ApiErr) {
	lease, err := s.store.AcquireLease(ctx, jobID, leaseTTL)
	if err != nil {
		var held *jobstore.LeaseHeldError
		if errors.As(err, &held) {
			message := "ja existe uma importacao em andamento"
			if held.JobID != "" {
				message = fmt.Sprintf("ja existe uma importacao em andamento: %s", held.JobID)
			}
			return nil, rest.NewConflictError(message)
		}
		s.logger.Error("erro ao adquirir trava de importacao", zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao iniciar importacao")
	}
	return lease, nil
}

// resolveMapping picks the column mapping for a run: a custom mapping wins,
// otherwise the platform's built-in table.
func (s *svc) resolveMapping(platformName string, custom *mapping.ColumnMapping) (platform.Platform, mapping.ColumnMapping, *rest.ApiErr) {
	if custom != nil {
		return platform.Custom, *custom, nil
	}

	plat, err := platform.Parse(platformName)
	if err != nil {
		return "", mapping.ColumnMapping{}, rest.NewBadRequestError(err.Error())
	}
	m, ok := mapping.ForPlatform(plat)
	if !ok {
		return "", mapping.ColumnMapping{}, rest.NewBadRequestError("plataforma exige mapeamento de colunas proprio")
	}
	return plat, m, nil
}

// mappingForJob recovers the column mapping a job was started with. Jobs
// always persist their resolved mapping; the platform table is a fallback
// for documents written without one.
func (s *svc) mappingForJob(job jobstore.Job) (mapping.ColumnMapping, *rest.ApiErr) {
	if job.Mapping != nil {
		return *job.Mapping, nil
	}

	plat, err := platform.Parse(job.Platform)
	if err != nil {
		return mapping.ColumnMapping{}, rest.NewInternalServerError("importacao sem mapeamento valido")
	}
	m, ok := mapping.ForPlatform(plat)
	if !ok {
		return mapping.ColumnMapping{}, rest.NewInternalServerError("importacao sem mapeamento valido")
	}
	return m, nil
}

func (s *svc) loadJob(ctx context.Context, id string) (jobstore.Job, *rest.ApiErr) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return jobstore.Job{}, rest.NewNotFoundError("importacao nao encontrada")
		}
		s.logger.Error("erro ao carregar importacao", zap.String("job_id", id), zap.Error(err))
		return jobstore.Job{}, rest.NewInternalServerError("erro ao carregar importacao")
	}
	return job, nil
}

// importSource names the lead source recorded in the CRM for a run
// ("CSV Hotmart").
func importSource(platformName string) string {
	if plat, err := platform.Parse(platformName); err == nil {
		return "CSV " + plat.DisplayName()
	}
	return "CSV " + platformName
}

// noPaidRowsMessage explains an import that matched nothing: it lists the
// distinct status values seen so the user can spot a wrong filter.
func noPaidRowsMessage(rows []csvio.Row, m mapping.ColumnMapping) string {
	statuses := sales.DistinctStatuses(rows, m)
	if len(statuses) == 0 {
		return fmt.Sprintf("nenhuma venda com status %q no arquivo", m.StatusFilter)
	}
	return fmt.Sprintf("nenhuma venda com status %q no arquivo; status encontrados: %s",
		m.StatusFilter, strings.Join(statuses, ", "))
}

func missingCauses(v mapping.Validation) []rest.Causes {
	causes := make([]rest.Causes, 0, len(v.MissingFields))
	for _, field := range v.MissingFields {
		causes = append(causes, rest.Causes{Field: field, Message: "campo obrigatorio nao mapeado ou ausente no arquivo"})
	}
	return causes
}
