package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vendaops/console/internal/email"
	"github.com/vendaops/console/internal/marketing"
)

// ContactSyncer defines the interface for running one marketing sync cycle
type ContactSyncer interface {
	RunCycle(ctx context.Context) (marketing.Report, error)
}

// failureAlertThreshold is how many consecutive failed cycles it takes
// before anyone gets emailed. A single flaky cycle heals on the next tick.
const failureAlertThreshold = 3

const syncTimeout = 10 * time.Minute

type Scheduler struct {
	cron            *cron.Cron
	syncer          ContactSyncer
	logger          *zap.Logger
	email           email.Email
	alertRecipients []string
}

func NewScheduler(syncer ContactSyncer, logger *zap.Logger, e email.Email, alertRecipients []string) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithSeconds()),
		syncer:          syncer,
		logger:          logger,
		email:           e,
		alertRecipients: alertRecipients,
	}
}

// Start initializes the scheduler with the contact sync job
// cronExpr uses 6 fields: seconds, minutes, hours, day of month, month, day of week
// Example: "0 */15 * * * *" runs every 15 minutes
func (s *Scheduler) Start(cronExpr string) error {
	_, err := s.cron.AddFunc(cronExpr, s.runContactSyncJob)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("cron_expression", cronExpr))

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// runContactSyncJob runs one marketing sync cycle and escalates to email
// once failures repeat
func (s *Scheduler) runContactSyncJob() {
	s.logger.Info("starting contact sync job")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	report, err := s.syncer.RunCycle(ctx)
	if err != nil {
		if report.ConsecutiveFailures >= failureAlertThreshold {
			s.notifyError("sincronizacao de contatos com o marketing falhou", err, report.ConsecutiveFailures)
			return
		}
		s.logger.Error("contact sync failed",
			zap.Error(err),
			zap.Int("consecutive_failures", report.ConsecutiveFailures),
		)
		return
	}

	if report.Skipped {
		s.logger.Info("contact sync skipped, import in progress")
		return
	}

	s.logger.Info("contact sync job completed",
		zap.Int("pushed", report.Pushed),
		zap.Time("cursor", report.Cursor),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// RunNow executes the contact sync job immediately (for manual triggers)
func (s *Scheduler) RunNow() {
	go s.runContactSyncJob()
}

// notifyError logs the error and sends an email notification to alert recipients
func (s *Scheduler) notifyError(context string, err error, failures int) {
	s.logger.Error(context,
		zap.Error(err),
		zap.Int("consecutive_failures", failures),
	)

	if len(s.alertRecipients) == 0 {
		return
	}

	subject := "⚠️ Erro no Scheduler - " + context
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	textBody := fmt.Sprintf("Contexto: %s\nErro: %v\nFalhas consecutivas: %d\nHorário: %s", context, err, failures, timestamp)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<style>
		body { font-family: Arial, sans-serif; }
		.error-box { background-color: #ffebee; border-left: 4px solid #f44336; padding: 16px; margin: 20px 0; }
		.label { font-weight: bold; color: #333; }
		.value { color: #666; }
	</style>
</head>
<body>
	<h2 style="color: #f44336;">⚠️ Erro no Scheduler</h2>
	<div class="error-box">
		<p><span class="label">Contexto:</span> <span class="value">%s</span></p>
		<p><span class="label">Erro:</span> <span class="value">%v</span></p>
		<p><span class="label">Falhas consecutivas:</span> <span class="value">%d</span></p>
		<p><span class="label">Horário:</span> <span class="value">%s</span></p>
	</div>
</body>
</html>`, context, err, failures, timestamp)

	if sendErr := s.email.Send(subject, textBody, htmlBody, s.alertRecipients); sendErr != nil {
		s.logger.Error("failed to send error notification email",
			zap.Error(sendErr),
			zap.String("original_error_context", context),
		)
	}
}
