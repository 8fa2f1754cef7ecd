package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
)

// InstallmentReminderJob publishes a due-soon event for every unpaid
// installment falling due inside the configured window. Downstream consumers
// turn the events into customer notifications.
type InstallmentReminderJob struct {
	installmentRepo loan.InstallmentRepository
	publisher       event.Publisher
	window          time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

func NewInstallmentReminderJob(
	installmentRepo loan.InstallmentRepository,
	publisher event.Publisher,
	window time.Duration,
	logger *slog.Logger,
) *InstallmentReminderJob {
	if installmentRepo == nil || publisher == nil || logger == nil {
		panic("InstallmentReminderJob dependencies cannot be nil")
	}
	return &InstallmentReminderJob{
		installmentRepo: installmentRepo,
		publisher:       publisher,
		window:          window,
		logger:          logger.With("job", "InstallmentReminder"),
		now:             time.Now,
	}
}

func (j *InstallmentReminderJob) Run(ctx context.Context) error {
	startTime := j.now()
	j.logger.InfoContext(ctx, "Starting installment reminder job.", slog.Duration("window", j.window))

	dueSoon, err := j.installmentRepo.GetInstallmentsDueWithin(ctx, startTime, j.window)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to fetch installments due soon, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to fetch due installments: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched installments due soon.", slog.Int("count", len(dueSoon)))

	if len(dueSoon) == 0 {
		j.logger.InfoContext(ctx, "No installments due within the reminder window.")
		return nil
	}

	var wg sync.WaitGroup
	var publishedCount, errorCount int32

	for _, inst := range dueSoon {
		wg.Add(1)
		go func(current loan.Installment) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("installmentID", current.ID), slog.Int64("loanID", current.LoanID))

			dueEvent := event.NewInstallmentDueSoonEvent(current.ID, current.LoanID, current.Amount, current.DueDate, j.now())
			if pubErr := j.publisher.PublishInstallmentDueSoon(ctx, dueEvent); pubErr != nil {
				logCtx.ErrorContext(ctx, "Failed to publish due-soon event", slog.Any("error", pubErr))
				atomic.AddInt32(&errorCount, 1)
				return
			}
			atomic.AddInt32(&publishedCount, 1)
		}(inst)
	}

	wg.Wait()
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("installments_due", len(dueSoon)),
		slog.Int("reminders_published", int(atomic.LoadInt32(&publishedCount))),
		slog.Int("errors_encountered", int(atomic.LoadInt32(&errorCount))),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Installment reminder job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Installment reminder job finished successfully.")
	return nil
}
