package scheduler

import (
	"context"
	"fmt"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DueLister finds pending installments near or past their due date
type DueLister interface {
	DueInstallments(ctx context.Context, days int) (upcoming, overdue []models.DueInstallment, err error)
}

// Notifier delivers one installment reminder
type Notifier interface {
	SendInstallmentReminder(due models.DueInstallment, overdue bool) error
}

// Reminders periodically notifies borrowers about due installments. It never
// changes installment or loan state.
type Reminders struct {
	cron     *cron.Cron
	spec     string
	days     int
	due      DueLister
	notifier Notifier
	log      *logrus.Logger
}

// NewReminders creates the reminder job; call Start to schedule it
func NewReminders(cfg *config.Config, due DueLister, notifier Notifier, log *logrus.Logger) *Reminders {
	logger := cron.PrintfLogger(log)
	return &Reminders{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		spec:     cfg.ReminderCron,
		days:     cfg.ReminderDays,
		due:      due,
		notifier: notifier,
		log:      log,
	}
}

// Start registers the job and starts the cron loop
func (r *Reminders) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		if _, err := r.Run(context.Background()); err != nil {
			r.log.Errorf("Reminder run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reminders %q: %w", r.spec, err)
	}
	r.cron.Start()
	r.log.Infof("Installment reminders scheduled: %s", r.spec)
	return nil
}

// Stop halts scheduling; the returned context is done when a running job finishes
func (r *Reminders) Stop() context.Context {
	return r.cron.Stop()
}

// Run sends one reminder per due installment and returns how many were sent.
// A failed delivery is logged and does not stop the rest.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	upcoming, overdue, err := r.due.DueInstallments(ctx, r.days)
	if err != nil {
		return 0, err
	}

	sent := 0
	send := func(list []models.DueInstallment, isOverdue bool) {
		for _, d := range list {
			if err := r.notifier.SendInstallmentReminder(d, isOverdue); err != nil {
				r.log.WithField("installment_id", d.ID).Warnf("Reminder not delivered: %v", err)
				continue
			}
			sent++
		}
	}
	send(upcoming, false)
	send(overdue, true)

	r.log.Infof("Reminders sent: %d of %d", sent, len(upcoming)+len(overdue))
	return sent, nil
}
