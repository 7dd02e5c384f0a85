package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDue struct {
	upcoming, overdue []models.DueInstallment
	err               error
	days              int
}

func (f *fakeDue) DueInstallments(ctx context.Context, days int) ([]models.DueInstallment, []models.DueInstallment, error) {
	f.days = days
	return f.upcoming, f.overdue, f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   map[int64]bool
	failOn int64
}

func (f *fakeNotifier) SendInstallmentReminder(due models.DueInstallment, overdue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if due.ID == f.failOn {
		return errors.New("mailbox full")
	}
	if f.sent == nil {
		f.sent = map[int64]bool{}
	}
	f.sent[due.ID] = overdue
	return nil
}

func due(id int64) models.DueInstallment {
	return models.DueInstallment{Installment: models.Installment{ID: id}}
}

func TestRun(t *testing.T) {
	log, _ := test.NewNullLogger()
	lister := &fakeDue{
		upcoming: []models.DueInstallment{due(1), due(2)},
		overdue:  []models.DueInstallment{due(3), due(4)},
	}
	notifier := &fakeNotifier{failOn: 2}
	r := NewReminders(&config.Config{ReminderCron: "@daily", ReminderDays: 3}, lister, notifier, log)

	sent, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sent)
	assert.Equal(t, 3, lister.days)
	assert.Equal(t, map[int64]bool{1: false, 3: true, 4: true}, notifier.sent)
}

func TestRunListFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewReminders(&config.Config{ReminderCron: "@daily"}, &fakeDue{err: errors.New("db down")}, &fakeNotifier{}, log)

	sent, err := r.Run(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
}

func TestStart(t *testing.T) {
	log, _ := test.NewNullLogger()

	bad := NewReminders(&config.Config{ReminderCron: "not a schedule"}, &fakeDue{}, &fakeNotifier{}, log)
	assert.Error(t, bad.Start())

	good := NewReminders(&config.Config{ReminderCron: "0 8 * * *"}, &fakeDue{}, &fakeNotifier{}, log)
	require.NoError(t, good.Start())
	assert.Len(t, good.cron.Entries(), 1)
	<-good.Stop().Done()
}
