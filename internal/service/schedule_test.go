package service

import (
	"testing"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallmentAmount(t *testing.T) {
	tests := []struct {
		principal string
		rate      string
		term      int
		want      string
	}{
		{"1000.00", "0.12", 12, "93.33"},
		{"500.00", "0.10", 6, "87.50"},
		{"100.00", "0.05", 3, "33.75"},
		{"1000.00", "0", 12, "83.33"},
		{"1.00", "0.06", 1, "1.01"}, // 1.005 rounds away from zero
		{"2500.00", "0.0799", 24, "120.81"},
	}
	for _, tt := range tests {
		t.Run(tt.principal+"@"+tt.rate, func(t *testing.T) {
			got := InstallmentAmount(dec(tt.principal), dec(tt.rate), tt.term)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestAddMonths(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"clamps to february", day(2025, time.January, 31), 1, day(2025, time.February, 28)},
		{"leap year", day(2024, time.January, 31), 1, day(2024, time.February, 29)},
		{"long month keeps day", day(2025, time.January, 31), 2, day(2025, time.March, 31)},
		{"crosses year", day(2025, time.March, 15), 10, day(2026, time.January, 15)},
		{"december end", day(2025, time.December, 31), 2, day(2026, time.February, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addMonths(tt.from, tt.months))
		})
	}
}

func TestBuildSchedule(t *testing.T) {
	schedule := BuildSchedule(7, dec("1000.00"), dec("0.12"), 12, contractDay)

	require.Len(t, schedule, 12)
	for i, inst := range schedule {
		assert.Equal(t, int64(7), inst.LoanID)
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, "93.33", inst.Amount.StringFixed(2))
		assert.Equal(t, models.InstallmentPending, inst.Status)
		assert.True(t, inst.AmountPaid.IsZero())
	}
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), schedule[11].DueDate)
}
