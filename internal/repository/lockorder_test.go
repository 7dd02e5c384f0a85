package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{"empty", nil, []int64{}},
		{"single", []int64{7}, []int64{7}},
		{"already sorted", []int64{1, 2}, []int64{1, 2}},
		{"reversed", []int64{9, 3}, []int64{3, 9}},
		{"duplicates collapse", []int64{5, 2, 5, 2}, []int64{2, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LockOrder(tt.in...))
		})
	}
}

func TestLockOrderIgnoresCallerOrder(t *testing.T) {
	assert.Equal(t, LockOrder(10, 4), LockOrder(4, 10))
}
