package memory

import (
	"context"
	"sync"
)

// rowLocks hands out one exclusive slot per row key. A slot is a buffered
// channel of size one so a waiter can give up when its context ends.
type rowLocks struct {
	mu   sync.Mutex
	rows map[string]chan struct{}
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: make(map[string]chan struct{})}
}

func (l *rowLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.rows[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.rows[key] = ch
	}
	return ch
}

// acquire blocks until the row is free or ctx is done
func (l *rowLocks) acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *rowLocks) release(key string) {
	<-l.slot(key)
}
