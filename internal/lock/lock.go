// Package lock serializes work on one expense across concurrent requests.
//
// Example:
//
//	err := locker.WithLock(ctx, lock.ExpenseKey(id), func(ctx context.Context) error {
//	    _, err := coordinator.Recalculate(ctx, id)
//	    return err
//	})
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrBusy is returned when the lock could not be acquired in time.
	ErrBusy = errors.New("lock busy")

	// ErrEmptyKey is returned for a blank lock key.
	ErrEmptyKey = errors.New("lock key cannot be empty")
)

// Locker runs fn while holding the lock named key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// ExpenseKey is the lock key of an expense.
func ExpenseKey(expenseID string) string {
	return "lock:expense:" + expenseID
}

// Local is an in-process keyed mutex. The zero value is ready to use.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	held chan struct{}
	refs int
}

// NewLocal returns an empty Local locker.
func NewLocal() *Local {
	return &Local{}
}

// WithLock blocks until key is free or ctx is done.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	e := l.acquireEntry(key)
	defer l.releaseEntry(key, e)

	select {
	case e.held <- struct{}{}:
	case <-ctx.Done():
		return errors.Join(ErrBusy, ctx.Err())
	}
	defer func() { <-e.held }()

	return fn(ctx)
}

func (l *Local) acquireEntry(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*localEntry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{held: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
