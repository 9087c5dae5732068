// Package memory provides an in-process, per-document lock.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

var _ driven.DocumentLocker = (*Locker)(nil)

// Locker is a keyed mutex. Each document id gets its own one-slot
// channel, dropped again once no caller holds or waits for it.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	slot chan struct{}
	refs int
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock blocks until documentID is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, documentID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[documentID]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		l.locks[documentID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(documentID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			l.release(documentID, e)
		})
	}, nil
}

func (l *Locker) release(documentID string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, documentID)
	}
}

// Held returns the number of document ids with holders or waiters.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
