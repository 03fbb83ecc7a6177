package store

import (
	"context"
	"sort"
	"sync"

	"meeting-scheduler-api/internal/model"
)

// userLocks is a set of per-user mutexes that can be abandoned on ctx.Done.
type userLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]chan struct{})}
}

func (l *userLocks) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.m[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[id] = ch
	}
	return ch
}

func (l *userLocks) lock(ctx context.Context, ids []string) (func(), error) {
	keys := lockOrder(ids)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, id := range keys {
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func lockOrder(ids []string) []string {
	keys := model.Dedupe(ids)
	sort.Strings(keys)
	return keys
}
