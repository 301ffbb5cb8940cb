package service

import (
	"context"
	"sync"

	"chatflow/internal/domain"
)

// pairLocks serializes work per conversation pair without blocking
// unrelated pairs. Entries are refcounted and dropped once idle.
type pairLocks struct {
	mu    sync.Mutex
	locks map[domain.PairKey]*pairLock
}

// pairLock is a one-slot semaphore so a waiter can give up on ctx.
type pairLock struct {
	sem  chan struct{}
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[domain.PairKey]*pairLock)}
}

// lock blocks until key is held or ctx is done, and returns the matching
// unlock.
func (p *pairLocks) lock(ctx context.Context, key domain.PairKey) (unlock func(), err error) {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{sem: make(chan struct{}, 1)}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		p.release(key, l)
		return nil, ctx.Err()
	}
	return func() {
		<-l.sem
		p.release(key, l)
	}, nil
}

func (p *pairLocks) release(key domain.PairKey, l *pairLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, key)
	}
}

func (p *pairLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
