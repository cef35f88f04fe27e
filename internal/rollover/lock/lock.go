// Package lock provides per-source-period mutual exclusion for rollovers.
package lock

import (
	"context"
	"sync"
	"time"

	dErrors "esgledger/pkg/domain-errors"
)

// Locker grants exclusive ownership of a key until release is called.
// A busy key yields a CodeConflict error; an expired context yields
// CodeTimeout.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Keyed is an in-process exact-key lock. Unrelated keys never contend.
type Keyed struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

type KeyedOption func(*Keyed)

// WithWait makes Acquire wait up to d for a busy key instead of failing
// immediately.
func WithWait(d time.Duration) KeyedOption {
	return func(k *Keyed) {
		k.wait = d
	}
}

func NewKeyed(opts ...KeyedOption) *Keyed {
	k := &Keyed{held: make(map[string]chan struct{})}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	var deadline <-chan time.Time
	if k.wait > 0 {
		timer := time.NewTimer(k.wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for rollover lock")
		}

		k.mu.Lock()
		done, busy := k.held[key]
		if !busy {
			done = make(chan struct{})
			k.held[key] = done
			k.mu.Unlock()
			return k.releaser(key, done), nil
		}
		k.mu.Unlock()

		if deadline == nil {
			return nil, busyErr(key)
		}
		select {
		case <-done:
		case <-deadline:
			return nil, busyErr(key)
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for rollover lock")
		}
	}
}

func (k *Keyed) releaser(key string, done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			if k.held[key] == done {
				delete(k.held, key)
			}
			k.mu.Unlock()
			close(done)
		})
	}
}

// Held reports whether key is currently locked.
func (k *Keyed) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}

// Chain acquires every locker in order and releases them in reverse.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Acquire(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func busyErr(key string) error {
	return dErrors.Newf(dErrors.CodeConflict, "a rollover from %s is already in progress", key)
}
