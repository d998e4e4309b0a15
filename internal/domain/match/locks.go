package match

import (
	"context"
	"sort"
	"sync"
	"time"
)

// keyedLocks hands out one mutex per player ID so that updates touching
// the same player serialize while unrelated matches proceed in parallel.
// Entries are refcounted and removed once nobody holds or waits on them.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

func (k *keyedLocks) retain(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *keyedLocks) releaseEntry(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// acquire takes the lock for key, waiting at most timeout.
func (k *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	e := k.retain(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-timer.C:
		k.releaseEntry(key, e)
		return ErrLockTimeout
	case <-ctx.Done():
		k.releaseEntry(key, e)
		return ctx.Err()
	}
}

// release frees the lock for key. The caller must hold it.
func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return
	}

	<-e.ch
	k.releaseEntry(key, e)
}

// acquirePair takes both player locks in lexicographic order so that two
// matches over the same pair can never deadlock against each other.
func (k *keyedLocks) acquirePair(ctx context.Context, a, b string, timeout time.Duration) error {
	keys := []string{a, b}
	sort.Strings(keys)

	if err := k.acquire(ctx, keys[0], timeout); err != nil {
		return err
	}
	if err := k.acquire(ctx, keys[1], timeout); err != nil {
		k.release(keys[0])
		return err
	}
	return nil
}

// releasePair frees both player locks.
func (k *keyedLocks) releasePair(a, b string) {
	k.release(a)
	k.release(b)
}
