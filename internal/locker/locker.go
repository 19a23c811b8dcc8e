// Package locker serializes read-modify-write cycles on a single aggregate
// (an auction or an account) so that concurrent requests against the same
// record queue up instead of racing, while different records never contend.
package locker

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"auction-market/internal/marketerrors"
)

// ErrLockTimeout is returned when a lock could not be acquired in time. It
// matches marketerrors.ErrConflict: the record is busy with other writers.
var ErrLockTimeout = fmt.Errorf("lock wait timed out: %w", marketerrors.ErrConflict)

// Locker grants exclusive access to a key until the returned unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AuctionKey and AccountKey name the lock of one aggregate.
func AuctionKey(auctionID string) string { return "auction:" + auctionID }
func AccountKey(accountID string) string { return "account:" + accountID }

const shardCount = 64

type keyLock struct {
	ch   chan struct{}
	refs int
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// Local is an in-process Locker. Keys are spread over fixed shards and each
// key's lock is dropped once nobody holds or waits for it.
type Local struct {
	shards [shardCount]shard
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	l := &Local{}
	for i := range l.shards {
		l.shards[i].locks = make(map[string]*keyLock)
	}
	return l
}

func (l *Local) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	s := l.shardFor(key)

	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(s, key, kl, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(s, key, kl, true) })
	}, nil
}

func (l *Local) release(s *shard, key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	s.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// size reports the number of live keys, for tests.
func (l *Local) size() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
