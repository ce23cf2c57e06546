package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"PlayerSync/internal/player/actors"
	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/codec"
	"PlayerSync/internal/player/entity"
	memcache "PlayerSync/internal/player/infra/cache/memory"
	memstore "PlayerSync/internal/player/infra/persistence/memory"
	"PlayerSync/internal/player/registry"
	"PlayerSync/internal/shared/executor"
	"PlayerSync/internal/shared/metrics"
	"PlayerSync/modules/kit/logx"
)

var errInjected = errors.New("injected store failure")

// spyStore 记录调用，并可以在 GetRecord/UpdateRecord 前卡住或注入失败。
type spyStore struct {
	port.DurableStore

	mu          sync.Mutex
	reads       []time.Time
	updates     []bool
	setLocks    []bool
	getGate     chan struct{}
	updateGate  chan struct{}
	failUpdates int
}

func newSpyStore(inner port.DurableStore) *spyStore {
	return &spyStore{DurableStore: inner}
}

func (s *spyStore) GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error) {
	s.mu.Lock()
	if acquireLock {
		s.reads = append(s.reads, time.Now())
	}
	gate := s.getGate
	s.mu.Unlock()
	if gate != nil && acquireLock {
		<-gate
	}
	return s.DurableStore.GetRecord(ctx, id, acquireLock)
}

func (s *spyStore) UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error {
	s.mu.Lock()
	s.updates = append(s.updates, unlock)
	gate := s.updateGate
	fail := s.failUpdates > 0
	if fail {
		s.failUpdates--
	}
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return errInjected
	}
	return s.DurableStore.UpdateRecord(ctx, id, rec, unlock)
}

func (s *spyStore) SetLock(ctx context.Context, id entity.PlayerID, locked bool) error {
	s.mu.Lock()
	s.setLocks = append(s.setLocks, locked)
	s.mu.Unlock()
	return s.DurableStore.SetLock(ctx, id, locked)
}

func (s *spyStore) readTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.reads...)
}

func (s *spyStore) updateFlags() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.updates...)
}

func (s *spyStore) setLockFlags() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.setLocks...)
}

func (s *spyStore) gateGets(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getGate = ch
}

func (s *spyStore) gateUpdates(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateGate = ch
}

func (s *spyStore) failNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates = n
}

// scriptedCache 前 missFirst 次 TakePayload 假装没有数据。
type scriptedCache struct {
	port.FastCache

	mu        sync.Mutex
	takes     int
	missFirst int
}

func (c *scriptedCache) TakePayload(ctx context.Context, id entity.PlayerID) ([]byte, bool, error) {
	c.mu.Lock()
	c.takes++
	miss := c.takes <= c.missFirst
	c.mu.Unlock()
	if miss {
		return nil, false, nil
	}
	return c.FastCache.TakePayload(ctx, id)
}

func (c *scriptedCache) takeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takes
}

type harness struct {
	svc     *PlayerService
	deps    *actors.Deps
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
}

func testOptions() actors.Options {
	opts := actors.DefaultOptions()
	opts.PersistenceInterval = 0
	opts.LocalRetryDelay = 50 * time.Millisecond
	opts.FastCachePollInterval = 20 * time.Millisecond
	opts.IOTimeout = 5 * time.Second
	return opts
}

func newHarness(t *testing.T, store port.DurableStore, cache port.FastCache, opts actors.Options) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	m := metrics.New()
	deps := &actors.Deps{
		Store:    store,
		Codec:    codec.ProtoCodec{},
		Registry: registry.New(),
		Executor: executor.New(4),
		Metrics:  m,
		Logger:   logx.NewZapLogger(zap.New(core)),
		Options:  opts,
	}
	if cache != nil {
		deps.Cache = cache
		deps.Options.FastCacheEnabled = true
	}
	svc := New(deps)
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &harness{svc: svc, deps: deps, logs: logs, metrics: m}
}

func (h *harness) errorLogs() []observer.LoggedEntry {
	return h.logs.FilterLevelExact(zap.ErrorLevel).All()
}

func (h *harness) state(t *testing.T, id entity.PlayerID) *actors.PlayerState {
	t.Helper()
	st, err := h.svc.State(context.Background(), id)
	if err != nil {
		t.Fatalf("state %s: %v", id, err)
	}
	return st
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待超时: %s", what)
}

func encode(t *testing.T, p entity.Payload) []byte {
	t.Helper()
	data, err := codec.ProtoCodec{}.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func decodeRecord(t *testing.T, store *memstore.Store, id entity.PlayerID) (entity.Payload, *entity.PlayerRecord) {
	t.Helper()
	rec, ok := store.Peek(id)
	if !ok {
		t.Fatalf("记录 %s 不存在", id)
	}
	p, err := codec.ProtoCodec{}.Decode(rec.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p, rec
}

func lockedRecord(id entity.PlayerID, p []byte, lockedAt time.Time) *entity.PlayerRecord {
	return &entity.PlayerRecord{ID: id, Payload: p, Locked: true, LockedAt: lockedAt, UpdatedAt: lockedAt}
}

func newCache() *memcache.Cache {
	return memcache.NewCache()
}
