package memory

import (
	"context"
	"sync"
	"time"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

// Store 是进程内的 DurableStore，单机部署和测试用。
// 多个协调器共享同一个 Store 时，它就是“共享的权威存储”。
type Store struct {
	mu      sync.Mutex
	records map[entity.PlayerID]*entity.PlayerRecord
	now     func() time.Time
}

var _ port.DurableStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		records: make(map[entity.PlayerID]*entity.PlayerRecord),
		now:     time.Now,
	}
}

// WithClock 替换时钟，测试残留锁检测用。
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Backend("memory.GetRecord", id.String(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		if !acquireLock {
			return nil, errs.ErrRecordNotFound.WithData("player_id", id.String())
		}
		rec = entity.NewPlayerRecord(id, s.now())
		s.records[id] = rec
	}
	out := rec.Clone()
	if acquireLock && !rec.Locked {
		rec.Locked = true
		rec.LockedAt = s.now()
	}
	return out, nil
}

func (s *Store) UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error {
	if err := ctx.Err(); err != nil {
		return errs.Backend("memory.UpdateRecord", id.String(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cur, ok := s.records[id]
	if !ok {
		cur = entity.NewPlayerRecord(id, now)
		s.records[id] = cur
	}
	cur.Payload = append([]byte(nil), rec.Payload...)
	cur.UpdatedAt = now
	s.applyLock(cur, !unlock, now)
	return nil
}

func (s *Store) SetLock(ctx context.Context, id entity.PlayerID, locked bool) error {
	if err := ctx.Err(); err != nil {
		return errs.Backend("memory.SetLock", id.String(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[id]
	if !ok {
		return errs.ErrRecordNotFound.WithData("player_id", id.String())
	}
	s.applyLock(cur, locked, s.now())
	return nil
}

func (s *Store) applyLock(rec *entity.PlayerRecord, locked bool, now time.Time) {
	switch {
	case locked && !rec.Locked:
		rec.LockedAt = now
	case !locked:
		rec.LockedAt = time.Time{}
	}
	rec.Locked = locked
}

// Put 直接写入一条记录（初始化数据 / 模拟其他进程持锁）。
func (s *Store) Put(rec *entity.PlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

// Peek 读记录，不触发任何副作用。
func (s *Store) Peek(id entity.PlayerID) (*entity.PlayerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (s *Store) Close(context.Context) error { return nil }
