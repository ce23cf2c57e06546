package entity

import (
	"fmt"
	"sync"
	"time"
)

// Source 表示 Session 初始数据从哪里来。
type Source string

const (
	SourceStore Source = "store"
	SourceCache Source = "cache"
)

// Session 是本进程持有的玩家数据。所有修改都会让 version 递增，
// 落盘时先 Snapshot 拿到 version，写成功后 MarkFlushed，期间的新修改不会被误清掉脏标记。
type Session struct {
	id         PlayerID
	loadedFrom Source
	createdAt  time.Time

	mu             sync.RWMutex
	payload        Payload
	version        uint64
	flushedVersion uint64
	lastFlush      time.Time
}

// NewSession payload 由调用方保证已经规整（解码结果或 NormalizePayload 的输出）。
func NewSession(id PlayerID, payload Payload, from Source, now time.Time) *Session {
	if payload == nil {
		payload = Payload{}
	}
	return &Session{
		id:         id,
		loadedFrom: from,
		createdAt:  now,
		payload:    payload,
		lastFlush:  now,
	}
}

func (s *Session) ID() PlayerID { return s.id }

func (s *Session) LoadedFrom() Source { return s.loadedFrom }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Get 返回值的拷贝；嵌套 map/slice 要改只能走 Set 或 Update。
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.payload[key]
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		cp, err := NormalizeValue(v)
		if err != nil {
			panic(fmt.Sprintf("payload holds unnormalized value: %v", err))
		}
		return cp, true
	}
	return v, true
}

func (s *Session) Set(key string, value any) error {
	v, err := NormalizeValue(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload[key] = v
	s.version++
	return nil
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payload[key]; !ok {
		return
	}
	delete(s.payload, key)
	s.version++
}

// Update 在拷贝上执行 fn，fn 返回错误或结果无法规整时 Session 不变。
func (s *Session) Update(fn func(p Payload) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.payload.Clone()
	if err := fn(work); err != nil {
		return err
	}
	next, err := NormalizePayload(work)
	if err != nil {
		return err
	}
	s.payload = next
	s.version++
	return nil
}

// MarkDirty 数据在外部被改过（例如通过 Update 以外的途径），强制下次落盘。
func (s *Session) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
}

func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.flushedVersion
}

func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot 返回 payload 深拷贝和对应的 version。
func (s *Session) Snapshot() (Payload, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload.Clone(), s.version
}

// MarkFlushed 记录 version 已经写入存储。比已记录的旧的 version 只更新时间。
func (s *Session) MarkFlushed(version uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.flushedVersion {
		s.flushedVersion = version
	}
	if at.After(s.lastFlush) {
		s.lastFlush = at
	}
}

func (s *Session) LastFlush() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFlush
}
