// Package storetest 是 DurableStore 实现共用的契约测试。
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

// Run 对 newStore 返回的实现跑一遍契约。每个子测试拿到一个全新的存储。
func Run(t *testing.T, newStore func(t *testing.T) port.DurableStore) {
	t.Run("不加锁读不存在的记录", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetRecord(context.Background(), "nobody", false); !errors.Is(err, errs.ErrRecordNotFound) {
			t.Fatalf("期望 ErrRecordNotFound, got=%v", err)
		}
	})

	t.Run("首次加锁读创建空记录", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec, err := s.GetRecord(ctx, "p1", true)
		if err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if rec.Locked || len(rec.Payload) != 0 {
			t.Fatalf("期望返回加锁前状态（未锁、空 payload）, got=%+v", rec)
		}
		again, err := s.GetRecord(ctx, "p1", true)
		if err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if !again.Locked {
			t.Fatalf("期望第二次读看到已加锁")
		}
		if again.LockedAt.IsZero() {
			t.Fatalf("期望已加锁记录带 LockedAt")
		}
	})

	t.Run("UpdateRecord解锁后可再次获取", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.GetRecord(ctx, "p1", true); err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if err := s.UpdateRecord(ctx, "p1", &entity.PlayerRecord{ID: "p1", Payload: []byte("v1")}, true); err != nil {
			t.Fatalf("UpdateRecord err=%v", err)
		}
		rec, err := s.GetRecord(ctx, "p1", true)
		if err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if rec.Locked || string(rec.Payload) != "v1" {
			t.Fatalf("期望未锁且 payload=v1, got locked=%v payload=%q", rec.Locked, rec.Payload)
		}
	})

	t.Run("UpdateRecord不解锁保持加锁", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.GetRecord(ctx, "p1", true); err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if err := s.UpdateRecord(ctx, "p1", &entity.PlayerRecord{ID: "p1", Payload: []byte("v2")}, false); err != nil {
			t.Fatalf("UpdateRecord err=%v", err)
		}
		rec, err := s.GetRecord(ctx, "p1", false)
		if err != nil {
			t.Fatalf("GetRecord err=%v", err)
		}
		if !rec.Locked || string(rec.Payload) != "v2" {
			t.Fatalf("期望加锁且 payload=v2, got locked=%v payload=%q", rec.Locked, rec.Payload)
		}
	})

	t.Run("SetLock只改锁标记", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.UpdateRecord(ctx, "p1", &entity.PlayerRecord{ID: "p1", Payload: []byte("keep")}, false); err != nil {
			t.Fatalf("UpdateRecord err=%v", err)
		}
		if err := s.SetLock(ctx, "p1", false); err != nil {
			t.Fatalf("SetLock err=%v", err)
		}
		rec, _ := s.GetRecord(ctx, "p1", false)
		if rec.Locked || string(rec.Payload) != "keep" {
			t.Fatalf("期望解锁且 payload 不变, got=%+v", rec)
		}
		if err := s.SetLock(ctx, "p1", true); err != nil {
			t.Fatalf("SetLock err=%v", err)
		}
		rec, _ = s.GetRecord(ctx, "p1", false)
		if !rec.Locked {
			t.Fatalf("期望重新加锁")
		}
		if err := s.SetLock(ctx, "nobody", false); !errors.Is(err, errs.ErrRecordNotFound) {
			t.Fatalf("期望不存在的记录返回 ErrRecordNotFound, got=%v", err)
		}
	})

	t.Run("并发加锁只有一个拿到", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.UpdateRecord(ctx, "p1", &entity.PlayerRecord{ID: "p1"}, true); err != nil {
			t.Fatalf("UpdateRecord err=%v", err)
		}
		var owners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := s.GetRecord(ctx, "p1", true)
				if err != nil {
					t.Errorf("GetRecord err=%v", err)
					return
				}
				if !rec.Locked {
					owners.Add(1)
				}
			}()
		}
		wg.Wait()
		if owners.Load() != 1 {
			t.Fatalf("期望只有 1 个调用方拿到锁, got=%d", owners.Load())
		}
	})
}
