package dc

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/registry"
)

type fakeFlusher struct {
	mu       sync.Mutex
	flushed  []entity.PlayerID
	released []entity.PlayerID
	failOn   map[entity.PlayerID]error
	live     []entity.PlayerID
	liveErr  error
}

func (f *fakeFlusher) Flush(id entity.PlayerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, id)
}

func (f *fakeFlusher) Release(_ context.Context, id entity.PlayerID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return f.failOn[id]
}

func (f *fakeFlusher) Live(context.Context) ([]entity.PlayerID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.PlayerID(nil), f.live...), f.liveErr
}

func (f *fakeFlusher) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.flushed)
}

func sortedIDs(in []entity.PlayerID) []entity.PlayerID {
	out := append([]entity.PlayerID(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func install(t *testing.T, reg *registry.Registry, id entity.PlayerID, dirty bool) *entity.Session {
	t.Helper()
	s := entity.NewSession(id, entity.Payload{}, entity.SourceStore, time.Now())
	if dirty {
		s.MarkDirty()
	}
	if err := reg.Install(s); err != nil {
		t.Fatalf("install %s: %v", id, err)
	}
	return s
}

func TestScheduler_Tick只投递脏Session(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", true)
	install(t, reg, "p2", false)
	install(t, reg, "p3", true)

	f := &fakeFlusher{}
	s := NewScheduler(reg, f, time.Minute, nil)
	if n := s.Tick(); n != 2 {
		t.Fatalf("期望投递 2 次, got=%d", n)
	}
	if diff := cmp.Diff([]entity.PlayerID{"p1", "p3"}, sortedIDs(f.flushed)); diff != "" {
		t.Fatalf("投递的玩家不符 (-want +got):\n%s", diff)
	}
}

func TestScheduler_间隔小于等于0不启动(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", true)
	f := &fakeFlusher{}
	s := NewScheduler(reg, f, 0, nil)
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	if f.flushCount() != 0 {
		t.Fatalf("期望关闭定时落盘时不投递, got=%d", f.flushCount())
	}
}

func TestScheduler_定时投递且Stop可重复调用(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", true)
	f := &fakeFlusher{}
	s := NewScheduler(reg, f, 10*time.Millisecond, nil)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for f.flushCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()
	if f.flushCount() < 2 {
		t.Fatalf("期望至少投递 2 次, got=%d", f.flushCount())
	}
	after := f.flushCount()
	time.Sleep(30 * time.Millisecond)
	if f.flushCount() != after {
		t.Fatalf("期望 Stop 之后不再投递")
	}
}

func TestScheduler_FinalFlush释放全部玩家并合并错误(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", true)
	install(t, reg, "p2", false)
	reg.MarkProvisional("p3")
	// 已在线又在接入中的玩家只释放一次
	reg.MarkProvisional("p1")

	errP2 := errors.New("p2 store down")
	f := &fakeFlusher{failOn: map[entity.PlayerID]error{"p2": errP2}}
	s := NewScheduler(reg, f, time.Minute, nil)

	err := s.FinalFlush(context.Background())
	if !errors.Is(err, errP2) {
		t.Fatalf("期望错误里包含 p2 的失败, err=%v", err)
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Fatalf("期望只有 1 个错误, got=%d", n)
	}
	if diff := cmp.Diff([]entity.PlayerID{"p1", "p2", "p3"}, sortedIDs(f.released)); diff != "" {
		t.Fatalf("释放的玩家不符 (-want +got):\n%s", diff)
	}
}

func TestScheduler_FinalFlush没有玩家时返回nil(t *testing.T) {
	s := NewScheduler(registry.New(), &fakeFlusher{}, time.Minute, nil)
	if err := s.FinalFlush(context.Background()); err != nil {
		t.Fatalf("期望 nil, got=%v", err)
	}
}

func TestScheduler_FinalFlush也等待已出registry的玩家(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", false)
	// p2 已经从 registry 移除，但 actor 还在释放重试中
	f := &fakeFlusher{live: []entity.PlayerID{"p1", "p2"}}
	s := NewScheduler(reg, f, time.Minute, nil)

	if err := s.FinalFlush(context.Background()); err != nil {
		t.Fatalf("期望 nil, got=%v", err)
	}
	if diff := cmp.Diff([]entity.PlayerID{"p1", "p2"}, sortedIDs(f.released)); diff != "" {
		t.Fatalf("释放的玩家不符 (-want +got):\n%s", diff)
	}
}

func TestScheduler_FinalFlush列举actor失败时返回错误(t *testing.T) {
	reg := registry.New()
	install(t, reg, "p1", false)
	errLive := errors.New("manager timeout")
	f := &fakeFlusher{liveErr: errLive}
	s := NewScheduler(reg, f, time.Minute, nil)

	err := s.FinalFlush(context.Background())
	if !errors.Is(err, errLive) {
		t.Fatalf("期望返回列举失败, err=%v", err)
	}
	if diff := cmp.Diff([]entity.PlayerID{"p1"}, sortedIDs(f.released)); diff != "" {
		t.Fatalf("registry 里的玩家仍应释放 (-want +got):\n%s", diff)
	}
}
