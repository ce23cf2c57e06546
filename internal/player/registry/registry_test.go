package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

func newSession(id string) *entity.Session {
	return entity.NewSession(entity.PlayerID(id), entity.Payload{}, entity.SourceStore, time.Now())
}

func TestRegistry_Install重复返回SessionExists(t *testing.T) {
	r := New()
	if err := r.Install(newSession("p1")); err != nil {
		t.Fatalf("Install err=%v", err)
	}
	if err := r.Install(newSession("p1")); !errors.Is(err, errs.ErrSessionExists) {
		t.Fatalf("期望 ErrSessionExists, got=%v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("期望 1 个 Session, got=%d", r.Count())
	}
}

func TestRegistry_并发Install同一id只有一个成功(t *testing.T) {
	r := New()
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Install(newSession("p1")) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 {
		t.Fatalf("期望只有 1 次 Install 成功, got=%d", ok.Load())
	}
}

func TestRegistry_Lookup与Remove(t *testing.T) {
	r := New()
	s := newSession("p1")
	_ = r.Install(s)

	got, ok := r.Lookup("p1")
	if !ok || got != s {
		t.Fatalf("期望 Lookup 返回同一个 Session")
	}
	removed, ok := r.Remove("p1")
	if !ok || removed != s {
		t.Fatalf("期望 Remove 返回被删除的 Session")
	}
	if _, ok := r.Lookup("p1"); ok {
		t.Fatalf("期望 Remove 后查不到")
	}
	if _, ok := r.Remove("p1"); ok {
		t.Fatalf("期望重复 Remove 返回 false")
	}
}

func TestRegistry_DirtySessions只返回脏的(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		_ = r.Install(newSession(fmt.Sprintf("p%d", i)))
	}
	r.MarkDirty("p1")
	r.MarkDirty("p3")
	if r.MarkDirty("nobody") {
		t.Fatalf("期望不存在的 id MarkDirty 返回 false")
	}

	dirty := r.DirtySessions()
	if len(dirty) != 2 {
		t.Fatalf("期望 2 个脏 Session, got=%d", len(dirty))
	}
	if len(r.Sessions()) != 5 {
		t.Fatalf("期望 Sessions 返回全部 5 个")
	}
}

func TestRegistry_Provisional(t *testing.T) {
	r := New()
	if !r.MarkProvisional("p1") {
		t.Fatalf("期望首次标记成功")
	}
	if r.MarkProvisional("p1") {
		t.Fatalf("期望重复标记返回 false")
	}
	if !r.IsProvisional("p1") || r.ProvisionalCount() != 1 {
		t.Fatalf("期望 p1 在接入中")
	}
	if got := r.Provisional(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("期望 Provisional 返回 [p1], got=%v", got)
	}
	r.ClearProvisional("p1")
	if r.IsProvisional("p1") {
		t.Fatalf("期望清除后不在接入中")
	}
}
