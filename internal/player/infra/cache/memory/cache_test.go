package memory

import (
	"context"
	"testing"
	"time"
)

func TestCache_TakePayload取走即删(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	if err := c.PutPayload(ctx, "p1", []byte("data"), time.Minute); err != nil {
		t.Fatalf("PutPayload err=%v", err)
	}
	data, ok, err := c.TakePayload(ctx, "p1")
	if err != nil || !ok || string(data) != "data" {
		t.Fatalf("期望取到 data, got=(%q, %v, %v)", data, ok, err)
	}
	if _, ok, _ := c.TakePayload(ctx, "p1"); ok {
		t.Fatalf("期望第二次取不到")
	}
}

func TestCache_过期(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetChangingServer(ctx, "p1", true, time.Second)
	_ = c.PutPayload(ctx, "p1", []byte("data"), time.Second)
	if on, _ := c.ChangingServer(ctx, "p1"); !on {
		t.Fatalf("期望换服标记存在")
	}

	now = now.Add(2 * time.Second)
	if on, _ := c.ChangingServer(ctx, "p1"); on {
		t.Fatalf("期望换服标记过期")
	}
	if _, ok, _ := c.TakePayload(ctx, "p1"); ok {
		t.Fatalf("期望 payload 过期")
	}
}

func TestCache_清除换服标记(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	_ = c.SetChangingServer(ctx, "p1", true, 0)
	_ = c.SetChangingServer(ctx, "p1", false, 0)
	if on, _ := c.ChangingServer(ctx, "p1"); on {
		t.Fatalf("期望标记被清除")
	}
}
