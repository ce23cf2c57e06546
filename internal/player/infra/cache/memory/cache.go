package memory

import (
	"context"
	"sync"
	"time"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

type entry struct {
	data     []byte
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Cache 是进程内的 FastCache，语义和 redis 实现一致（过期、取走即删）。
type Cache struct {
	mu       sync.Mutex
	flags    map[entity.PlayerID]entry
	payloads map[entity.PlayerID]entry
	now      func() time.Time
}

var _ port.FastCache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{
		flags:    make(map[entity.PlayerID]entry),
		payloads: make(map[entity.PlayerID]entry),
		now:      time.Now,
	}
}

func (c *Cache) ChangingServer(ctx context.Context, id entity.PlayerID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Backend("memcache.ChangingServer", id.String(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.flags[id]
	if !ok {
		return false, nil
	}
	if e.expired(c.now()) {
		delete(c.flags, id)
		return false, nil
	}
	return true, nil
}

func (c *Cache) SetChangingServer(ctx context.Context, id entity.PlayerID, on bool, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return errs.Backend("memcache.SetChangingServer", id.String(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !on {
		delete(c.flags, id)
		return nil
	}
	c.flags[id] = entry{expireAt: c.expireAt(ttl)}
	return nil
}

func (c *Cache) PutPayload(ctx context.Context, id entity.PlayerID, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return errs.Backend("memcache.PutPayload", id.String(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[id] = entry{data: append([]byte(nil), data...), expireAt: c.expireAt(ttl)}
	return nil
}

func (c *Cache) TakePayload(ctx context.Context, id entity.PlayerID) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errs.Backend("memcache.TakePayload", id.String(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.payloads[id]
	if !ok {
		return nil, false, nil
	}
	delete(c.payloads, id)
	if e.expired(c.now()) {
		return nil, false, nil
	}
	return e.data, true, nil
}

func (c *Cache) expireAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *Cache) Close(context.Context) error { return nil }
