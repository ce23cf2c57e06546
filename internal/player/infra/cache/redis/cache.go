package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

const (
	OpChangingServer    = "cache.redis.ChangingServer"
	OpSetChangingServer = "cache.redis.SetChangingServer"
	OpPutPayload        = "cache.redis.PutPayload"
	OpTakePayload       = "cache.redis.TakePayload"
)

// Cache 用两个 key 表达换服状态：
//
//	<prefix>change:<id>  换服标记，值无意义，只看是否存在
//	<prefix>payload:<id> 交接用的 payload 副本，取走即删（GETDEL）
type Cache struct {
	client goredis.UniversalClient
	prefix string
}

var _ port.FastCache = (*Cache)(nil)

func NewCache(client goredis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) changeKey(id entity.PlayerID) string {
	return c.prefix + "change:" + id.String()
}

func (c *Cache) payloadKey(id entity.PlayerID) string {
	return c.prefix + "payload:" + id.String()
}

func (c *Cache) ChangingServer(ctx context.Context, id entity.PlayerID) (bool, error) {
	n, err := c.client.Exists(ctx, c.changeKey(id)).Result()
	if err != nil {
		return false, errs.Backend(OpChangingServer, id.String(), err)
	}
	return n > 0, nil
}

func (c *Cache) SetChangingServer(ctx context.Context, id entity.PlayerID, on bool, ttl time.Duration) error {
	var err error
	if on {
		err = c.client.Set(ctx, c.changeKey(id), "1", ttl).Err()
	} else {
		err = c.client.Del(ctx, c.changeKey(id)).Err()
	}
	if err != nil {
		return errs.Backend(OpSetChangingServer, id.String(), err)
	}
	return nil
}

func (c *Cache) PutPayload(ctx context.Context, id entity.PlayerID, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.payloadKey(id), data, ttl).Err(); err != nil {
		return errs.Backend(OpPutPayload, id.String(), err)
	}
	return nil
}

func (c *Cache) TakePayload(ctx context.Context, id entity.PlayerID) ([]byte, bool, error) {
	data, err := c.client.GetDel(ctx, c.payloadKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Backend(OpTakePayload, id.String(), err)
	}
	return data, true, nil
}

func (c *Cache) Close(context.Context) error {
	return c.client.Close()
}
