package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"PlayerSync/internal/shared/serverconfig"
)

// Open 创建 redis 客户端并 ping 一次。
func Open(ctx context.Context, cfg serverconfig.RedisConfig, l *zap.Logger) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	if l == nil {
		l = zap.NewNop()
	}
	dial := time.Duration(cfg.DialTimeoutMillis) * time.Millisecond
	if dial <= 0 {
		dial = 2 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	ctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	l.Info("open redis success", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
