package actors

import (
	"time"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/codec"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/registry"
	"PlayerSync/internal/shared/executor"
	"PlayerSync/internal/shared/metrics"
	"PlayerSync/internal/shared/serverconfig"
	"PlayerSync/modules/kit/logx"
)

type PlayerID = entity.PlayerID

// Options 是锁协调的可调参数。
type Options struct {
	PersistenceInterval    time.Duration
	LeaveLockedWhileOnline bool
	FastCacheEnabled       bool

	LocalRetryAttempts    int
	LocalRetryDelay       time.Duration
	FastCachePollAttempts int
	FastCachePollInterval time.Duration

	ReleaseRetryAttempts int
	HandoffTTL           time.Duration
	StaleLockAfter       time.Duration
	IOTimeout            time.Duration
}

func DefaultOptions() Options {
	return Options{
		PersistenceInterval:    60 * time.Second,
		LeaveLockedWhileOnline: true,
		LocalRetryAttempts:     3,
		LocalRetryDelay:        time.Second,
		FastCachePollAttempts:  6,
		FastCachePollInterval:  333 * time.Millisecond,
		ReleaseRetryAttempts:   3,
		HandoffTTL:             30 * time.Second,
		StaleLockAfter:         360 * time.Minute,
		IOTimeout:              5 * time.Second,
	}
}

// OptionsFromConfig 未配置（<=0）的项沿用默认值。两个例外：持久化间隔 <=0 表示关闭定时落盘；
// 重试次数 0 表示不重试，只有负数才回到默认值（未写的键由 serverconfig 的默认值补上）。
func OptionsFromConfig(c serverconfig.SyncConfig) Options {
	o := DefaultOptions()
	o.PersistenceInterval = time.Duration(c.PersistenceIntervalSeconds) * time.Second
	o.LeaveLockedWhileOnline = c.LeaveLockedWhileOnline
	o.FastCacheEnabled = c.FastCacheEnabled
	if c.LocalRetryAttempts >= 0 {
		o.LocalRetryAttempts = c.LocalRetryAttempts
	}
	if c.LocalRetryDelaySeconds > 0 {
		o.LocalRetryDelay = time.Duration(c.LocalRetryDelaySeconds) * time.Second
	}
	if c.FastCachePollAttempts > 0 {
		o.FastCachePollAttempts = c.FastCachePollAttempts
	}
	if c.FastCachePollIntervalMillis > 0 {
		o.FastCachePollInterval = time.Duration(c.FastCachePollIntervalMillis) * time.Millisecond
	}
	if c.ReleaseRetryAttempts > 0 {
		o.ReleaseRetryAttempts = c.ReleaseRetryAttempts
	}
	if c.HandoffTTLSeconds > 0 {
		o.HandoffTTL = time.Duration(c.HandoffTTLSeconds) * time.Second
	}
	if c.StaleLockAfterMinutes > 0 {
		o.StaleLockAfter = time.Duration(c.StaleLockAfterMinutes) * time.Minute
	}
	return o
}

// Deps 是协调器的全部依赖，进程里只建一份，由 Runtime 传给每个 actor。
// Cache 为 nil 或 Options.FastCacheEnabled=false 时不走换服缓存。
type Deps struct {
	Store    port.DurableStore
	Cache    port.FastCache
	Codec    codec.Codec
	Registry *registry.Registry
	Executor *executor.Executor
	Metrics  *metrics.Metrics
	Logger   logx.Logger
	Options  Options
	Clock    func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

func (d *Deps) cacheOn() bool {
	return d.Cache != nil && d.Options.FastCacheEnabled
}

func (d *Deps) logger() logx.Logger {
	if d.Logger == nil {
		return logx.Nop()
	}
	return d.Logger
}
