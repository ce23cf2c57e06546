package serverconfig

import (
	"fmt"
	"net"
	"strconv"

	"PlayerSync/internal/shared/config"
)

// Conf 是进程启动时加载的配置快照。热更新不会回写它，见 Load 的 onReload。
var Conf Config

// Defaults 是文件/环境变量都没给值时的默认值。
func Defaults() map[string]any {
	return map[string]any{
		"server.name": "player-sync",

		"sync.persistence_interval_seconds":    60,
		"sync.leave_locked_while_online":       true,
		"sync.fast_cache_enabled":              false,
		"sync.local_retry_attempts":            3,
		"sync.local_retry_delay_seconds":       1,
		"sync.fast_cache_poll_attempts":        6,
		"sync.fast_cache_poll_interval_millis": 333,
		"sync.release_retry_attempts":          3,
		"sync.handoff_ttl_seconds":             30,
		"sync.stale_lock_after_minutes":        360,
		"sync.io_workers":                      8,
		"sync.shutdown_timeout_seconds":        10,
		"sync.codec":                           "proto",

		"store.driver": "memory",

		"mongodb.database":                "player_sync",
		"mongodb.collection":              "player_records",
		"mongodb.connect_timeout_seconds": 5,

		"mysql.port":                  3306,
		"mysql.max_open_conns":        20,
		"mysql.max_idle_conns":        10,
		"mysql.slow_threshold_millis": 200,

		"sqlite.path":                "data/player_sync.db",
		"sqlite.busy_timeout_millis": 5000,

		"redis.key_prefix":          "psync:",
		"redis.dial_timeout_millis": 2000,

		"httpserver.host": "0.0.0.0",
		"httpserver.port": 8088,
		"grpcserver.host": "0.0.0.0",
		"grpcserver.port": 9088,

		"log.level":       "info",
		"log.max_size":    100,
		"log.max_backups": 10,
		"log.max_age":     7,
	}
}

// Load 加载配置到 Conf；失败直接 panic，进程起不来没有意义。
// onReload 在配置文件变更时收到新解析出的 Config。
func Load(cfgName string, onReload func(Config)) string {
	c, path, err := config.Load[Config](cfgName, Defaults(), onReload)
	if err != nil {
		panic(err)
	}
	Conf = c
	return path
}

func (c HTTPServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c GRPCServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN 生成 gorm mysql 驱动的连接串。
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
