package serverconfig

// Config 是 sync 进程的全部配置，对应 configs/conf.yml。
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Store      StoreConfig      `mapstructure:"store"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPServer HTTPServerConfig `mapstructure:"httpserver"`
	GRPCServer GRPCServerConfig `mapstructure:"grpcserver"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	// ID 为空时启动生成一个 uuid，只用于日志/指标里区分进程
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// SyncConfig 是锁协调/落盘相关的参数。
type SyncConfig struct {
	PersistenceIntervalSeconds  int    `mapstructure:"persistence_interval_seconds"`
	LeaveLockedWhileOnline      bool   `mapstructure:"leave_locked_while_online"`
	FastCacheEnabled            bool   `mapstructure:"fast_cache_enabled"`
	LocalRetryAttempts          int    `mapstructure:"local_retry_attempts"`
	LocalRetryDelaySeconds      int    `mapstructure:"local_retry_delay_seconds"`
	FastCachePollAttempts       int    `mapstructure:"fast_cache_poll_attempts"`
	FastCachePollIntervalMillis int    `mapstructure:"fast_cache_poll_interval_millis"`
	ReleaseRetryAttempts        int    `mapstructure:"release_retry_attempts"`
	HandoffTTLSeconds           int    `mapstructure:"handoff_ttl_seconds"`
	StaleLockAfterMinutes       int    `mapstructure:"stale_lock_after_minutes"`
	IOWorkers                   int    `mapstructure:"io_workers"`
	ShutdownTimeoutSeconds      int    `mapstructure:"shutdown_timeout_seconds"`
	Codec                       string `mapstructure:"codec"`
}

// StoreConfig.Driver: mongodb | mysql | sqlite | memory
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoDBConfig struct {
	URI                   string `mapstructure:"uri"`
	Database              string `mapstructure:"database"`
	Collection            string `mapstructure:"collection"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	// SlowThresholdMillis 超过该耗时的 SQL 按慢查询记 WARN
	SlowThresholdMillis int `mapstructure:"slow_threshold_millis"`
}

type SQLiteConfig struct {
	Path              string `mapstructure:"path"`
	BusyTimeoutMillis int    `mapstructure:"busy_timeout_millis"`
}

type RedisConfig struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	DialTimeoutMillis int    `mapstructure:"dial_timeout_millis"`
}

type HTTPServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GRPCServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AuthConfig.Secret 为空表示不校验调用方 token（本地开发）。
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	FileDir    string `mapstructure:"file_dir"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Dev        bool   `mapstructure:"dev"`
}
