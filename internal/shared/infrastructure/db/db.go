package db

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"PlayerSync/internal/shared/logs"
	"PlayerSync/internal/shared/serverconfig"
)

// Open 打开 mysql 连接池，SQL 日志走 logs.NewGormLogger。
func Open(cfg serverconfig.MySQLConfig) (*gorm.DB, error) {
	slow := time.Duration(cfg.SlowThresholdMillis) * time.Millisecond
	gcfg := &gorm.Config{
		Logger: logs.NewGormLogger(logger.Warn, slow),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	logs.Info("open mysql success",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBName),
		zap.String("user", cfg.User),
	)
	return db, nil
}
