package logx

import (
	"context"

	"go.uber.org/zap"
)

// Logger 是各组件依赖的最小日志接口：结构化字段 + ctx 透传（trace/span）。
// With 用于给一个玩家/一次操作绑定固定字段，避免每条日志重复拼 player_id。
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	WithContext(ctx context.Context) Logger
}

// Nop 返回丢弃所有日志的 Logger。
func Nop() Logger {
	return NewZapLogger(nil)
}
