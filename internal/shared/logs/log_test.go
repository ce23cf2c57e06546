package logs

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"PlayerSync/internal/shared/serverconfig"
)

func TestSetLevel_热更新生效且非法值回退info(t *testing.T) {
	if err := Init("test", serverconfig.LogConfig{Level: "warn"}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	if Logger().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("期望 warn 级别下 info 不输出")
	}

	SetLevel("debug")
	if !Logger().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("期望热更新到 debug 后 debug 可输出")
	}

	SetLevel("not-a-level")
	if Logger().Core().Enabled(zapcore.DebugLevel) || !Logger().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("期望非法级别回退到 info")
	}
}
