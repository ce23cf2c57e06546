package logx

import (
	"context"
	"errors"
	"testing"

	"PlayerSync/modules/kit/errx"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildErrorLog_能提取语义与栈(t *testing.T) {
	cause := errors.New("mongo down")
	e := errx.NewSys("SYS_INTERNAL", "服务器内部错误").
		WithData("player_id", "p1").
		WithCause(cause)

	meta := BuildErrorLog(e)
	if meta.Error == "" || meta.Code == "" || meta.Msg == "" {
		t.Fatalf("期望 Error/Code/Msg 非空, got=%+v", meta)
	}
	if meta.Data == nil || meta.Data["player_id"] != "p1" {
		t.Fatalf("期望 meta.Data 包含 player_id=p1, got=%v", meta.Data)
	}
	if len(meta.CauseChain) == 0 {
		t.Fatalf("期望 meta.CauseChain 非空")
	}
	if meta.Origin == "" || meta.Stack == "" {
		t.Fatalf("期望 origin/stack 非空 origin=%q stack=%q", meta.Origin, meta.Stack)
	}
}

func TestReportSysWarn_按WARN输出且不带栈(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	err := errx.NewSys("SERVICE_UNAVAILABLE", "服务不可用").WithCause(errors.New("write timeout"))
	ReportSysWarnWithLoggerContext(context.Background(), l, NewSysLog("flush player", err))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条日志, got=%d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("期望 WARN, got=%v", entries[0].Level)
	}
	if _, ok := entries[0].ContextMap()["stack_origin"]; ok {
		t.Fatalf("期望 warn 级别不打印完整栈")
	}
	if got := entries[0].ContextMap()["error_code"]; got != "SERVICE_UNAVAILABLE" {
		t.Fatalf("期望 error_code=%s, got=%v", "SERVICE_UNAVAILABLE", got)
	}
}

func TestReportSysError_nil错误不输出(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ReportSysErrorWithLoggerContext(context.Background(), NewZapLogger(zap.New(core)), NewSysLog("noop", nil))
	if logs.Len() != 0 {
		t.Fatalf("期望 nil 错误不输出日志, got=%d", logs.Len())
	}
}
