package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"PlayerSync/modules/kit/logx"
	"PlayerSync/modules/kit/tracex"
)

// AccessLog 是一次 HTTP 请求或 ws 帧的访问记录，handler 沿途往里填，结束时写一条 access 日志。
type AccessLog struct {
	BizCode     BizCode
	ErrorReason string
	Caller      string
	PlayerID    string

	action string
	begin  time.Time
}

type accessLogKey struct{}

func NewContext(action string) context.Context {
	return NewContextWithParent(context.Background(), action)
}

// NewContextWithParent 保留 parent 的取消信号；parent 带了 trace 就沿用。
func NewContextWithParent(parent context.Context, action string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if action == "" {
		action = "unknown"
	}
	al := &AccessLog{BizCode: SystemError, action: action, begin: time.Now()}
	return context.WithValue(tracex.Ensure(parent, "access"), accessLogKey{}, al)
}

func FromContext(ctx context.Context) *AccessLog {
	if ctx == nil {
		return nil
	}
	al, _ := ctx.Value(accessLogKey{}).(*AccessLog)
	return al
}

func update(ctx context.Context, fn func(al *AccessLog)) {
	if al := FromContext(ctx); al != nil {
		fn(al)
	}
}

func SetBizCode(ctx context.Context, code BizCode) {
	update(ctx, func(al *AccessLog) { al.BizCode = code })
}

// SetErrorReason 记录失败原因（错误码或简短描述），空串忽略。
func SetErrorReason(ctx context.Context, reason string) {
	if reason == "" {
		return
	}
	update(ctx, func(al *AccessLog) { al.ErrorReason = reason })
}

// SetCaller 记录 token 里的调用方。
func SetCaller(ctx context.Context, caller string) {
	update(ctx, func(al *AccessLog) { al.Caller = caller })
}

func SetPlayerID(ctx context.Context, playerID string) {
	update(ctx, func(al *AccessLog) { al.PlayerID = playerID })
}

// WriteAccessLog 按业务码定级写一条 access 日志，见 logx.ReportAccessWithLoggerContext。
func WriteAccessLog(ctx context.Context, log logx.Logger) {
	al := FromContext(ctx)
	if al == nil || log == nil {
		return
	}
	fields := make([]zap.Field, 0, 5)
	fields = append(fields, zap.Duration("latency", time.Since(al.begin)))
	for _, kv := range [][2]string{{"caller", al.Caller}, {"player_id", al.PlayerID}} {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	if al.BizCode != OK && al.ErrorReason != "" {
		fields = append(fields, zap.String("error_reason", al.ErrorReason))
	}
	logx.ReportAccessWithLoggerContext(ctx, log, al.action, int(al.BizCode), fields...)
}
