package handler

import (
	"context"
	"errors"

	"PlayerSync/internal/player/actor"
	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/shared/transport"
	"PlayerSync/modules/kit/errx"
)

func mapCodeToClientCode(code errx.Code) (int, bool) {
	switch code {
	case errs.CodeInvalidPlayerID:
		return transport.InvalidParam, true
	case errs.CodeRecordNotFound:
		return transport.NotFound, true
	case errs.CodeSessionExists:
		return transport.Conflict, true
	case errs.CodeBackendUnavailable, errs.CodeDataUnavailable:
		return transport.Unavailable, true
	case errs.CodeSerializationFault:
		return transport.SystemError, true
	default:
		return 0, false
	}
}

// HandleError 把错误映射成响应码和对外文案；业务拒绝透出原因，技术错误统一文案。
func HandleError(ctx context.Context, err error) (int, string) {
	if err == nil {
		return transport.OK, ""
	}
	code := errx.CodeOf(err)
	if code != "" {
		transport.SetErrorReason(ctx, string(code))
	}

	if errors.Is(err, events.ErrBusClosed) {
		transport.SetErrorReason(ctx, "draining")
		return transport.Unavailable, "服务正在停机"
	}
	if bizCode, ok := mapCodeToClientCode(code); ok {
		if !errx.IsSys(err) {
			var e *errx.Error
			if errors.As(err, &e) {
				return bizCode, e.Msg()
			}
		}
		return bizCode, "系统繁忙，请稍后重试"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transport.Unavailable, "系统繁忙，请稍后重试"
	}
	return actor.CodeFromError(err), "系统繁忙，请稍后重试"
}
