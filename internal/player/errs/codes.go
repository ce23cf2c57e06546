package errs

import "PlayerSync/modules/kit/errx"

const (
	CodeDataUnavailable    errx.Code = "DATA_UNAVAILABLE"
	CodeBackendUnavailable errx.Code = "BACKEND_UNAVAILABLE"
	CodeSerializationFault errx.Code = "SERIALIZATION_FAULT"
	CodeStaleLockSuspected errx.Code = "STALE_LOCK_SUSPECTED"
	CodeSessionExists      errx.Code = "SESSION_EXISTS"
	CodeRecordNotFound     errx.Code = "RECORD_NOT_FOUND"
	CodeInvalidPlayerID    errx.Code = "INVALID_PLAYER_ID"
)

var (
	// ErrDataUnavailable 重试预算用完记录仍被锁：本次接入失败，不建 Session
	ErrDataUnavailable = errx.NewSys(CodeDataUnavailable, "记录被其他进程持有，重试已用完")
	// ErrBackendUnavailable 存储/缓存 I/O 失败
	ErrBackendUnavailable = errx.NewSys(CodeBackendUnavailable, "存储不可用")
	// ErrSerializationFault payload 无法解码，不能用空记录顶替
	ErrSerializationFault = errx.NewSys(CodeSerializationFault, "payload 无法编解码")
	// ErrStaleLockSuspected 锁持有时间过长，只记录不处理
	ErrStaleLockSuspected = errx.NewSys(CodeStaleLockSuspected, "疑似残留锁")

	ErrSessionExists   = errx.NewBiz(CodeSessionExists, "会话已存在")
	ErrRecordNotFound  = errx.NewBiz(CodeRecordNotFound, "记录不存在")
	ErrInvalidPlayerID = errx.NewBiz(CodeInvalidPlayerID, "玩家 id 非法")
)
