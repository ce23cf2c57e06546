package errs

import (
	"errors"
	"testing"

	"PlayerSync/modules/kit/errx"
)

func TestBackend_保留语义码和cause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Backend("mongo.GetRecord", "p1", cause)

	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("期望 errors.Is(err, ErrBackendUnavailable), err=%v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("期望 cause 链不丢, err=%v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Op != "mongo.GetRecord" || e.Kind != KindInfra {
		t.Fatalf("期望外层是 *errs.Error{Op: mongo.GetRecord, Kind: infra}, got=%#v", e)
	}
	if errx.CodeOf(err) != CodeBackendUnavailable {
		t.Fatalf("期望 CodeOf=%s, got=%s", CodeBackendUnavailable, errx.CodeOf(err))
	}
}

func TestWrap_nil不包装(t *testing.T) {
	if Wrap("op", KindInfra, nil, nil) != nil {
		t.Fatalf("期望 nil cause 返回 nil")
	}
	if Backend("op", "p1", nil) != nil || Serialization("op", "p1", nil) != nil {
		t.Fatalf("期望 nil cause 返回 nil")
	}
}

func TestSentinels_分类(t *testing.T) {
	if errx.IsSys(ErrSessionExists) || errx.IsSys(ErrInvalidPlayerID) {
		t.Fatalf("期望会话冲突/非法 id 是业务错误")
	}
	if !errx.IsSys(ErrDataUnavailable) || !errx.IsSys(ErrSerializationFault) {
		t.Fatalf("期望 DataUnavailable/SerializationFault 是系统错误")
	}
}
