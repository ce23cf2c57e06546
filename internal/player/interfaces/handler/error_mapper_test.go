package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"PlayerSync/internal/player/actor"
	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/shared/transport"
)

func TestHandleError_映射错误码(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, transport.OK},
		{"非法id", errs.ErrInvalidPlayerID, transport.InvalidParam},
		{"记录不存在", fmt.Errorf("wrap: %w", errs.ErrRecordNotFound), transport.NotFound},
		{"会话已存在", errs.ErrSessionExists, transport.Conflict},
		{"存储不可用", errs.Backend("store.GetRecord", "p1", errors.New("dial tcp")), transport.Unavailable},
		{"数据不可用", errs.ErrDataUnavailable, transport.Unavailable},
		{"总线关闭", events.ErrBusClosed, transport.Unavailable},
		{"actor 超时", &actor.RuntimeError{Code: transport.Unavailable, Message: "actor 请求失败"}, transport.Unavailable},
		{"未知错误", errors.New("boom"), transport.SystemError},
	}
	for _, c := range cases {
		ctx := transport.NewContext("test")
		code, _ := HandleError(ctx, c.err)
		if code != c.code {
			t.Fatalf("%s: 期望 code=%d, got=%d", c.name, c.code, code)
		}
	}
}

func TestHandleError_系统错误不透出原因(t *testing.T) {
	_, msg := HandleError(context.Background(), errs.Backend("store.GetRecord", "p1", errors.New("secret dsn")))
	if msg != "系统繁忙，请稍后重试" {
		t.Fatalf("期望统一文案, got=%q", msg)
	}
	_, msg = HandleError(context.Background(), errs.ErrInvalidPlayerID)
	if msg != "玩家 id 非法" {
		t.Fatalf("期望业务错误透出原因, got=%q", msg)
	}
}
