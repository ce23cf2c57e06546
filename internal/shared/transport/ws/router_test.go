package ws

import (
	"context"
	"testing"

	"PlayerSync/internal/shared/transport"
	"PlayerSync/modules/kit/logx"
)

type fakeConn struct {
	props map[string]any
}

func (c *fakeConn) SetProperty(key string, value any) { c.props[key] = value }
func (c *fakeConn) GetProperty(key string) any        { return c.props[key] }
func (c *fakeConn) RemoveProperty(key string)         { delete(c.props, key) }
func (c *fakeConn) Addr() string                      { return "fake" }
func (c *fakeConn) Push(string, any)                  {}
func (c *fakeConn) Close()                            {}
func (c *fakeConn) Done() <-chan struct{}             { return nil }

func newReq(name string, msg any) (*WsMsgReq, *WsMsgResp) {
	req := &WsMsgReq{Body: &ReqBody{Seq: 7, Name: name, Msg: msg}, Conn: &fakeConn{props: map[string]any{}}}
	resp := &WsMsgResp{Body: &RespBody{Seq: 7, Name: name}}
	return req, resp
}

func TestRouter_Dispatch按组和名字路由(t *testing.T) {
	r := NewRouter(logx.Nop())
	var got string
	r.Group("player").Handle("connect", func(ctx context.Context, req *WsMsgReq, resp *WsMsgResp) {
		var in struct {
			PlayerID string `json:"player_id"`
		}
		if err := BindJSON(req, &in); err != nil {
			t.Fatalf("BindJSON err=%v", err)
		}
		got = in.PlayerID
		resp.Body.Code = transport.OK
	})

	req, resp := newReq("player.connect", map[string]any{"player_id": "p1"})
	r.Dispatch(req, resp)
	if got != "p1" || resp.Body.Code != transport.OK {
		t.Fatalf("期望路由到 player.connect, got=%q code=%d", got, resp.Body.Code)
	}
}

func TestRouter_Dispatch路由不存在返回参数错误(t *testing.T) {
	r := NewRouter(logx.Nop())
	r.Group("player").Handle("connect", func(context.Context, *WsMsgReq, *WsMsgResp) {})

	for _, name := range []string{"player", "player.unknown", "account.connect", ".connect"} {
		req, resp := newReq(name, nil)
		r.Dispatch(req, resp)
		if resp.Body.Code != transport.InvalidParam {
			t.Fatalf("name=%q 期望 code=%d, got=%d", name, transport.InvalidParam, resp.Body.Code)
		}
	}
}

func TestRouter_handler漏设code按系统错误(t *testing.T) {
	r := NewRouter(logx.Nop())
	r.Group("player").Handle("state", func(context.Context, *WsMsgReq, *WsMsgResp) {})

	req, resp := newReq("player.state", nil)
	r.Dispatch(req, resp)
	if resp.Body.Code != transport.SystemError {
		t.Fatalf("期望默认 SystemError, got=%d", resp.Body.Code)
	}
}
