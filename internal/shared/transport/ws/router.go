package ws

import (
	"context"

	"PlayerSync/internal/shared/transport"
	"PlayerSync/modules/kit/logx"
)

type HandlerFunc func(ctx context.Context, req *WsMsgReq, resp *WsMsgResp)

// Registrar 是业务模块注册 ws 路由的入口。
type Registrar interface {
	WsRegister(r *Router)
}

// Router 按帧里的 name（"组.动作"，例如 player.connect）找 handler。
type Router struct {
	routes map[string]HandlerFunc
	log    logx.Logger
}

func NewRouter(l logx.Logger) *Router {
	if l == nil {
		l = logx.Nop()
	}
	return &Router{routes: make(map[string]HandlerFunc), log: l}
}

// Group 只是 name 前缀，注册时拼成完整路由。
type Group struct {
	r      *Router
	prefix string
}

func (r *Router) Group(prefix string) *Group {
	return &Group{r: r, prefix: prefix}
}

func (g *Group) Handle(name string, h HandlerFunc) {
	g.r.routes[g.prefix+"."+name] = h
}

func (r *Router) Dispatch(req *WsMsgReq, resp *WsMsgResp) {
	if resp == nil || resp.Body == nil {
		return
	}
	name := "unknown"
	if req != nil && req.Body != nil {
		name = req.Body.Name
	}
	ctx := transport.NewContext("WS " + name)
	if req != nil && req.Conn != nil {
		if caller, ok := req.Conn.GetProperty(ConnKeyCaller).(string); ok {
			transport.SetCaller(ctx, caller)
		}
	}
	defer func() {
		transport.SetBizCode(ctx, transport.BizCode(resp.Body.Code))
		transport.WriteAccessLog(ctx, r.log)
	}()

	// handler 漏设 code 时按系统错误算
	resp.Body.Code, resp.Body.Msg = transport.SystemError, nil
	if req == nil || req.Body == nil {
		resp.Body.Code, resp.Body.Msg = transport.InvalidParam, "参数有误"
		return
	}
	h := r.routes[req.Body.Name]
	if h == nil {
		transport.SetErrorReason(ctx, "route not found")
		resp.Body.Code, resp.Body.Msg = transport.InvalidParam, "路由不存在"
		return
	}
	h(ctx, req, resp)
}
