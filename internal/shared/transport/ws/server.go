package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"PlayerSync/modules/kit/logx"
)

// Server 把 HTTP 连接升级成 link 连接。鉴权在升级前由 HTTP 中间件完成。
type Server struct {
	router   *Router
	log      logx.Logger
	upgrader websocket.Upgrader
	// CallerOf 从升级请求里取调用方标识，写进连接属性
	CallerOf func(*http.Request) string
}

func NewServer(r *Router, l logx.Logger) *Server {
	if l == nil {
		l = logx.Nop()
	}
	return &Server{
		router: r,
		log:    l,
		upgrader: websocket.Upgrader{
			// 调用方是内网连接层进程，不是浏览器
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	wsConn, err := s.upgrader.Upgrade(resp, req, nil)
	if err != nil {
		s.log.Error("websocket upgrade error", zap.Error(err))
		return
	}

	wsServer := NewWsServer(wsConn, s.log)
	if s.CallerOf != nil {
		if caller := s.CallerOf(req); caller != "" {
			wsServer.SetProperty(ConnKeyCaller, caller)
		}
	}
	s.log.Info("websocket link established", zap.String("addr", wsServer.Addr()))

	wsServer.Router(s.router)
	wsServer.Run()
}
