package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PlayerSync/internal/shared/security"
	"PlayerSync/internal/shared/transport/http/middleware"
	"PlayerSync/modules/kit/logx"
)

type Server struct {
	engine *gin.Engine
	group  *gin.RouterGroup
	srv    *nethttp.Server
}

// Registrar 是业务模块注册 /v1 下 HTTP 路由的入口。
type Registrar interface {
	HttpRegister(g *gin.RouterGroup)
}

type Options struct {
	// Signer 非空时 /v1 下的路由要求 bearer token
	Signer *security.Signer
	// Gatherer 非空时挂 /metrics
	Gatherer prometheus.Gatherer
	// Ready 返回 false 时 /healthz 回 503（进程在停机排空）
	Ready func() bool
}

func NewHttpServer(addr string, engine *gin.Engine, logger logx.Logger, opts Options) *Server {
	if engine == nil {
		engine = gin.New()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	engine.Use(gin.Recovery())
	engine.Use(middleware.AccessLog(logger))
	engine.GET("/healthz", func(c *gin.Context) {
		if opts.Ready != nil && !opts.Ready() {
			c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "draining"})
			return
		}
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	group := engine.Group("/v1")
	group.Use(middleware.Auth(opts.Signer))

	return &Server{
		engine: engine,
		group:  group,
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start 启动 HTTP 服务（阻塞）。关闭时返回 net/http.ErrServerClosed。
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Group 是带鉴权的 /v1 路由组。
func (s *Server) Group() *gin.RouterGroup {
	return s.group
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Handler() nethttp.Handler {
	return s.engine
}
