package http

import (
	"context"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/player/interfaces/handler"
	"PlayerSync/internal/player/interfaces/handler/http/dto"
	"PlayerSync/internal/shared/transport"
)

type HttpHandler struct {
	sync *handler.Sync
}

func NewHttpHandler(s *handler.Sync) *HttpHandler {
	return &HttpHandler{sync: s}
}

func (h *HttpHandler) RegisterRoutes(group *gin.RouterGroup) {
	playerGroup := group.Group("/players")
	playerGroup.POST("/:id/connect", h.Connect)
	playerGroup.POST("/:id/disconnect", h.Disconnect)
	playerGroup.GET("/:id/session", h.Session)
	playerGroup.GET("/:id/record", h.Record)

	group.GET("/stats", h.Stats)
}

func (h *HttpHandler) Connect(c *gin.Context) {
	h.publish(c, events.KindConnect)
}

func (h *HttpHandler) Disconnect(c *gin.Context) {
	h.publish(c, events.KindDisconnect)
}

func (h *HttpHandler) publish(c *gin.Context, kind events.Kind) {
	ctx := c.Request.Context()
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	if err := h.sync.Bus.Publish(ctx, events.Event{Kind: kind, PlayerID: id}); err != nil {
		h.error(ctx, c, err)
		return
	}
	h.ok(c, nil)
}

func (h *HttpHandler) Session(c *gin.Context) {
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	s, ok := h.sync.Service.GetActiveSession(id)
	if !ok {
		h.fail(c, transport.NotFound, "玩家不在本进程")
		return
	}
	h.ok(c, handler.ToSessionView(s))
}

func (h *HttpHandler) Record(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := h.playerID(c)
	if !ok {
		return
	}
	view, err := h.sync.Service.Inspect(ctx, id)
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	h.ok(c, view)
}

func (h *HttpHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.sync.Service.Stats(ctx)
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	h.ok(c, st)
}

func (h *HttpHandler) playerID(c *gin.Context) (entity.PlayerID, bool) {
	id, err := entity.ParsePlayerID(c.Param("id"))
	if err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return "", false
	}
	return id, true
}

func (h *HttpHandler) ok(c *gin.Context, data any) {
	c.JSON(nethttp.StatusOK, dto.Success(transport.OK, data))
}

func (h *HttpHandler) fail(c *gin.Context, code int, msg string) {
	c.JSON(nethttp.StatusOK, dto.Error(code, msg))
}

func (h *HttpHandler) error(ctx context.Context, c *gin.Context, err error) {
	code, msg := handler.HandleError(ctx, err)
	h.fail(c, code, msg)
}
