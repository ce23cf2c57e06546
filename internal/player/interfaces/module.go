package interfaces

import (
	"github.com/gin-gonic/gin"

	"PlayerSync/internal/player/events"
	"PlayerSync/internal/player/interfaces/handler"
	"PlayerSync/internal/player/interfaces/handler/http"
	ws2 "PlayerSync/internal/player/interfaces/handler/ws"
	"PlayerSync/internal/player/service"
	transporthttp "PlayerSync/internal/shared/transport/http"
	"PlayerSync/internal/shared/transport/ws"
	"PlayerSync/modules/kit/logx"
)

type Module struct {
	wsHandler   *ws2.WsHandler
	httpHandler *http.HttpHandler
}

func New(svc *service.PlayerService, bus *events.Bus, l logx.Logger) *Module {
	sync := handler.NewSync(svc, bus)
	return &Module{
		wsHandler:   ws2.NewWsHandler(sync, l),
		httpHandler: http.NewHttpHandler(sync),
	}
}

func (m *Module) WsRegister(r *ws.Router) {
	m.wsHandler.RegisterRoutes(r)
}

func (m *Module) HttpRegister(g *gin.RouterGroup) {
	m.httpHandler.RegisterRoutes(g)
}

var _ ws.Registrar = (*Module)(nil)
var _ transporthttp.Registrar = (*Module)(nil)
