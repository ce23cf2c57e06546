package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/player/interfaces/handler"
	"PlayerSync/internal/player/interfaces/handler/ws/dto"
	"PlayerSync/internal/shared/transport"
	"PlayerSync/internal/shared/transport/ws"
	"PlayerSync/modules/kit/logx"
)

const (
	connKeyPlayers = "players"
	dropTimeout    = 5 * time.Second
)

type WsHandler struct {
	sync *handler.Sync
	log  logx.Logger
}

func NewWsHandler(s *handler.Sync, l logx.Logger) *WsHandler {
	if l == nil {
		l = logx.Nop()
	}
	return &WsHandler{sync: s, log: l}
}

func (h *WsHandler) RegisterRoutes(r *ws.Router) {
	playerGroup := r.Group("player")
	playerGroup.Handle("connect", h.Connect)
	playerGroup.Handle("disconnect", h.Disconnect)
	playerGroup.Handle("state", h.State)
}

func (h *WsHandler) Connect(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) {
	h.publish(ctx, wsReq, wsResp, events.KindConnect)
}

func (h *WsHandler) Disconnect(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) {
	h.publish(ctx, wsReq, wsResp, events.KindDisconnect)
}

func (h *WsHandler) publish(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp, kind events.Kind) {
	id, ok := h.bind(ctx, wsReq, wsResp)
	if !ok {
		return
	}
	if err := h.sync.Bus.Publish(ctx, events.Event{Kind: kind, PlayerID: id}); err != nil {
		h.error(ctx, wsResp, err)
		return
	}
	if wsReq.Conn != nil {
		h.track(wsReq.Conn, id, kind == events.KindConnect)
	}
	h.ok(wsResp, nil)
}

// linkPlayers 是经由某条 link 接入、还没离开的玩家。
type linkPlayers struct {
	mu  sync.Mutex
	ids map[entity.PlayerID]struct{}
}

// track 记录 link 上的在线玩家；link 断开时连接层没法再报离开，由这里替它们发 Disconnect。
func (h *WsHandler) track(conn ws.WSConn, id entity.PlayerID, online bool) {
	lp, _ := conn.GetProperty(connKeyPlayers).(*linkPlayers)
	if lp == nil {
		if !online || conn.Done() == nil {
			return
		}
		lp = &linkPlayers{ids: make(map[entity.PlayerID]struct{})}
		conn.SetProperty(connKeyPlayers, lp)
		go h.dropOnClose(conn, lp)
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if online {
		lp.ids[id] = struct{}{}
	} else {
		delete(lp.ids, id)
	}
}

func (h *WsHandler) dropOnClose(conn ws.WSConn, lp *linkPlayers) {
	<-conn.Done()
	lp.mu.Lock()
	ids := make([]entity.PlayerID, 0, len(lp.ids))
	for id := range lp.ids {
		ids = append(ids, id)
	}
	lp.ids = nil
	lp.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	h.log.Warn("ws link closed, disconnecting its players", zap.String("addr", conn.Addr()), zap.Int("players", len(ids)))
	ctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
	defer cancel()
	for _, id := range ids {
		if err := h.sync.Bus.Publish(ctx, events.Event{Kind: events.KindDisconnect, PlayerID: id}); err != nil {
			h.log.Warn("publish disconnect for dropped link", zap.String("player_id", id.String()), zap.Error(err))
		}
	}
}

func (h *WsHandler) State(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) {
	id, ok := h.bind(ctx, wsReq, wsResp)
	if !ok {
		return
	}
	st, err := h.sync.Service.State(ctx, id)
	if err != nil {
		h.error(ctx, wsResp, err)
		return
	}
	h.ok(wsResp, dto.PlayerStateResp{
		PlayerID:   id.String(),
		State:      st.State.String(),
		Attempt:    st.Attempt,
		HasSession: st.HasSession,
	})
}

func (h *WsHandler) bind(ctx context.Context, wsReq *ws.WsMsgReq, wsResp *ws.WsMsgResp) (entity.PlayerID, bool) {
	if wsReq == nil || wsReq.Body == nil || wsResp == nil || wsResp.Body == nil {
		h.fail(wsResp, transport.InvalidParam, "参数有误")
		return "", false
	}
	var req dto.PlayerReq
	if err := ws.BindJSON(wsReq, &req); err != nil {
		h.fail(wsResp, transport.InvalidParam, "参数有误")
		return "", false
	}
	id, err := entity.ParsePlayerID(req.PlayerID)
	if err != nil {
		h.error(ctx, wsResp, err)
		return "", false
	}
	transport.SetPlayerID(ctx, id.String())
	return id, true
}

func (h *WsHandler) ok(wsResp *ws.WsMsgResp, data any) {
	if wsResp == nil || wsResp.Body == nil {
		return
	}
	wsResp.Body.Code = transport.OK
	wsResp.Body.Msg = data
}

func (h *WsHandler) fail(wsResp *ws.WsMsgResp, code int, msg string) {
	if wsResp == nil || wsResp.Body == nil {
		return
	}
	wsResp.Body.Code = code
	wsResp.Body.Msg = msg
}

func (h *WsHandler) error(ctx context.Context, wsResp *ws.WsMsgResp, err error) {
	code, msg := handler.HandleError(ctx, err)
	h.fail(wsResp, code, msg)
}
