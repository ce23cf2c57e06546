package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"PlayerSync/modules/kit/logx"
)

const (
	sendQueueSize = 256
	maxFrameBytes = 64 << 10
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
)

// WsServer 是连接层进程到本进程的一条 link。帧是明文 JSON 文本。
// 读协程按帧分发，写协程串行写回并定时 ping；pongWait 内对端没有任何动静就断开。
type WsServer struct {
	conn   *websocket.Conn
	router *Router
	log    logx.Logger
	send   chan *RespBody

	mu    sync.RWMutex
	props map[string]any

	done chan struct{}
	once sync.Once
}

func NewWsServer(wsConn *websocket.Conn, l logx.Logger) *WsServer {
	if l == nil {
		l = logx.Nop()
	}
	return &WsServer{
		conn:  wsConn,
		log:   l,
		send:  make(chan *RespBody, sendQueueSize),
		props: make(map[string]any),
		done:  make(chan struct{}),
	}
}

func (s *WsServer) Router(router *Router) {
	s.router = router
}

func (s *WsServer) SetProperty(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[key] = value
}

func (s *WsServer) GetProperty(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[key]
}

func (s *WsServer) RemoveProperty(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, key)
}

func (s *WsServer) Addr() string {
	return s.conn.RemoteAddr().String()
}

// Push 主动推送；连接已关闭时丢弃。
func (s *WsServer) Push(name string, data any) {
	s.enqueue(&RespBody{Name: name, Msg: data})
}

func (s *WsServer) enqueue(body *RespBody) {
	select {
	case s.send <- body:
	case <-s.done:
	}
}

func (s *WsServer) Run() {
	go s.readLoop()
	go s.writeLoop()
}

func (s *WsServer) Close() {
	s.once.Do(func() {
		_ = s.conn.Close()
		close(s.done)
	})
}

func (s *WsServer) Done() <-chan struct{} {
	return s.done
}

func (s *WsServer) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("ws read loop panic", zap.Any("panic", r))
		}
		s.Close()
	}()

	s.conn.SetReadLimit(maxFrameBytes)
	alive := func() { _ = s.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	alive()
	s.conn.SetPongHandler(func(string) error { alive(); return nil })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("ws link read", zap.String("addr", s.Addr()), zap.Error(err))
			}
			return
		}
		alive()
		if body := s.handle(data); body != nil {
			s.enqueue(body)
		}
	}
}

// handle 解一帧并生成应答，应答的 seq 和请求一致；解不开的帧直接丢掉。
func (s *WsServer) handle(data []byte) *RespBody {
	var in ReqBody
	if err := json.Unmarshal(data, &in); err != nil {
		s.log.Warn("ws link bad frame", zap.Int("bytes", len(data)), zap.Error(err))
		return nil
	}
	out := &RespBody{Seq: in.Seq, Name: in.Name}
	if in.Name == HeartbeatMsg {
		h := &Heartbeat{}
		_ = mapstructure.Decode(in.Msg, h)
		h.STime = time.Now().UnixMilli()
		out.Msg = h
		return out
	}
	s.router.Dispatch(&WsMsgReq{Body: &in, Conn: s}, &WsMsgResp{Body: out})
	return out
}

func (s *WsServer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case body := <-s.send:
			s.write(websocket.TextMessage, body)
		case <-ticker.C:
			s.write(websocket.PingMessage, nil)
		case <-s.done:
			return
		}
	}
}

func (s *WsServer) write(kind int, body *RespBody) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			s.log.Error("ws link marshal", zap.String("name", body.Name), zap.Error(err))
			return
		}
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(kind, data); err != nil {
		s.log.Warn("ws link write", zap.String("addr", s.Addr()), zap.Error(err))
		s.Close()
	}
}
