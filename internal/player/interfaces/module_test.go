package interfaces

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"PlayerSync/internal/player/actors"
	"PlayerSync/internal/player/codec"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/events"
	memstore "PlayerSync/internal/player/infra/persistence/memory"
	"PlayerSync/internal/player/registry"
	"PlayerSync/internal/player/service"
	"PlayerSync/internal/shared/executor"
	"PlayerSync/internal/shared/metrics"
	"PlayerSync/internal/shared/transport"
	"PlayerSync/internal/shared/transport/ws"
	"PlayerSync/modules/kit/logx"
)

type testEnv struct {
	engine *gin.Engine
	router *ws.Router
	store  *memstore.Store
	svc    *service.PlayerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.NewStore()
	opts := actors.DefaultOptions()
	opts.PersistenceInterval = 0
	opts.LocalRetryDelay = 20 * time.Millisecond
	deps := &actors.Deps{
		Store:    store,
		Codec:    codec.ProtoCodec{},
		Registry: registry.New(),
		Executor: executor.New(2),
		Metrics:  metrics.New(),
		Logger:   logx.Nop(),
		Options:  opts,
	}
	svc := service.New(deps)
	svc.Start()
	bus := events.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Subscribe(ctx, bus) }()
	t.Cleanup(func() {
		cancel()
		bus.Close()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = svc.Shutdown(sctx)
	})

	m := New(svc, bus, logx.Nop())
	engine := gin.New()
	m.HttpRegister(engine.Group("/v1"))
	router := ws.NewRouter(logx.Nop())
	m.WsRegister(router)
	return &testEnv{engine: engine, router: router, store: store, svc: svc}
}

type httpResp struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string) httpResp {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("%s %s status=%d", method, path, w.Code)
	}
	var out httpResp
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("解析响应失败: %v body=%s", err, w.Body.String())
	}
	return out
}

type fakeLink struct {
	mu    sync.Mutex
	props map[string]any
	done  chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{props: map[string]any{}, done: make(chan struct{})}
}

func (c *fakeLink) SetProperty(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[key] = value
}

func (c *fakeLink) GetProperty(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[key]
}

func (c *fakeLink) RemoveProperty(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.props, key)
}

func (c *fakeLink) Addr() string          { return "fake-link" }
func (c *fakeLink) Push(string, any)      {}
func (c *fakeLink) Close()                { close(c.done) }
func (c *fakeLink) Done() <-chan struct{} { return c.done }

func (e *testEnv) dispatch(name string, msg any) *ws.WsMsgResp {
	return e.dispatchOn(nil, name, msg)
}

func (e *testEnv) dispatchOn(conn ws.WSConn, name string, msg any) *ws.WsMsgResp {
	req := &ws.WsMsgReq{Body: &ws.ReqBody{Seq: 1, Name: name, Msg: msg}, Conn: conn}
	resp := &ws.WsMsgResp{Body: &ws.RespBody{Seq: 1, Name: name}}
	e.router.Dispatch(req, resp)
	return resp
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待超时: %s", what)
}

func TestHttp_接入后能查到Session和记录(t *testing.T) {
	env := newTestEnv(t)

	if r := env.do(t, nethttp.MethodPost, "/v1/players/p1/connect"); r.Code != transport.OK {
		t.Fatalf("connect 期望 code=0, got=%d msg=%s", r.Code, r.Msg)
	}
	waitUntil(t, "session 出现", func() bool {
		_, ok := env.svc.GetActiveSession("p1")
		return ok
	})

	r := env.do(t, nethttp.MethodGet, "/v1/players/p1/session")
	if r.Code != transport.OK {
		t.Fatalf("session 期望 code=0, got=%d", r.Code)
	}
	var view struct {
		PlayerID   string `json:"player_id"`
		LoadedFrom string `json:"loaded_from"`
	}
	if err := json.Unmarshal(r.Data, &view); err != nil {
		t.Fatalf("解析 session 失败: %v", err)
	}
	if view.PlayerID != "p1" || view.LoadedFrom != string(entity.SourceStore) {
		t.Fatalf("session 视图不符: %+v", view)
	}

	r = env.do(t, nethttp.MethodGet, "/v1/players/p1/record")
	var rec service.RecordView
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		t.Fatalf("解析 record 失败: %v", err)
	}
	if !rec.Exists || !rec.Locked || !rec.HasSession {
		t.Fatalf("期望记录存在且被本进程锁住: %+v", rec)
	}
}

func TestHttp_离开后Session消失且锁释放(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, nethttp.MethodPost, "/v1/players/p1/connect")
	waitUntil(t, "session 出现", func() bool {
		_, ok := env.svc.GetActiveSession("p1")
		return ok
	})

	if r := env.do(t, nethttp.MethodPost, "/v1/players/p1/disconnect"); r.Code != transport.OK {
		t.Fatalf("disconnect 期望 code=0, got=%d", r.Code)
	}
	waitUntil(t, "锁释放", func() bool {
		rec, ok := env.store.Peek("p1")
		return ok && !rec.Locked
	})
	if r := env.do(t, nethttp.MethodGet, "/v1/players/p1/session"); r.Code != transport.NotFound {
		t.Fatalf("期望离开后 session 不存在, got=%d", r.Code)
	}
}

func TestHttp_非法ID返回参数错误(t *testing.T) {
	env := newTestEnv(t)
	long := strings.Repeat("x", 200)
	if r := env.do(t, nethttp.MethodPost, "/v1/players/"+long+"/connect"); r.Code != transport.InvalidParam {
		t.Fatalf("期望 code=%d, got=%d", transport.InvalidParam, r.Code)
	}
}

func TestHttp_Stats(t *testing.T) {
	env := newTestEnv(t)
	r := env.do(t, nethttp.MethodGet, "/v1/stats")
	if r.Code != transport.OK {
		t.Fatalf("stats 期望 code=0, got=%d", r.Code)
	}
	var st service.Stats
	if err := json.Unmarshal(r.Data, &st); err != nil {
		t.Fatalf("解析 stats 失败: %v", err)
	}
	if st.Sessions != 0 || st.Draining {
		t.Fatalf("期望空进程的统计, got=%+v", st)
	}
}

func TestWs_接入并查询状态(t *testing.T) {
	env := newTestEnv(t)

	resp := env.dispatch("player.connect", map[string]any{"player_id": "p2"})
	if resp.Body.Code != transport.OK {
		t.Fatalf("ws connect 期望 code=0, got=%d msg=%v", resp.Body.Code, resp.Body.Msg)
	}
	waitUntil(t, "session 出现", func() bool {
		_, ok := env.svc.GetActiveSession("p2")
		return ok
	})

	resp = env.dispatch("player.state", map[string]any{"player_id": "p2"})
	if resp.Body.Code != transport.OK {
		t.Fatalf("ws state 期望 code=0, got=%d", resp.Body.Code)
	}
	b, _ := json.Marshal(resp.Body.Msg)
	var st struct {
		State      string `json:"state"`
		HasSession bool   `json:"has_session"`
	}
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("解析 state 失败: %v", err)
	}
	if st.State != entity.StateActive.String() || !st.HasSession {
		t.Fatalf("期望 Active 且有 session, got=%+v", st)
	}
}

func TestWs_缺参数返回参数错误(t *testing.T) {
	env := newTestEnv(t)
	resp := env.dispatch("player.connect", map[string]any{"player_id": ""})
	if resp.Body.Code != transport.InvalidParam {
		t.Fatalf("期望 code=%d, got=%d", transport.InvalidParam, resp.Body.Code)
	}
}

func TestWs_link断开时替玩家离开(t *testing.T) {
	env := newTestEnv(t)
	link := newFakeLink()

	for _, id := range []string{"p3", "p4"} {
		if resp := env.dispatchOn(link, "player.connect", map[string]any{"player_id": id}); resp.Body.Code != transport.OK {
			t.Fatalf("connect %s 期望 code=0, got=%d", id, resp.Body.Code)
		}
	}
	waitUntil(t, "两个 session 出现", func() bool {
		_, ok3 := env.svc.GetActiveSession("p3")
		_, ok4 := env.svc.GetActiveSession("p4")
		return ok3 && ok4
	})

	link.Close()
	waitUntil(t, "link 上的玩家全部释放", func() bool {
		for _, id := range []entity.PlayerID{"p3", "p4"} {
			rec, ok := env.store.Peek(id)
			if !ok || rec.Locked {
				return false
			}
			if _, online := env.svc.GetActiveSession(id); online {
				return false
			}
		}
		return true
	})
}

func TestWs_已离开的玩家link断开时不再重复离开(t *testing.T) {
	env := newTestEnv(t)
	link := newFakeLink()

	env.dispatchOn(link, "player.connect", map[string]any{"player_id": "p5"})
	env.dispatchOn(link, "player.disconnect", map[string]any{"player_id": "p5"})
	lp := link.GetProperty("players")
	if lp == nil {
		t.Fatalf("期望 link 上记录了接入过的玩家")
	}
	waitUntil(t, "p5 释放", func() bool {
		rec, ok := env.store.Peek("p5")
		return ok && !rec.Locked
	})
	// 重新在别的入口上线，link 断开不应把它踢下线
	env.do(t, nethttp.MethodPost, "/v1/players/p5/connect")
	waitUntil(t, "p5 重新上线", func() bool {
		_, ok := env.svc.GetActiveSession("p5")
		return ok
	})
	link.Close()
	time.Sleep(100 * time.Millisecond)
	if _, ok := env.svc.GetActiveSession("p5"); !ok {
		t.Fatalf("期望 p5 仍在线")
	}
}
