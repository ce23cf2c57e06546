package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"PlayerSync/internal/player/actor"
	"PlayerSync/internal/player/actors"
	"PlayerSync/internal/player/dc"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/shared/executor"
	"PlayerSync/modules/kit/logx"
)

const defaultAskTimeout = 3 * time.Second

// RecordView 是存储里一条记录的只读视图，加上本进程对该玩家的状态。
type RecordView struct {
	PlayerID       entity.PlayerID `json:"player_id"`
	Exists         bool            `json:"exists"`
	Locked         bool            `json:"locked"`
	LockedAt       time.Time       `json:"locked_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PayloadBytes   int             `json:"payload_bytes"`
	StaleSuspected bool            `json:"stale_suspected"`
	LocalState     string          `json:"local_state"`
	HasSession     bool            `json:"has_session"`
}

type Stats struct {
	Sessions    int  `json:"sessions"`
	Provisional int  `json:"provisional"`
	Actors      int  `json:"actors"`
	PendingIO   int  `json:"pending_io"`
	Draining    bool `json:"draining"`
}

// PlayerService 是对外的入口：连接层只调 OnPlayerConnect/OnPlayerDisconnect，业务读 GetActiveSession。
type PlayerService struct {
	deps  *actors.Deps
	rt    *actor.Runtime
	sched *dc.Scheduler
	log   logx.Logger

	draining atomic.Bool
	once     sync.Once
	err      error
}

func New(deps *actors.Deps) *PlayerService {
	if deps.Logger == nil {
		deps.Logger = logx.Nop()
	}
	rt := actor.NewRuntime(deps, defaultAskTimeout)
	return &PlayerService{
		deps:  deps,
		rt:    rt,
		sched: dc.NewScheduler(deps.Registry, rt, deps.Options.PersistenceInterval, deps.Logger),
		log:   deps.Logger,
	}
}

// Start 启动定时落盘。
func (s *PlayerService) Start() {
	s.sched.Start()
	s.log.Info("player sync started",
		zap.Duration("persistence_interval", s.sched.Interval()),
		zap.Bool("fast_cache", s.deps.Cache != nil && s.deps.Options.FastCacheEnabled),
		zap.Bool("leave_locked_while_online", s.deps.Options.LeaveLockedWhileOnline),
	)
}

// OnPlayerConnect 只投递，不等接入结果。
func (s *PlayerService) OnPlayerConnect(id entity.PlayerID) {
	if !s.accept("connect", id) {
		return
	}
	s.rt.Connect(id)
}

func (s *PlayerService) OnPlayerDisconnect(id entity.PlayerID) {
	if !s.accept("disconnect", id) {
		return
	}
	s.rt.Disconnect(id)
}

func (s *PlayerService) accept(action string, id entity.PlayerID) bool {
	if id == "" {
		logx.ReportBizWithLoggerContext(context.Background(), s.log,
			logx.NewBizLog(action, string(errs.CodeInvalidPlayerID), "empty player id"))
		return false
	}
	if s.draining.Load() {
		logx.ReportBizWithLoggerContext(context.Background(), s.log,
			logx.NewBizLog(action, "draining", "service is shutting down"),
			zap.String("player_id", id.String()))
		return false
	}
	return true
}

// GetActiveSession 不阻塞；接入中或已释放的玩家返回 false。
func (s *PlayerService) GetActiveSession(id entity.PlayerID) (*entity.Session, bool) {
	return s.deps.Registry.Lookup(id)
}

// Subscribe 消费事件直到 ctx 结束或来源关闭。
func (s *PlayerService) Subscribe(ctx context.Context, src events.Source) error {
	ch := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case events.KindConnect:
				s.OnPlayerConnect(ev.PlayerID)
			case events.KindDisconnect:
				s.OnPlayerDisconnect(ev.PlayerID)
			default:
				s.log.Warn("unknown event kind", zap.Int("kind", int(ev.Kind)), zap.String("player_id", ev.PlayerID.String()))
			}
		}
	}
}

// State 查询玩家 actor 的当前状态。
func (s *PlayerService) State(ctx context.Context, id entity.PlayerID) (*actors.PlayerState, error) {
	return s.rt.State(ctx, id)
}

// Inspect 只读，不加锁；锁持有时间超过阈值时标记疑似残留。
func (s *PlayerService) Inspect(ctx context.Context, id entity.PlayerID) (*RecordView, error) {
	store := s.deps.Store
	rec, err := executor.Go(s.deps.Executor, func() (*entity.PlayerRecord, error) {
		return store.GetRecord(ctx, id, false)
	}).Await(ctx)

	view := &RecordView{PlayerID: id}
	switch {
	case errors.Is(err, errs.ErrRecordNotFound):
	case err != nil:
		return nil, errs.Backend("store.GetRecord", id.String(), err)
	default:
		view.Exists = true
		view.Locked = rec.Locked
		view.LockedAt = rec.LockedAt
		view.UpdatedAt = rec.UpdatedAt
		view.PayloadBytes = len(rec.Payload)
		if after := s.deps.Options.StaleLockAfter; after > 0 {
			view.StaleSuspected = rec.LockHeldFor(s.now()) >= after
		}
	}

	st, err := s.rt.State(ctx, id)
	if err != nil {
		return nil, err
	}
	view.LocalState = st.State.String()
	view.HasSession = st.HasSession
	return view, nil
}

func (s *PlayerService) Stats(ctx context.Context) (*Stats, error) {
	rs, err := s.rt.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Sessions:    s.deps.Registry.Count(),
		Provisional: s.deps.Registry.ProvisionalCount(),
		Actors:      rs.Players,
		PendingIO:   s.deps.Executor.Pending(),
		Draining:    s.draining.Load(),
	}, nil
}

func (s *PlayerService) Draining() bool {
	return s.draining.Load()
}

// Shutdown 停止接收事件和定时落盘，对所有在线/接入中的玩家做一次写存储并解锁，
// 再停 actor 系统和 I/O 池。只执行一次，重复调用返回第一次的结果。
func (s *PlayerService) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		begin := time.Now()
		s.draining.Store(true)
		s.sched.Stop()
		s.err = s.sched.FinalFlush(ctx)
		s.rt.Shutdown()
		s.deps.Executor.Close()
		if s.err != nil {
			logx.ReportSysErrorWithLoggerContext(ctx, s.log, logx.NewSysLog("player sync shutdown", s.err))
		}
		s.log.Info("player sync stopped", zap.Duration("cost", time.Since(begin)))
	})
	return s.err
}

func (s *PlayerService) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now()
	}
	return s.deps.Clock()
}
