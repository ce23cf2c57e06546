package dc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/registry"
	"PlayerSync/modules/kit/logx"
)

const defaultFinalParallel = 16

// Flusher 由协调器实现：Flush 只投递，Release 等到存储写完。
// Live 列出协调器里还有状态的玩家，包括已经出了 registry、释放还在重试的。
type Flusher interface {
	Flush(id entity.PlayerID)
	Release(ctx context.Context, id entity.PlayerID) error
	Live(ctx context.Context) ([]entity.PlayerID, error)
}

// Scheduler 是进程里唯一的定时落盘器：每个周期给所有脏 Session 发一次 Flush，
// 真正的写存储在各玩家 actor 里排队，一个玩家失败不影响其他玩家。
type Scheduler struct {
	reg      *registry.Registry
	f        Flusher
	interval time.Duration
	parallel int
	log      logx.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler interval<=0 表示关闭定时落盘，Start 不起协程。
func NewScheduler(reg *registry.Registry, f Flusher, interval time.Duration, log logx.Logger) *Scheduler {
	if log == nil {
		log = logx.Nop()
	}
	return &Scheduler{
		reg:      reg,
		f:        f,
		interval: interval,
		parallel: defaultFinalParallel,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed || s.interval <= 0 {
		return
	}
	s.started = true
	go s.loop()
}

// Stop 停掉定时器并等 loop 退出，可重复调用。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stop:
			return
		}
	}
}

// Tick 给每个脏 Session 投递一次 Flush，返回投递数。
func (s *Scheduler) Tick() int {
	dirty := s.reg.DirtySessions()
	for _, sess := range dirty {
		s.f.Flush(sess.ID())
	}
	if len(dirty) > 0 {
		s.log.Debug("persistence tick", zap.Int("dirty", len(dirty)), zap.Int("sessions", s.reg.Count()))
	}
	return len(dirty)
}

// FinalFlush 关服时同步释放所有在线和接入中的玩家（写存储并解锁），错误合并返回。
func (s *Scheduler) FinalFlush(ctx context.Context) error {
	ids := make([]entity.PlayerID, 0, s.reg.Count()+s.reg.ProvisionalCount())
	seen := make(map[entity.PlayerID]struct{})
	for _, sess := range s.reg.Sessions() {
		ids = append(ids, sess.ID())
		seen[sess.ID()] = struct{}{}
	}
	add := func(id entity.PlayerID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range s.reg.Provisional() {
		add(id)
	}
	live, err := s.f.Live(ctx)
	if err != nil {
		logx.ReportSysWarnWithLoggerContext(ctx, s.log, logx.NewSysLog("list live players", err))
	}
	for _, id := range live {
		add(id)
	}
	if len(ids) == 0 {
		return err
	}

	begin := time.Now()
	var (
		g      errgroup.Group
		mu     sync.Mutex
		merged = err
	)
	g.SetLimit(s.parallel)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.f.Release(ctx, id); err != nil {
				mu.Lock()
				merged = multierr.Append(merged, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := len(multierr.Errors(merged))
	s.log.Info("final flush done",
		zap.Int("players", len(ids)),
		zap.Int("failed", failed),
		zap.Duration("cost", time.Since(begin)),
	)
	return merged
}
