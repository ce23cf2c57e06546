package actors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
	"PlayerSync/modules/kit/logx"
	"PlayerSync/modules/kit/tracex"
)

// ---- 接入 ----

func (p *PlayerActor) startAcquire() {
	opts := p.deps.Options
	p.gen++
	p.trace = tracex.Ensure(context.Background(), "acquire")
	p.begin = p.deps.now()
	p.deps.Registry.MarkProvisional(p.id)
	p.state = entity.StateJoining
	p.retry = entity.NewRetryState(opts.LocalRetryAttempts, opts.LocalRetryDelay)
	p.polls = 0
	p.staleReported = false

	if !p.deps.cacheOn() {
		p.load()
		return
	}
	cache, id := p.deps.Cache, p.id
	p.submit(opCheckHandoff, func(ctx context.Context) *ioResult {
		on, err := cache.ChangingServer(ctx, id)
		return &ioResult{hit: on, err: err}
	})
}

func (p *PlayerActor) cancelAcquire() {
	p.gen++
	p.stopTimer()
	p.deps.Registry.ClearProvisional(p.id)
	p.state = entity.StateReleased
	p.deps.Metrics.Acquire("cancelled")
	p.log.WithContext(p.trace).Info("player acquisition cancelled",
		zap.Int("attempt", p.retry.Attempt),
		zap.Int("polls", p.polls),
	)
}

func (p *PlayerActor) load() {
	store, id, m := p.deps.Store, p.id, p.deps.Metrics
	p.submit(opLoad, func(ctx context.Context) *ioResult {
		begin := time.Now()
		rec, err := store.GetRecord(ctx, id, true)
		m.Observe("get", begin)
		return &ioResult{rec: rec, err: err}
	})
}

func (p *PlayerActor) pollCache() {
	cache, id, m := p.deps.Cache, p.id, p.deps.Metrics
	p.submit(opTakePayload, func(ctx context.Context) *ioResult {
		begin := time.Now()
		data, ok, err := cache.TakePayload(ctx, id)
		m.Observe("cache_take", begin)
		return &ioResult{data: data, hit: ok, err: err}
	})
}

func (p *PlayerActor) onCheckHandoff(res *ioResult) {
	if res.err != nil {
		logx.ReportSysWarnWithLoggerContext(p.trace, p.log,
			logx.NewSysLog("check handoff flag", errs.Backend("cache.ChangingServer", p.id.String(), res.err)))
		p.load()
		return
	}
	if !res.hit {
		p.load()
		return
	}
	p.state = entity.StateWaitingForLock
	p.schedule(p.deps.Options.FastCachePollInterval, opTakePayload)
}

func (p *PlayerActor) onTakePayload(res *ioResult) {
	m := p.deps.Metrics
	if res.err == nil && res.hit {
		payload, err := p.deps.Codec.Decode(res.data)
		if err == nil {
			m.CachePoll("hit")
			if err := p.install(payload, entity.SourceCache); err != nil {
				p.giveUp(err, "error")
				return
			}
			// 缓存数据没有进存储，标脏让第一次落盘把它写进去（同时重新加锁）
			p.session.MarkDirty()
			p.finishHandoff()
			return
		}
		m.CachePoll("error")
		logx.ReportSysErrorWithLoggerContext(p.trace, p.log,
			logx.NewSysLog("decode handoff payload", errs.Serialization("codec.Decode", p.id.String(), err)))
		p.load()
		return
	}

	if res.err != nil {
		m.CachePoll("error")
		logx.ReportSysWarnWithLoggerContext(p.trace, p.log,
			logx.NewSysLog("take handoff payload", errs.Backend("cache.TakePayload", p.id.String(), res.err)),
			zap.Int("poll", p.polls+1))
	} else {
		m.CachePoll("miss")
	}
	p.polls++
	if p.polls >= p.deps.Options.FastCachePollAttempts {
		p.log.WithContext(p.trace).Info("handoff payload not found, fallback to store", zap.Int("polls", p.polls))
		p.load()
		return
	}
	p.schedule(p.deps.Options.FastCachePollInterval, opTakePayload)
}

// finishHandoff 拿到缓存数据后清掉换服标记和存储锁，不阻塞 Session 的使用。
func (p *PlayerActor) finishHandoff() {
	cache, store, id, m := p.deps.Cache, p.deps.Store, p.id, p.deps.Metrics
	p.submit(opHandoffDone, func(ctx context.Context) *ioResult {
		if err := cache.SetChangingServer(ctx, id, false, 0); err != nil {
			return &ioResult{err: errs.Backend("cache.SetChangingServer", id.String(), err)}
		}
		begin := time.Now()
		err := store.SetLock(ctx, id, false)
		m.Observe("set_lock", begin)
		return &ioResult{err: errs.Backend("store.SetLock", id.String(), err)}
	})
}

func (p *PlayerActor) onHandoffDone(res *ioResult) {
	if res.err != nil {
		logx.ReportSysWarnWithLoggerContext(p.trace, p.log, logx.NewSysLog("finish handoff", res.err))
	}
}

func (p *PlayerActor) onLoad(res *ioResult) {
	id := p.id.String()
	if res.err != nil {
		err := errs.Backend("store.GetRecord", id, res.err)
		if p.retry.Exhausted() {
			p.giveUp(err, "error")
			return
		}
		logx.ReportSysWarnWithLoggerContext(p.trace, p.log, logx.NewSysLog("load player record", err),
			zap.Int("attempt", p.retry.Attempt))
		p.retryLoad()
		return
	}

	rec := res.rec
	if rec.Locked {
		p.checkStale(rec)
		if p.retry.Exhausted() {
			p.giveUp(errs.ErrDataUnavailable.WithData("player_id", id), "unavailable")
			return
		}
		p.retryLoad()
		return
	}

	// 到这里锁已经是我们的，失败路径都要把锁还回去
	payload, err := p.deps.Codec.Decode(rec.Payload)
	if err != nil {
		p.giveUp(errs.Serialization("codec.Decode", id, err), "error")
		p.unlock()
		return
	}
	if err := p.install(payload, entity.SourceStore); err != nil {
		p.giveUp(err, "error")
		p.unlock()
	}
}

func (p *PlayerActor) retryLoad() {
	p.retry = p.retry.Next()
	p.deps.Metrics.Retry()
	p.state = entity.StateWaitingForLock
	p.schedule(p.retry.Delay, opLoad)
}

func (p *PlayerActor) checkStale(rec *entity.PlayerRecord) {
	after := p.deps.Options.StaleLockAfter
	if p.staleReported || after <= 0 {
		return
	}
	held := rec.LockHeldFor(p.deps.now())
	if held < after {
		return
	}
	p.staleReported = true
	p.deps.Metrics.StaleLock()
	logx.ReportSysWarnWithLoggerContext(p.trace, p.log,
		logx.NewSysLog("check record lock", errs.ErrStaleLockSuspected.WithData("player_id", p.id.String())),
		zap.Duration("held", held),
		zap.Time("locked_at", rec.LockedAt),
	)
}

func (p *PlayerActor) install(payload entity.Payload, from entity.Source) error {
	s := entity.NewSession(p.id, payload, from, p.deps.now())
	if err := p.deps.Registry.Install(s); err != nil {
		return err
	}
	p.session = s
	p.deps.Registry.ClearProvisional(p.id)
	p.state = entity.StateActive
	p.deps.Metrics.Acquire(string(from))
	p.deps.Metrics.SessionOpened()
	p.log.WithContext(p.trace).Info("player session installed",
		zap.String("from", string(from)),
		zap.Int("retries", p.retry.Attempt),
		zap.Int("polls", p.polls),
		zap.Duration("cost", p.deps.now().Sub(p.begin)),
	)
	return nil
}

// giveUp 本次接入失败：只打一条 error，不建 Session，也不再自动重试，等下一次 Connect。
func (p *PlayerActor) giveUp(err error, result string) {
	logx.ReportSysErrorWithLoggerContext(p.trace, p.log, logx.NewSysLog("acquire player", err),
		zap.Int("reads", p.retry.Attempt+1),
		zap.Duration("cost", p.deps.now().Sub(p.begin)),
	)
	p.deps.Registry.ClearProvisional(p.id)
	p.state = entity.StateReleased
	p.wantOnline = false
	p.deps.Metrics.Acquire(result)
}

func (p *PlayerActor) unlock() {
	store, id := p.deps.Store, p.id
	p.submit(opCleanup, func(ctx context.Context) *ioResult {
		return &ioResult{err: errs.Backend("store.SetLock", id.String(), store.SetLock(ctx, id, false))}
	})
}

// discard 处理已取消接入的迟到结果：拿到的锁要还，取走的缓存数据要放回去。
func (p *PlayerActor) discard(res *ioResult) {
	switch res.op {
	case opLoad:
		if res.err == nil && res.rec != nil && !res.rec.Locked {
			p.unlock()
		}
	case opTakePayload:
		if res.err != nil || !res.hit {
			return
		}
		cache, id, data, ttl := p.deps.Cache, p.id, res.data, p.deps.Options.HandoffTTL
		p.submit(opCleanup, func(ctx context.Context) *ioResult {
			return &ioResult{err: errs.Backend("cache.PutPayload", id.String(), cache.PutPayload(ctx, id, data, ttl))}
		})
	}
}

func (p *PlayerActor) onCleanup(res *ioResult) {
	if res.err != nil {
		logx.ReportSysErrorWithLoggerContext(p.trace, p.log, logx.NewSysLog("return cancelled acquisition", res.err))
	}
}

// ---- 落盘 ----

func (p *PlayerActor) flush() {
	if p.state != entity.StateActive || p.session == nil || !p.session.Dirty() {
		return
	}
	m := p.deps.Metrics
	if p.busy {
		m.Flush("skipped")
		return
	}
	payload, version := p.session.Snapshot()
	data, err := p.deps.Codec.Encode(payload)
	if err != nil {
		m.Flush("fail")
		logx.ReportSysErrorWithLoggerContext(p.trace, p.log,
			logx.NewSysLog("encode player payload", errs.Serialization("codec.Encode", p.id.String(), err)))
		return
	}

	p.trace = tracex.Ensure(context.Background(), "flush")
	store, id := p.deps.Store, p.id
	unlock := !p.deps.Options.LeaveLockedWhileOnline
	p.submit(opFlush, func(ctx context.Context) *ioResult {
		begin := time.Now()
		err := store.UpdateRecord(ctx, id, &entity.PlayerRecord{ID: id, Payload: data}, unlock)
		m.Observe("update", begin)
		if err != nil {
			return &ioResult{version: version, err: errs.Backend("store.UpdateRecord", id.String(), err)}
		}
		if unlock {
			// 不常驻锁：写完立即重新加锁，中间有一个很短的无锁窗口
			if err := store.SetLock(ctx, id, true); err != nil {
				return &ioResult{version: version, err: errs.Backend("store.SetLock", id.String(), err)}
			}
		}
		return &ioResult{version: version}
	})
}

func (p *PlayerActor) onFlush(res *ioResult) {
	if res.err != nil {
		p.deps.Metrics.Flush("fail")
		logx.ReportSysWarnWithLoggerContext(p.trace, p.log, logx.NewSysLog("flush player", res.err))
		return
	}
	if p.session != nil {
		p.session.MarkFlushed(res.version, p.deps.now())
	}
	p.deps.Metrics.Flush("success")
}

// ---- 释放 ----

func (p *PlayerActor) startRelease() {
	p.state = entity.StateReleasing
	p.trace = tracex.Ensure(context.Background(), "release")
	p.begin = p.deps.now()
	p.releaseAttempt = 0
	p.releaseErr = nil
	p.deps.Registry.Remove(p.id)

	p.releaseData = nil
	if p.session != nil {
		payload, _ := p.session.Snapshot()
		data, err := p.deps.Codec.Encode(payload)
		if err != nil {
			// 编码失败只能放锁，存储里保留上一次落盘的数据
			logx.ReportSysErrorWithLoggerContext(p.trace, p.log,
				logx.NewSysLog("encode player payload", errs.Serialization("codec.Encode", p.id.String(), err)))
		} else {
			p.releaseData = data
		}
	}
	p.writeRelease()
}

func (p *PlayerActor) writeRelease() {
	store, cache, id, m := p.deps.Store, p.deps.Cache, p.id, p.deps.Metrics
	data, ttl, log := p.releaseData, p.deps.Options.HandoffTTL, p.log
	withCache := p.deps.cacheOn() && p.releaseAttempt == 0 && data != nil
	p.submit(opRelease, func(ctx context.Context) *ioResult {
		if withCache {
			handOff(ctx, cache, id, data, ttl, log)
		}
		if data == nil {
			return &ioResult{err: errs.Backend("store.SetLock", id.String(), store.SetLock(ctx, id, false))}
		}
		begin := time.Now()
		err := store.UpdateRecord(ctx, id, &entity.PlayerRecord{ID: id, Payload: data}, true)
		m.Observe("update", begin)
		return &ioResult{err: errs.Backend("store.UpdateRecord", id.String(), err)}
	})
}

// handOff 先立换服标记再写数据；写数据失败就撤掉标记，免得对端白等。
func handOff(ctx context.Context, cache port.FastCache, id PlayerID, data []byte, ttl time.Duration, log logx.Logger) {
	if err := cache.SetChangingServer(ctx, id, true, ttl); err != nil {
		logx.ReportSysWarnWithLoggerContext(ctx, log,
			logx.NewSysLog("set handoff flag", errs.Backend("cache.SetChangingServer", id.String(), err)))
		return
	}
	if err := cache.PutPayload(ctx, id, data, ttl); err != nil {
		logx.ReportSysWarnWithLoggerContext(ctx, log,
			logx.NewSysLog("put handoff payload", errs.Backend("cache.PutPayload", id.String(), err)))
		_ = cache.SetChangingServer(ctx, id, false, 0)
	}
}

func (p *PlayerActor) onRelease(res *ioResult) {
	if res.err != nil {
		if p.releaseAttempt < p.deps.Options.ReleaseRetryAttempts {
			p.releaseAttempt++
			logx.ReportSysWarnWithLoggerContext(p.trace, p.log, logx.NewSysLog("release player", res.err),
				zap.Int("attempt", p.releaseAttempt))
			p.schedule(p.deps.Options.LocalRetryDelay, opRelease)
			return
		}
		logx.ReportSysErrorWithLoggerContext(p.trace, p.log, logx.NewSysLog("release player", res.err),
			zap.Int("attempts", p.releaseAttempt+1))
		p.deps.Metrics.Release(false)
		p.finishRelease(res.err)
		return
	}
	p.deps.Metrics.Release(true)
	p.finishRelease(nil)
}

func (p *PlayerActor) finishRelease(err error) {
	p.deps.Registry.ClearProvisional(p.id)
	p.session = nil
	p.releaseData = nil
	p.releaseErr = err
	p.state = entity.StateReleased
	p.deps.Metrics.SessionClosed()
	p.log.WithContext(p.trace).Info("player released",
		zap.Bool("ok", err == nil),
		zap.Duration("cost", p.deps.now().Sub(p.begin)),
	)
}
