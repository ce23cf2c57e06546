package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/shared/executor"
	"PlayerSync/modules/kit/logx"
)

const defaultIOTimeout = 5 * time.Second

// PlayerActor 是单个玩家在本进程内的所有权状态机。
// 所有存储/缓存 I/O 都丢到 executor，结果以 *ioResult 回到邮箱，同一时刻最多一个 I/O 在途，
// 所以同一玩家的接入、落盘、释放按到达顺序串行。
type PlayerActor struct {
	id   PlayerID
	deps *Deps
	log  logx.Logger

	self   *actor.PID
	parent *actor.PID
	root   *actor.RootContext

	state      entity.State
	wantOnline bool
	busy       bool
	session    *entity.Session

	// 一次接入的上下文；取消接入时 gen++，之前发出的 I/O 结果就会被识别为过期
	gen           uint64
	retry         entity.RetryState
	polls         int
	staleReported bool
	trace         context.Context
	begin         time.Time

	timer    *time.Timer
	timerSeq uint64
	timerOp  ioOp

	releaseData    []byte
	releaseAttempt int
	releaseErr     error
	waiters        []*actor.PID

	handled      uint64
	idleReported bool
	idleAt       uint64
}

func NewPlayerActor(id PlayerID, deps *Deps) *PlayerActor {
	return &PlayerActor{
		id:    id,
		deps:  deps,
		log:   deps.logger().With(zap.String("player_id", id.String())),
		state: entity.StateNone,
		trace: context.Background(),
	}
}

func (p *PlayerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.self = ctx.Self()
		p.parent = ctx.Parent()
		p.root = ctx.ActorSystem().Root
		return
	case *actor.Stopping:
		p.stopTimer()
		return
	case *Connect:
		p.handled++
		p.wantOnline = true
	case *Disconnect:
		p.handled++
		p.leave()
	case *Release:
		p.handled++
		if sender := ctx.Sender(); sender != nil {
			p.waiters = append(p.waiters, sender)
		}
		p.leave()
	case *Flush:
		p.handled++
		p.flush()
	case *Inspect:
		p.handled++
		ctx.Respond(p.snapshotState())
	case *ioResult:
		p.busy = false
		p.onResult(msg)
	case *timerFired:
		if msg.seq != p.timerSeq || p.timer == nil {
			return
		}
		p.timer = nil
		p.run(p.timerOp)
	default:
		return
	}
	p.drive(ctx)
}

// drive 在每条消息处理完后推进状态机：没有在途 I/O 和定时器时，按 wantOnline 决定接入还是释放。
func (p *PlayerActor) drive(ctx actor.Context) {
	if p.busy || p.timer != nil {
		return
	}
	switch p.state {
	case entity.StateActive:
		if !p.wantOnline {
			p.startRelease()
		}
	case entity.StateNone, entity.StateReleased:
		p.notifyWaiters(ctx)
		if p.wantOnline {
			p.startAcquire()
			return
		}
		p.reportIdle(ctx)
	}
}

func (p *PlayerActor) leave() {
	p.wantOnline = false
	if p.state.Provisional() {
		p.cancelAcquire()
	}
}

func (p *PlayerActor) run(op ioOp) {
	switch op {
	case opTakePayload:
		p.pollCache()
	case opLoad:
		p.load()
	case opRelease:
		p.writeRelease()
	}
}

func (p *PlayerActor) onResult(res *ioResult) {
	if res.gen != p.gen {
		p.discard(res)
		return
	}
	switch res.op {
	case opCheckHandoff:
		p.onCheckHandoff(res)
	case opTakePayload:
		p.onTakePayload(res)
	case opLoad:
		p.onLoad(res)
	case opHandoffDone:
		p.onHandoffDone(res)
	case opFlush:
		p.onFlush(res)
	case opRelease:
		p.onRelease(res)
	case opCleanup:
		p.onCleanup(res)
	}
}

// submit 把 fn 丢到 executor，结果带上当前 gen 发回自己。
func (p *PlayerActor) submit(op ioOp, fn func(ctx context.Context) *ioResult) {
	p.busy = true
	gen, self, root := p.gen, p.self, p.root
	base := p.trace
	timeout := p.deps.Options.IOTimeout
	if timeout <= 0 {
		timeout = defaultIOTimeout
	}
	task := func() {
		var res *ioResult
		defer func() {
			if r := recover(); r != nil {
				res = &ioResult{err: &executor.PanicError{Value: r}}
			}
			if res == nil {
				res = &ioResult{}
			}
			res.op, res.gen = op, gen
			root.Send(self, res)
		}()
		ioCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		res = fn(ioCtx)
	}
	if err := p.deps.Executor.Submit(task); err != nil {
		root.Send(self, &ioResult{op: op, gen: gen, err: err})
	}
}

func (p *PlayerActor) schedule(d time.Duration, op ioOp) {
	p.stopTimer()
	p.timerSeq++
	seq, self, root := p.timerSeq, p.self, p.root
	p.timerOp = op
	p.timer = time.AfterFunc(d, func() {
		root.Send(self, &timerFired{seq: seq})
	})
}

func (p *PlayerActor) stopTimer() {
	if p.timer == nil {
		return
	}
	p.timer.Stop()
	p.timer = nil
}

func (p *PlayerActor) notifyWaiters(ctx actor.Context) {
	if len(p.waiters) == 0 {
		return
	}
	done := &ReleaseDone{PlayerID: p.id, Err: p.releaseErr}
	for _, w := range p.waiters {
		ctx.Send(w, done)
	}
	p.waiters = nil
	p.releaseErr = nil
}

// reportIdle 同一个 handled 只报一次；manager 确认没有未处理的转发消息后才停掉本 actor。
func (p *PlayerActor) reportIdle(ctx actor.Context) {
	if p.parent == nil || (p.idleReported && p.idleAt == p.handled) {
		return
	}
	p.idleReported, p.idleAt = true, p.handled
	ctx.Send(p.parent, &childIdle{id: p.id, handled: p.handled})
}

func (p *PlayerActor) snapshotState() *PlayerState {
	return &PlayerState{
		PlayerID:   p.id,
		State:      p.state,
		Attempt:    p.retry.Attempt,
		Busy:       p.busy,
		HasSession: p.session != nil,
		WantOnline: p.wantOnline,
	}
}
