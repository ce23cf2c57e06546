package actor

import (
	"context"
	"errors"
	"time"

	protoactor "github.com/asynkron/protoactor-go/actor"

	"PlayerSync/internal/player/actors"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/shared/transport"
)

const defaultAskTimeout = 3 * time.Second

type RuntimeError struct {
	Code    int
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RuntimeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Runtime 持有 actor 系统和 manager，外部只通过它给玩家 actor 发消息。
// Connect/Disconnect/Flush 只投递不等待；Release/State/Stats 走 RequestFuture。
type Runtime struct {
	system  *protoactor.ActorSystem
	root    *protoactor.RootContext
	manager *protoactor.PID
	timeout time.Duration
}

func NewRuntime(deps *actors.Deps, askTimeout time.Duration) *Runtime {
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}

	/**
	ActorSystem 相当于容器：管理 PID、调度、邮箱、系统消息。
	root context 是系统外部对 actor 的操作入口（Spawn/Send/Request/Stop）。
	*/
	system := protoactor.NewActorSystem()
	root := system.Root
	/**
	manager 只做路由和子 actor 生命周期，不做 I/O；
	每个玩家一个子 actor，存储/缓存 I/O 由子 actor 丢给 executor。
	*/
	manager := root.Spawn(actors.ManagerProps(deps))

	return &Runtime{
		system:  system,
		root:    root,
		manager: manager,
		timeout: askTimeout,
	}
}

func (r *Runtime) Connect(id entity.PlayerID) {
	r.send(&actors.Connect{PlayerID: id})
}

func (r *Runtime) Disconnect(id entity.PlayerID) {
	r.send(&actors.Disconnect{PlayerID: id})
}

func (r *Runtime) Flush(id entity.PlayerID) {
	r.send(&actors.Flush{PlayerID: id})
}

// Release 释放玩家并等到存储写完（或重试用完）。写存储可能要重试，ctx 有 deadline 时以它为准。
func (r *Runtime) Release(ctx context.Context, id entity.PlayerID) error {
	timeout := r.timeoutFromContext(ctx)
	if ctx != nil {
		if deadline, ok := ctx.Deadline(); ok {
			timeout = max(time.Until(deadline), time.Millisecond)
		}
	}
	res, err := r.request(r.manager, &actors.Release{PlayerID: id}, timeout)
	if err != nil {
		return err
	}
	done, ok := res.(*actors.ReleaseDone)
	if !ok {
		return &RuntimeError{Code: transport.SystemError, Message: "actor 返回类型非法"}
	}
	return done.Err
}

func (r *Runtime) State(ctx context.Context, id entity.PlayerID) (*actors.PlayerState, error) {
	res, err := r.request(r.manager, &actors.Inspect{PlayerID: id}, r.timeoutFromContext(ctx))
	if err != nil {
		return nil, err
	}
	st, ok := res.(*actors.PlayerState)
	if !ok {
		return nil, &RuntimeError{Code: transport.SystemError, Message: "actor 返回类型非法"}
	}
	return st, nil
}

func (r *Runtime) Stats(ctx context.Context) (*actors.RuntimeStats, error) {
	res, err := r.request(r.manager, &actors.Stats{}, r.timeoutFromContext(ctx))
	if err != nil {
		return nil, err
	}
	st, ok := res.(*actors.RuntimeStats)
	if !ok {
		return nil, &RuntimeError{Code: transport.SystemError, Message: "actor 返回类型非法"}
	}
	return st, nil
}

// Live 返回还有子 actor 的玩家，关服时用它兜住已经不在 registry 里、但释放还没写完的玩家。
func (r *Runtime) Live(ctx context.Context) ([]entity.PlayerID, error) {
	st, err := r.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return st.IDs, nil
}

func (r *Runtime) Shutdown() {
	if r == nil {
		return
	}
	if r.root != nil && r.manager != nil {
		// 等 manager 和所有子 actor 停完再关系统
		_ = r.root.StopFuture(r.manager).Wait()
	}
	if r.system != nil {
		r.system.Shutdown()
	}
}

func (r *Runtime) send(msg any) {
	if r == nil || r.root == nil {
		return
	}
	r.root.Send(r.manager, msg)
}

func (r *Runtime) request(pid *protoactor.PID, msg any, timeout time.Duration) (any, error) {
	if r == nil || r.root == nil {
		return nil, &RuntimeError{Code: transport.SystemError, Message: "actor runtime 未初始化"}
	}
	if pid == nil {
		return nil, &RuntimeError{Code: transport.SystemError, Message: "actor pid 为空"}
	}

	// future 的 PID 作为 Sender，对方 Respond 回到 future；超时返回 ErrTimeout
	future := r.root.RequestFuture(pid, msg, timeout)
	res, err := future.Result()
	if err != nil {
		return nil, &RuntimeError{
			Code:    transport.Unavailable,
			Message: "actor 请求失败",
			Cause:   err,
		}
	}
	return res, nil
}

func (r *Runtime) timeoutFromContext(ctx context.Context) time.Duration {
	if r == nil || r.timeout <= 0 {
		return defaultAskTimeout
	}
	if ctx == nil {
		return r.timeout
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return r.timeout
	}
	remain := time.Until(deadline)
	if remain <= 0 {
		return time.Millisecond
	}
	if remain < r.timeout {
		return remain
	}
	return r.timeout
}

func CodeFromError(err error) int {
	if err == nil {
		return transport.OK
	}
	var re *RuntimeError
	if errors.As(err, &re) && re != nil && re.Code != 0 {
		return re.Code
	}
	return transport.SystemError
}
