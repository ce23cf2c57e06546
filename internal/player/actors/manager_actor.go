package actors

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type child struct {
	pid       *actor.PID
	forwarded uint64
}

// ManagerActor 只做路由和子 actor 的生命周期，不碰存储。
type ManagerActor struct {
	deps     *Deps
	children map[PlayerID]*child
	byPID    map[string]PlayerID // pid.Id -> player id
}

func NewManagerActor(deps *Deps) *ManagerActor {
	return &ManagerActor{
		deps:     deps,
		children: make(map[PlayerID]*child),
		byPID:    make(map[string]PlayerID),
	}
}

// ManagerProps 子 actor panic 时 Resume：状态机保留现场继续处理后续消息。
func ManagerProps(deps *Deps) *actor.Props {
	supervisor := actor.NewOneForOneStrategy(10, time.Minute, func(reason interface{}) actor.Directive {
		deps.logger().Error("player actor panic", zap.Any("reason", reason))
		return actor.ResumeDirective
	})
	return actor.PropsFromProducer(func() actor.Actor {
		return NewManagerActor(deps)
	}, actor.WithSupervisor(supervisor))
}

func (m *ManagerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Connect:
		m.forward(ctx, m.getOrSpawn(ctx, msg.PlayerID))
	case *Disconnect:
		if c, ok := m.children[msg.PlayerID]; ok {
			m.forward(ctx, c)
		}
	case *Flush:
		if c, ok := m.children[msg.PlayerID]; ok {
			m.forward(ctx, c)
		}
	case *Release:
		if c, ok := m.children[msg.PlayerID]; ok {
			m.forward(ctx, c)
			return
		}
		ctx.Respond(&ReleaseDone{PlayerID: msg.PlayerID})
	case *Inspect:
		if c, ok := m.children[msg.PlayerID]; ok {
			m.forward(ctx, c)
			return
		}
		ctx.Respond(&PlayerState{PlayerID: msg.PlayerID})
	case *Stats:
		ids := make([]PlayerID, 0, len(m.children))
		for id := range m.children {
			ids = append(ids, id)
		}
		ctx.Respond(&RuntimeStats{Players: len(m.children), IDs: ids})
	case *childIdle:
		c, ok := m.children[msg.id]
		// 还有转发过去没处理完的消息，等它下次再报
		if !ok || c.forwarded != msg.handled {
			return
		}
		m.remove(msg.id)
		ctx.Stop(c.pid)
	case *actor.Terminated:
		if msg.Who == nil {
			return
		}
		if id, ok := m.byPID[msg.Who.Id]; ok {
			m.remove(id)
		}
	}
}

func (m *ManagerActor) forward(ctx actor.Context, c *child) {
	c.forwarded++
	ctx.Forward(c.pid)
}

func (m *ManagerActor) getOrSpawn(ctx actor.Context, id PlayerID) *child {
	if c, ok := m.children[id]; ok {
		return c
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPlayerActor(id, m.deps)
	})
	pid := ctx.Spawn(props)
	c := &child{pid: pid}
	m.children[id] = c
	m.byPID[pid.Id] = id
	return c
}

func (m *ManagerActor) remove(id PlayerID) {
	c, ok := m.children[id]
	if !ok {
		return
	}
	delete(m.children, id)
	delete(m.byPID, c.pid.Id)
}
