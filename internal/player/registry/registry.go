package registry

import (
	cmap "github.com/orcaman/concurrent-map"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

// Registry 是本进程持有的 Session 表，外加一个“接入中”集合。
// 两张表都是分片并发 map，按 key 原子操作，不同玩家之间没有全局锁。
type Registry struct {
	sessions    cmap.ConcurrentMap
	provisional cmap.ConcurrentMap
}

func New() *Registry {
	return &Registry{
		sessions:    cmap.New(),
		provisional: cmap.New(),
	}
}

// Install 已存在同 id 的 Session 时返回 errs.ErrSessionExists。
func (r *Registry) Install(s *entity.Session) error {
	if !r.sessions.SetIfAbsent(s.ID().String(), s) {
		return errs.ErrSessionExists.WithData("player_id", s.ID().String())
	}
	return nil
}

// Lookup 不阻塞。
func (r *Registry) Lookup(id entity.PlayerID) (*entity.Session, bool) {
	v, ok := r.sessions.Get(id.String())
	if !ok {
		return nil, false
	}
	return v.(*entity.Session), true
}

// Remove 取出并删除。
func (r *Registry) Remove(id entity.PlayerID) (*entity.Session, bool) {
	v, ok := r.sessions.Pop(id.String())
	if !ok {
		return nil, false
	}
	return v.(*entity.Session), true
}

// MarkDirty Session 不存在时返回 false。
func (r *Registry) MarkDirty(id entity.PlayerID) bool {
	s, ok := r.Lookup(id)
	if !ok {
		return false
	}
	s.MarkDirty()
	return true
}

func (r *Registry) Count() int {
	return r.sessions.Count()
}

// Sessions 返回当前所有 Session 的快照列表。
func (r *Registry) Sessions() []*entity.Session {
	out := make([]*entity.Session, 0, r.sessions.Count())
	for item := range r.sessions.IterBuffered() {
		out = append(out, item.Val.(*entity.Session))
	}
	return out
}

// DirtySessions 只返回有未落盘修改的 Session。
func (r *Registry) DirtySessions() []*entity.Session {
	var out []*entity.Session
	for item := range r.sessions.IterBuffered() {
		if s := item.Val.(*entity.Session); s.Dirty() {
			out = append(out, s)
		}
	}
	return out
}

// MarkProvisional 已经在接入中时返回 false。
func (r *Registry) MarkProvisional(id entity.PlayerID) bool {
	return r.provisional.SetIfAbsent(id.String(), struct{}{})
}

func (r *Registry) ClearProvisional(id entity.PlayerID) {
	r.provisional.Remove(id.String())
}

func (r *Registry) IsProvisional(id entity.PlayerID) bool {
	return r.provisional.Has(id.String())
}

func (r *Registry) ProvisionalCount() int {
	return r.provisional.Count()
}

// Provisional 返回接入中的玩家 id。
func (r *Registry) Provisional() []entity.PlayerID {
	keys := r.provisional.Keys()
	out := make([]entity.PlayerID, 0, len(keys))
	for _, k := range keys {
		out = append(out, entity.PlayerID(k))
	}
	return out
}
