package handler

import (
	"time"

	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/events"
	"PlayerSync/internal/player/service"
)

// Sync 是 handler 共用的依赖：接入/离开走事件总线，查询直接读 service。
type Sync struct {
	Service *service.PlayerService
	Bus     *events.Bus
}

func NewSync(svc *service.PlayerService, bus *events.Bus) *Sync {
	return &Sync{Service: svc, Bus: bus}
}

// SessionView 是在线 Session 的对外视图。
type SessionView struct {
	PlayerID   string         `json:"player_id"`
	LoadedFrom string         `json:"loaded_from"`
	CreatedAt  time.Time      `json:"created_at"`
	LastFlush  time.Time      `json:"last_flush"`
	Version    uint64         `json:"version"`
	Dirty      bool           `json:"dirty"`
	Payload    entity.Payload `json:"payload"`
}

func ToSessionView(s *entity.Session) SessionView {
	payload, version := s.Snapshot()
	return SessionView{
		PlayerID:   s.ID().String(),
		LoadedFrom: string(s.LoadedFrom()),
		CreatedAt:  s.CreatedAt(),
		LastFlush:  s.LastFlush(),
		Version:    version,
		Dirty:      s.Dirty(),
		Payload:    payload,
	}
}
