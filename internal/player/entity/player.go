package entity

import (
	"strings"
	"time"
	"unicode"

	"PlayerSync/internal/player/errs"
)

const maxPlayerIDLen = 128

// PlayerID 是玩家的稳定标识，跨进程一致。
type PlayerID string

// ParsePlayerID 校验外部传入的 id：非空、不超过 128 字节、不含空白和控制字符。
func ParsePlayerID(s string) (PlayerID, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxPlayerIDLen {
		return "", errs.ErrInvalidPlayerID.WithData("player_id", s)
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", errs.ErrInvalidPlayerID.WithData("player_id", s)
		}
	}
	return PlayerID(s), nil
}

func (id PlayerID) String() string { return string(id) }

// PlayerRecord 是存储里的一条玩家记录。
// Payload 对本系统不透明；Locked 是唯一的所有权标记。
type PlayerRecord struct {
	ID      PlayerID
	Payload []byte
	Locked  bool
	// LockedAt 是最近一次 false->true 的时间，只用于残留锁检测
	LockedAt  time.Time
	UpdatedAt time.Time
}

// NewPlayerRecord 首次接入时创建的空记录，未加锁。
func NewPlayerRecord(id PlayerID, now time.Time) *PlayerRecord {
	return &PlayerRecord{
		ID:        id,
		Payload:   []byte{},
		UpdatedAt: now,
	}
}

func (r *PlayerRecord) Clone() *PlayerRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = append([]byte(nil), r.Payload...)
	return &out
}

// LockHeldFor 锁已持有多久；未加锁或不知道加锁时间时返回 0。
func (r *PlayerRecord) LockHeldFor(now time.Time) time.Duration {
	if r == nil || !r.Locked || r.LockedAt.IsZero() {
		return 0
	}
	return now.Sub(r.LockedAt)
}
