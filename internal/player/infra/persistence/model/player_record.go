package model

import (
	"time"

	"PlayerSync/internal/player/entity"
)

// PlayerRecord 是 mysql 表结构。
type PlayerRecord struct {
	PlayerID  string     `gorm:"column:player_id;type:varchar(128);primaryKey;not null;comment:玩家id"`
	Payload   []byte     `gorm:"column:payload;type:mediumblob;comment:玩家数据（不透明）"`
	Locked    bool       `gorm:"column:locked;not null;default:false;index;comment:是否被某个进程持有"`
	LockedAt  *time.Time `gorm:"column:locked_at;comment:最近一次加锁时间"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null;comment:最近一次写入时间"`
}

func (r *PlayerRecord) TableName() string {
	return "player_records"
}

func (r *PlayerRecord) ToEntity() *entity.PlayerRecord {
	out := &entity.PlayerRecord{
		ID:        entity.PlayerID(r.PlayerID),
		Payload:   r.Payload,
		Locked:    r.Locked,
		UpdatedAt: r.UpdatedAt,
	}
	if out.Payload == nil {
		out.Payload = []byte{}
	}
	if r.LockedAt != nil {
		out.LockedAt = *r.LockedAt
	}
	return out
}

// PlayerRecordDoc 是 mongodb 文档结构。
type PlayerRecordDoc struct {
	PlayerID  string     `bson:"_id"`
	Payload   []byte     `bson:"payload"`
	Locked    bool       `bson:"locked"`
	LockedAt  *time.Time `bson:"locked_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func (d *PlayerRecordDoc) ToEntity() *entity.PlayerRecord {
	out := &entity.PlayerRecord{
		ID:        entity.PlayerID(d.PlayerID),
		Payload:   d.Payload,
		Locked:    d.Locked,
		UpdatedAt: d.UpdatedAt,
	}
	if out.Payload == nil {
		out.Payload = []byte{}
	}
	if d.LockedAt != nil {
		out.LockedAt = *d.LockedAt
	}
	return out
}
