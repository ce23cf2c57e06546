package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/infra/persistence/model"
)

const (
	OpGetRecord    = "repo.mysql.GetRecord"
	OpUpdateRecord = "repo.mysql.UpdateRecord"
	OpSetLock      = "repo.mysql.SetLock"
)

type PlayerRepo struct {
	db  *gorm.DB
	now func() time.Time
}

var _ port.DurableStore = (*PlayerRepo)(nil)

func NewPlayerRepo(db *gorm.DB) *PlayerRepo {
	return &PlayerRepo{db: db, now: time.Now}
}

// Migrate 建表，启动时调用一次。
func (r *PlayerRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&model.PlayerRecord{})
}

func (r *PlayerRepo) WithTx(tx *gorm.DB) *PlayerRepo {
	return &PlayerRepo{db: tx, now: r.now}
}

// GetRecord 在一个事务里 SELECT ... FOR UPDATE 再条件加锁，读和加锁对其他进程是原子的。
func (r *PlayerRepo) GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error) {
	if !acquireLock {
		var m model.PlayerRecord
		err := r.db.WithContext(ctx).Where("player_id = ?", id.String()).First(&m).Error
		switch {
		case err == nil:
			return m.ToEntity(), nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, errs.ErrRecordNotFound.WithData("player_id", id.String())
		default:
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}
	}

	var out *entity.PlayerRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := r.WithTx(tx).lockRow(id)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, errs.Backend(OpGetRecord, id.String(), err)
	}
	return out, nil
}

func (r *PlayerRepo) lockRow(id entity.PlayerID) (*entity.PlayerRecord, error) {
	now := r.now()
	var m model.PlayerRecord
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("player_id = ?", id.String()).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created := model.PlayerRecord{
			PlayerID:  id.String(),
			Payload:   []byte{},
			Locked:    true,
			LockedAt:  &now,
			UpdatedAt: now,
		}
		res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return entity.NewPlayerRecord(id, now), nil
		}
		// 并发创建，别人先插进去了，按已存在处理
		err = r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("player_id = ?", id.String()).First(&m).Error
	}
	if err != nil {
		return nil, err
	}

	out := m.ToEntity()
	if !m.Locked {
		err = r.db.Model(&model.PlayerRecord{}).
			Where("player_id = ? AND locked = ?", id.String(), false).
			Updates(map[string]any{"locked": true, "locked_at": now}).Error
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PlayerRepo) UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error {
	now := r.now()
	m := model.PlayerRecord{
		PlayerID:  id.String(),
		Payload:   rec.Payload,
		Locked:    !unlock,
		UpdatedAt: now,
	}
	assign := map[string]any{
		"payload":    rec.Payload,
		"locked":     !unlock,
		"updated_at": now,
	}
	if unlock {
		assign["locked_at"] = nil
	} else {
		m.LockedAt = &now
		assign["locked_at"] = gorm.Expr("COALESCE(locked_at, ?)", now)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(&m).Error
	if err != nil {
		return errs.Backend(OpUpdateRecord, id.String(), err)
	}
	return nil
}

func (r *PlayerRepo) SetLock(ctx context.Context, id entity.PlayerID, locked bool) error {
	assign := map[string]any{"locked": locked}
	if locked {
		assign["locked_at"] = gorm.Expr("COALESCE(locked_at, ?)", r.now())
	} else {
		assign["locked_at"] = nil
	}

	res := r.db.WithContext(ctx).Model(&model.PlayerRecord{}).Where("player_id = ?", id.String()).Updates(assign)
	if res.Error != nil {
		return errs.Backend(OpSetLock, id.String(), res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// mysql 值没变时 RowsAffected 也是 0，再确认一下记录在不在
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.PlayerRecord{}).Where("player_id = ?", id.String()).Count(&n).Error; err != nil {
		return errs.Backend(OpSetLock, id.String(), err)
	}
	if n == 0 {
		return errs.ErrRecordNotFound.WithData("player_id", id.String())
	}
	return nil
}

func (r *PlayerRepo) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
