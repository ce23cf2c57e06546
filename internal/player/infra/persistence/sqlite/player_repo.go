package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
)

const (
	OpGetRecord    = "repo.sqlite.GetRecord"
	OpUpdateRecord = "repo.sqlite.UpdateRecord"
	OpSetLock      = "repo.sqlite.SetLock"
	OpMigrate      = "repo.sqlite.Migrate"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_records (
	player_id  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL DEFAULT x'',
	locked     INTEGER NOT NULL DEFAULT 0,
	locked_at  INTEGER,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_player_records_locked ON player_records(locked);
`

// PlayerRepo 是单文件部署用的 DurableStore。多个进程可以共用同一个库文件，
// 加锁走 `UPDATE ... WHERE locked = 0`，靠 sqlite 的写锁保证原子。
type PlayerRepo struct {
	db  *sql.DB
	now func() time.Time
}

var _ port.DurableStore = (*PlayerRepo)(nil)

func NewPlayerRepo(db *sql.DB) *PlayerRepo {
	return &PlayerRepo{db: db, now: time.Now}
}

func (r *PlayerRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errs.Wrap(OpMigrate, errs.KindInfra, err, nil)
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func (r *PlayerRepo) GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error) {
	if !acquireLock {
		rec, err := r.read(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WithData("player_id", id.String())
		}
		if err != nil {
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}
		return rec, nil
	}

	now := toMillis(r.now())
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO player_records (player_id, payload, locked, locked_at, updated_at)
		 VALUES (?, x'', 0, NULL, ?) ON CONFLICT(player_id) DO NOTHING`,
		id.String(), now,
	); err != nil {
		return nil, errs.Backend(OpGetRecord, id.String(), err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE player_records SET locked = 1, locked_at = ? WHERE player_id = ? AND locked = 0`,
		now, id.String(),
	)
	if err != nil {
		return nil, errs.Backend(OpGetRecord, id.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errs.Backend(OpGetRecord, id.String(), err)
	}
	acquired := n == 1

	rec, err := r.read(ctx, id)
	if err != nil {
		return nil, errs.Backend(OpGetRecord, id.String(), err)
	}
	// 返回加锁前的状态：拿到锁就是 false；没拿到就是 true，哪怕读的瞬间对方刚好解锁
	rec.Locked = !acquired
	if acquired {
		rec.LockedAt = time.Time{}
	}
	return rec, nil
}

func (r *PlayerRepo) read(ctx context.Context, id entity.PlayerID) (*entity.PlayerRecord, error) {
	var (
		payload   []byte
		locked    bool
		lockedAt  sql.NullInt64
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, locked, locked_at, updated_at FROM player_records WHERE player_id = ?`,
		id.String(),
	).Scan(&payload, &locked, &lockedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec := &entity.PlayerRecord{
		ID:        id,
		Payload:   payload,
		Locked:    locked,
		UpdatedAt: fromMillis(updatedAt),
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	if lockedAt.Valid {
		rec.LockedAt = fromMillis(lockedAt.Int64)
	}
	return rec, nil
}

func (r *PlayerRepo) UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error {
	now := toMillis(r.now())
	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}

	var err error
	if unlock {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO player_records (player_id, payload, locked, locked_at, updated_at)
			 VALUES (?, ?, 0, NULL, ?)
			 ON CONFLICT(player_id) DO UPDATE SET payload = excluded.payload, locked = 0, locked_at = NULL, updated_at = excluded.updated_at`,
			id.String(), payload, now,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO player_records (player_id, payload, locked, locked_at, updated_at)
			 VALUES (?, ?, 1, ?, ?)
			 ON CONFLICT(player_id) DO UPDATE SET payload = excluded.payload, locked = 1,
			   locked_at = COALESCE(player_records.locked_at, excluded.locked_at), updated_at = excluded.updated_at`,
			id.String(), payload, now, now,
		)
	}
	if err != nil {
		return errs.Backend(OpUpdateRecord, id.String(), err)
	}
	return nil
}

func (r *PlayerRepo) SetLock(ctx context.Context, id entity.PlayerID, locked bool) error {
	var (
		res sql.Result
		err error
	)
	if locked {
		res, err = r.db.ExecContext(ctx,
			`UPDATE player_records SET locked = 1, locked_at = COALESCE(locked_at, ?) WHERE player_id = ?`,
			toMillis(r.now()), id.String(),
		)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE player_records SET locked = 0, locked_at = NULL WHERE player_id = ?`,
			id.String(),
		)
	}
	if err != nil {
		return errs.Backend(OpSetLock, id.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Backend(OpSetLock, id.String(), err)
	}
	if n == 0 {
		return errs.ErrRecordNotFound.WithData("player_id", id.String())
	}
	return nil
}

func (r *PlayerRepo) Close(context.Context) error {
	return r.db.Close()
}
