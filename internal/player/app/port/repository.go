package port

import (
	"context"
	"time"

	"PlayerSync/internal/player/entity"
)

// DurableStore 是权威存储。实现必须让 GetRecord 的“读 + 加锁”对同一条记录是原子的
// （条件更新 / 事务），否则多进程下锁标记失去意义。
type DurableStore interface {
	// GetRecord 读取记录。acquireLock 为 true 且记录未加锁时顺带加锁；
	// 返回的 Locked 是本次加锁之前的状态，所以 acquireLock && !rec.Locked 表示调用方拿到了锁。
	// 记录不存在时：acquireLock 为 true 则创建空记录（并加锁），否则返回 errs.ErrRecordNotFound。
	GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error)
	// UpdateRecord 写 payload，并把 locked 置为 !unlock。
	UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error
	// SetLock 只改锁标记。
	SetLock(ctx context.Context, id entity.PlayerID, locked bool) error
}

// FastCache 是可选的换服加速通道，从不作为权威数据。
type FastCache interface {
	ChangingServer(ctx context.Context, id entity.PlayerID) (bool, error)
	// SetChangingServer on=true 时带 ttl，释放方中途崩溃也不会让标记永久残留
	SetChangingServer(ctx context.Context, id entity.PlayerID, on bool, ttl time.Duration) error
	PutPayload(ctx context.Context, id entity.PlayerID, data []byte, ttl time.Duration) error
	// TakePayload 取出并删除；没有数据时 ok=false
	TakePayload(ctx context.Context, id entity.PlayerID) (data []byte, ok bool, err error)
}

// Closer 由持有连接的后端实现，进程退出时关闭。
type Closer interface {
	Close(ctx context.Context) error
}
