package actors

import "PlayerSync/internal/player/entity"

// Connect 玩家接入本进程，manager 收到后按需创建玩家 actor。
type Connect struct {
	PlayerID PlayerID
}

// Disconnect 玩家离开本进程。接入中则取消接入，在线则释放。
type Disconnect struct {
	PlayerID PlayerID
}

// Flush 由落盘调度发出，Session 有未落盘修改时写一次存储（不解锁）。
type Flush struct {
	PlayerID PlayerID
}

// Release 和 Disconnect 一样释放玩家，但会在释放结束后回复 *ReleaseDone。
type Release struct {
	PlayerID PlayerID
}

type ReleaseDone struct {
	PlayerID PlayerID
	Err      error
}

// Inspect 查询玩家 actor 的当前状态，回复 *PlayerState。
type Inspect struct {
	PlayerID PlayerID
}

type PlayerState struct {
	PlayerID   PlayerID
	State      entity.State
	Attempt    int
	Busy       bool
	HasSession bool
	WantOnline bool
}

// Stats 查询 manager，回复 *RuntimeStats。
type Stats struct{}

// RuntimeStats.IDs 是当前还有子 actor 的玩家，包括 RELEASING 中还在重试写存储的。
type RuntimeStats struct {
	Players int
	IDs     []PlayerID
}

// childIdle 玩家 actor 没有任何进行中的工作，handled 是它已处理的外部消息数。
type childIdle struct {
	id      PlayerID
	handled uint64
}

type ioOp int

const (
	opCheckHandoff ioOp = iota
	opTakePayload
	opLoad
	opHandoffDone
	opFlush
	opRelease
	opCleanup
)

var opNames = [...]string{
	opCheckHandoff: "check_handoff",
	opTakePayload:  "take_payload",
	opLoad:         "load",
	opHandoffDone:  "handoff_done",
	opFlush:        "flush",
	opRelease:      "release",
	opCleanup:      "cleanup",
}

func (o ioOp) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "unknown"
	}
	return opNames[o]
}

// ioResult 是一次后台 I/O 的结果，gen 不等于当前接入代数说明这次接入已被取消。
type ioResult struct {
	op      ioOp
	gen     uint64
	rec     *entity.PlayerRecord
	data    []byte
	hit     bool
	version uint64
	err     error
}

type timerFired struct {
	seq uint64
}
