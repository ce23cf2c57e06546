package entity

import "time"

// State 是单个玩家在本进程内的所有权状态。
type State int

const (
	StateNone State = iota
	StateJoining
	StateWaitingForLock
	StateActive
	StateReleasing
	StateReleased
)

var stateNames = [...]string{
	StateNone:           "NONE",
	StateJoining:        "JOINING",
	StateWaitingForLock: "WAITING_FOR_LOCK",
	StateActive:         "ACTIVE",
	StateReleasing:      "RELEASING",
	StateReleased:       "RELEASED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Provisional 表示接入流程还没结束（JOINING / WAITING_FOR_LOCK）。
func (s State) Provisional() bool {
	return s == StateJoining || s == StateWaitingForLock
}

// RetryState 是一次接入的重试进度，只在内存里。
type RetryState struct {
	Attempt int
	Max     int
	Delay   time.Duration
}

func NewRetryState(max int, delay time.Duration) RetryState {
	if max < 0 {
		max = 0
	}
	return RetryState{Max: max, Delay: delay}
}

// Exhausted 重试次数已用完。
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.Max
}

func (r RetryState) Next() RetryState {
	r.Attempt++
	return r
}
