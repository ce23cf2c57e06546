package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"PlayerSync/internal/player/entity"
)

var ErrBusClosed = errors.New("event bus closed")

type Kind int

const (
	KindConnect Kind = iota + 1
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event 是连接层发来的接入/离开通知。
type Event struct {
	Kind     Kind
	PlayerID entity.PlayerID
	At       time.Time
}

// Source 是事件来源，通道关闭表示来源结束。
type Source interface {
	Events() <-chan Event
}

// Bus 是进程内的事件通道，handler 往里发，service 订阅。
type Bus struct {
	ch   chan Event
	done chan struct{}

	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewBus(buf int) *Bus {
	if buf < 0 {
		buf = 0
	}
	return &Bus{
		ch:   make(chan Event, buf),
		done: make(chan struct{}),
	}
}

func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Publish 缓冲满时阻塞，直到被消费、ctx 结束或 Bus 关闭。
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrBusClosed
	}
}

// Close 先唤醒阻塞中的 Publish，再关闭事件通道。
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
