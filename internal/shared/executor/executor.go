package executor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

var ErrExecutorClosed = errors.New("executor closed")

// Executor 是固定 worker 数的任务池，队列无界，Submit 不阻塞调用方。
// 存储/缓存 I/O 都丢到这里，actor 的消息循环里不做阻塞调用。
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	q       *queue.Queue
	closed  bool
	workers int
	wg      sync.WaitGroup
	onPanic func(any)
}

type Option func(*Executor)

// WithPanicHandler 任务 panic 时回调，worker 不退出。
func WithPanicHandler(fn func(any)) Option {
	return func(e *Executor) { e.onPanic = fn }
}

func New(workers int, opts ...Option) *Executor {
	if workers <= 0 {
		workers = 1
	}
	e := &Executor{
		q:       queue.New(),
		workers: workers,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.loop()
	}
	return e
}

func (e *Executor) Submit(task func()) error {
	if task == nil {
		return errors.New("nil task")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.q.Add(task)
	e.cond.Signal()
	return nil
}

func (e *Executor) NumWorkers() int { return e.workers }

// Pending 是排队中还没被 worker 取走的任务数。
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Length()
}

// Close 停止接收新任务，已排队的任务执行完才返回。可重复调用。
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.cond.Broadcast()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) loop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.q.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.q.Length() == 0 {
			e.mu.Unlock()
			return
		}
		task := e.q.Remove().(func())
		e.mu.Unlock()
		e.run(task)
	}
}

func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
	}()
	task()
}

// PanicError 包装任务里的 panic 值，Future 用它把 panic 变成普通错误。
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v", p.Value)
}
