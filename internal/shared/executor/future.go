package executor

import (
	"context"
)

// Future 是一次异步计算的结果，只会完成一次。
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go 把 fn 提交到 ex 执行。提交失败时返回一个已经带错误完成的 Future。
func Go[T any](ex *Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	err := ex.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = &PanicError{Value: r}
				close(f.done)
			}
		}()
		v, err := fn()
		f.val, f.err = v, err
		close(f.done)
	})
	if err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// Done 在结果可读时关闭。
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await 等结果或 ctx 结束。ctx 结束不会取消 fn 本身。
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
