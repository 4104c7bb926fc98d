package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/vango-dev/vps/internal/errors"
)

// future is a lazily started computation shared by all callers.
type future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// memo maps keys to futures. The first caller of a key runs the
// computation; later callers wait for its result.
type memo[K comparable, T any] struct {
	mu sync.Mutex
	m  map[K]*future[T]
}

func newMemo[K comparable, T any]() *memo[K, T] {
	return &memo[K, T]{m: make(map[K]*future[T])}
}

// do returns the memoized result for key, starting fn if no caller has
// started it yet. fn runs detached from the caller's cancellation, so a
// caller that gives up does not decide the result for everyone else;
// it only stops waiting. shared reports whether another caller started
// the computation.
func (m *memo[K, T]) do(ctx context.Context, key K, fn func(context.Context) (T, error)) (val T, shared bool, err error) {
	m.mu.Lock()
	f, shared := m.m[key]
	if !shared {
		f = &future[T]{done: make(chan struct{})}
		m.m[key] = f
		go f.run(context.WithoutCancel(ctx), key, fn)
	}
	m.mu.Unlock()

	select {
	case <-f.done:
		return f.val, shared, f.err
	case <-ctx.Done():
		var zero T
		return zero, shared, ctx.Err()
	}
}

func (f *future[T]) run(ctx context.Context, key any, fn func(context.Context) (T, error)) {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			f.val = zero
			f.err = errors.New("E402").WithDetail(fmt.Sprintf("loading %v panicked: %v", key, r))
		}
	}()
	f.val, f.err = fn(ctx)
}
