package metrics

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Result is the outcome of one provider call. Value is always usable:
// it holds the provider's answer on success and the fallback otherwise.
type Result[T any] struct {
	Name    string
	Value   T
	Err     error
	Elapsed time.Duration
}

// OK reports whether the provider answered
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// PanicError wraps a value recovered from a provider
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Run calls fn with a deadline of timeout. On error, panic or timeout the
// result carries fallback. A call that outlives its deadline is abandoned;
// its goroutine finishes in the background and its answer is dropped.
func Run[T any](ctx context.Context, name string, timeout time.Duration, fallback T, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				done <- outcome{err: &PanicError{Value: r, Stack: string(buf[:n])}}
			}
		}()
		v, err := fn(callCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		res := Result[T]{Name: name, Value: o.value, Err: o.err, Elapsed: time.Since(start)}
		if o.err != nil {
			res.Value = fallback
		}
		return res
	case <-callCtx.Done():
		return Result[T]{
			Name:    name,
			Value:   fallback,
			Err:     fmt.Errorf("provider %s: %w", name, callCtx.Err()),
			Elapsed: time.Since(start),
		}
	}
}
