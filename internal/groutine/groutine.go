package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Task is a handle to a named background goroutine scoped to its owner.
// Cancel stops it through its context; Wait blocks until fn returned.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Go starts fn in a goroutine carrying a pprof "goroutine_name" label and
// returns its Task. The goroutine's context is derived from parentCtx, so
// cancelling the parent also cancels the task.
// Example usage:
//
//	task := groutine.Go(ctx, "hr-notify-AA:BB", func(ctx context.Context) {
//	    // work until ctx is done
//	})
//	defer task.Stop()
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) *Task {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(parentCtx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	labels := pprof.Labels("goroutine_name", name)
	go pprof.Do(ctx, labels, func(ctx context.Context) {
		defer close(t.done)
		defer cancel()
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
	return t
}

// Name returns the name the task was started with
func (t *Task) Name() string {
	return t.name
}

// Cancel requests the task to stop without waiting for it
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the task function has returned
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task function has returned
func (t *Task) Wait() {
	<-t.done
}

// Stop cancels the task and waits for it to return
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
