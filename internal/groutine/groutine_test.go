package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NameIsVisibleInContext(t *testing.T) {
	names := make(chan string, 1)
	task := Go(context.Background(), "worker-42", func(ctx context.Context) {
		names <- GetName(ctx)
	})
	task.Wait()

	assert.Equal(t, "worker-42", <-names)
	assert.Equal(t, "worker-42", task.Name())
}

func TestTask_StopCancelsAndWaits(t *testing.T) {
	exited := make(chan struct{})
	task := Go(context.Background(), "blocking", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})

	task.Stop()

	select {
	case <-exited:
	default:
		t.Fatal("Stop MUST return only after the task function exited")
	}
}

func TestTask_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	task := Go(parent, "child", func(ctx context.Context) {
		<-ctx.Done()
	})

	cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task MUST exit when the parent context is cancelled")
	}
}

func TestGo_NilParent(t *testing.T) {
	//nolint:staticcheck // nil parent is part of the contract
	task := Go(nil, "nil-parent", func(ctx context.Context) {})
	require.NotNil(t, task)
	task.Wait()
	assert.Empty(t, GetName(context.Background()))
}
