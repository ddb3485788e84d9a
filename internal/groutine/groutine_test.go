package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoCarriesName(t *testing.T) {
	done := make(chan string, 1)
	Go(context.Background(), "worker-1", func(ctx context.Context) {
		done <- GetName(ctx)
	})
	select {
	case got := <-done:
		assert.Equal(t, "worker-1", got)
	case <-time.After(time.Second):
		require.Fail(t, "goroutine did not run")
	}
}

func TestGoNilParentContext(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "orphan", func(ctx context.Context) {
		assert.Equal(t, "orphan", GetName(ctx))
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "goroutine did not run")
	}
}

func TestGetNameMissing(t *testing.T) {
	assert.Equal(t, "", GetName(context.Background()))
	assert.Equal(t, "", GetName(nil))
}
