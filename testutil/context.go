package testutil

import (
	"context"
	"testing"
)

// TestContext returns a context that ends with the test.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, _ := CancelableContext(t)
	return ctx
}

// CancelableContext is TestContext plus its cancel function, for tests that
// exercise cancellation mid-call.
func CancelableContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}
