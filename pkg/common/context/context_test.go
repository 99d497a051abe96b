package context

import (
	"context"
	"testing"
	"time"
)

func TestWithOptionalTimeout(t *testing.T) {
	ctx, cancel := WithOptionalTimeout(context.Background(), 0)
	if _, ok := ctx.Deadline(); ok {
		t.Error("zero timeout should not set a deadline")
	}
	cancel()
	if !IsCanceled(ctx) {
		t.Error("cancel func should cancel the derived context")
	}

	ctx, cancel = WithOptionalTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("positive timeout should set a deadline")
	}
	<-ctx.Done()
	if !IsTimedOut(ctx) {
		t.Errorf("expected deadline exceeded, got %v", ctx.Err())
	}
}

func TestOrBackground(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if OrBackground(nil) == nil {
		t.Fatal("expected a background context")
	}
	ctx := context.WithValue(context.Background(), struct{}{}, 1)
	if OrBackground(ctx) != ctx {
		t.Error("non-nil context should be returned unchanged")
	}
}

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if IsCanceled(ctx) {
		t.Error("fresh context should not be canceled")
	}
	cancel()
	if !IsCanceled(ctx) {
		t.Error("context should be canceled")
	}
	if IsTimedOut(ctx) {
		t.Error("explicit cancel is not a timeout")
	}
}
