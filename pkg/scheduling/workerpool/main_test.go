package workerpool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// This catches workers or blocked submitters that outlive a shutdown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
