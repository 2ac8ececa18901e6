package pipeline

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain asserts no goroutine leaks survive this package's tests: every
// source/output task and broadcaster started here must stop cleanly on
// Stop/Shutdown, which is exactly what this package's concurrency guarantees.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
