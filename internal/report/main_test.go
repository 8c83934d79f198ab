package report

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies AsyncSink never leaves its forwarding goroutine behind
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
