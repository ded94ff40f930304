package sqlrt

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NewID is the app-mode NEWID(): a random v4 UUID generated in-process.
func NewID() string {
	return uuid.NewString()
}

var mockIDCounter atomic.Int64

// NextMockID returns deterministic sequential UUIDs for test runs. The
// sequence starts at ...000000000001 and is process-global.
func NextMockID() string {
	n := mockIDCounter.Add(1)
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

// ResetMockIDs restarts the mock sequence; call between test cases.
func ResetMockIDs() {
	mockIDCounter.Store(0)
}
