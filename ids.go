package lotbook

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu sync.Mutex
	mono = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a fresh ULID string. IDs generated by one process sort by
// creation order, even within the same millisecond.
func newID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), mono).String()
}
