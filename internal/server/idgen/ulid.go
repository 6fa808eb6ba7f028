package idgen

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID ids use the standard Crockford base32 layout. Ids minted within the
// same millisecond increase monotonically.
type ULID struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

func (g *ULID) New() string {
	return g.At(g.now())
}

func (g *ULID) At(t time.Time) string {
	ms := max(clampMillis(t, g.now()), 0)

	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(uint64(ms), g.entropy).String()
}

func (g *ULID) Parse(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, ErrBadID
	}
	return ulid.Time(u.Time()).UTC(), nil
}
