package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
	"time"
)

const (
	noiseLength = 2
	aidLength   = timeLength + noiseLength
)

// Aid ids are the aidx time part followed by two base36 chars of a
// counter seeded randomly per process.
type Aid struct {
	counter atomic.Uint32
	now     func() time.Time
}

func NewAid() *Aid {
	var seed [2]byte
	_, _ = rand.Read(seed[:])

	g := &Aid{now: time.Now}
	g.counter.Store(uint32(binary.LittleEndian.Uint16(seed[:])))
	return g
}

func (g *Aid) New() string {
	return g.At(g.now())
}

func (g *Aid) At(t time.Time) string {
	n := g.counter.Add(1)
	return encodeTime2000(clampMillis(t, g.now())) + pad36(int64(n), noiseLength)
}

func (g *Aid) Parse(id string) (time.Time, error) {
	if len(id) != aidLength {
		return time.Time{}, ErrBadID
	}
	return parseTime2000(id)
}
