package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/common"
)

// time2000 is 2000-01-01T00:00:00Z in Unix milliseconds.
const time2000 int64 = 946684800000

const (
	timeLength    = 8
	nodeLength    = 4
	counterLength = 4
	aidxLength    = timeLength + nodeLength + counterLength
)

// Aidx ids are 8 base36 chars of milliseconds since 2000, a 4 char node id
// fixed per process and a 4 char counter.
type Aidx struct {
	node    string
	counter atomic.Uint32
	now     func() time.Time
}

func NewAidx() (*Aidx, error) {
	node, err := common.MakeRandBase36String(nodeLength)
	if err != nil {
		return nil, err
	}

	var seed [2]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}

	g := &Aidx{node: node, now: time.Now}
	g.counter.Store(uint32(binary.LittleEndian.Uint16(seed[:])))
	return g, nil
}

func (g *Aidx) New() string {
	return g.At(g.now())
}

func (g *Aidx) At(t time.Time) string {
	n := g.counter.Add(1)

	var b strings.Builder
	b.Grow(aidxLength)
	b.WriteString(encodeTime2000(clampMillis(t, g.now())))
	b.WriteString(g.node)
	b.WriteString(pad36(int64(n), counterLength))
	return b.String()
}

func (g *Aidx) Parse(id string) (time.Time, error) {
	if len(id) != aidxLength {
		return time.Time{}, ErrBadID
	}
	return parseTime2000(id)
}

func encodeTime2000(ms int64) string {
	ms -= time2000
	if ms < 0 {
		ms = 0
	}
	return pad36(ms, timeLength)
}

func parseTime2000(id string) (time.Time, error) {
	ms, err := parseInt(id[:timeLength], 36)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms + time2000).UTC(), nil
}
