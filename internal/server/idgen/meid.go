package idgen

import (
	"time"
)

// meidOffset is added to the time part of meid ids.
const meidOffset int64 = 0x800000000000

const (
	meidTimeLength  = 12
	meidgTimeLength = 11
	meidRandLength  = 12
)

// Meid ids are 12 hex chars of offset Unix milliseconds and 12 random hex
// chars.
type Meid struct {
	now func() time.Time
}

func NewMeid() *Meid {
	return &Meid{now: time.Now}
}

func (g *Meid) New() string {
	return g.At(g.now())
}

func (g *Meid) At(t time.Time) string {
	ms := max(clampMillis(t, g.now()), 0)
	if ms == 0 {
		return "0" + randomHex(meidRandLength)
	}
	return pad16(ms+meidOffset, meidTimeLength) + randomHex(meidRandLength)
}

func (g *Meid) Parse(id string) (time.Time, error) {
	if len(id) < meidTimeLength {
		return time.Time{}, ErrBadID
	}
	v, err := parseInt(id[:meidTimeLength], 16)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v - meidOffset).UTC(), nil
}

// Meidg ids are a literal "g", 11 hex chars of Unix milliseconds and 12
// random hex chars.
type Meidg struct {
	now func() time.Time
}

func NewMeidg() *Meidg {
	return &Meidg{now: time.Now}
}

func (g *Meidg) New() string {
	return g.At(g.now())
}

func (g *Meidg) At(t time.Time) string {
	ms := max(clampMillis(t, g.now()), 0)
	return "g" + pad16(ms, meidgTimeLength) + randomHex(meidRandLength)
}

func (g *Meidg) Parse(id string) (time.Time, error) {
	if len(id) < 1+meidgTimeLength || id[0] != 'g' {
		return time.Time{}, ErrBadID
	}
	v, err := parseInt(id[1:1+meidgTimeLength], 16)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v).UTC(), nil
}
