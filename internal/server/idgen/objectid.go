package idgen

import "time"

const (
	objectIDTimeLength = 8
	objectIDRandLength = 16
)

// ObjectID ids are 8 hex chars of Unix seconds and 16 random hex chars.
type ObjectID struct {
	now func() time.Time
}

func NewObjectID() *ObjectID {
	return &ObjectID{now: time.Now}
}

func (g *ObjectID) New() string {
	return g.At(g.now())
}

func (g *ObjectID) At(t time.Time) string {
	sec := max(clampMillis(t, g.now()), 0) / 1000
	return pad16(sec, objectIDTimeLength) + randomHex(objectIDRandLength)
}

func (g *ObjectID) Parse(id string) (time.Time, error) {
	if len(id) < objectIDTimeLength {
		return time.Time{}, ErrBadID
	}
	sec, err := parseInt(id[:objectIDTimeLength], 16)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(sec * 1000).UTC(), nil
}
