// Package idgen generates catalog row ids. The scheme is an instance-wide
// choice: every id embeds its creation time, and Parse on the same scheme
// recovers it.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scheme names accepted by New.
const (
	MethodAid      = "aid"
	MethodAidx     = "aidx"
	MethodMeid     = "meid"
	MethodMeidg    = "meidg"
	MethodULID     = "ulid"
	MethodObjectID = "objectid"
)

var ErrBadID = errors.New("malformed id")

// Generator produces ids for one scheme.
type Generator interface {
	// New returns an id for the current time.
	New() string
	// At returns an id whose time part encodes t. Times in the future are
	// clamped to now.
	At(t time.Time) string
	// Parse recovers the creation time encoded in id.
	Parse(id string) (time.Time, error)
}

// New returns the generator for method, matched case-insensitively.
func New(method string) (Generator, error) {
	switch strings.ToLower(method) {
	case MethodAid:
		return NewAid(), nil
	case MethodAidx:
		return NewAidx()
	case MethodMeid:
		return NewMeid(), nil
	case MethodMeidg:
		return NewMeidg(), nil
	case MethodULID:
		return NewULID(), nil
	case MethodObjectID:
		return NewObjectID(), nil
	default:
		return nil, fmt.Errorf("unknown id method %q", method)
	}
}

// clampMillis returns t in Unix milliseconds, never later than now.
func clampMillis(t, now time.Time) int64 {
	if t.After(now) {
		t = now
	}
	return t.UnixMilli()
}

// pad36 renders v in base36, left padded with zeros and cut to the last n chars.
func pad36(v int64, n int) string {
	return padTail(strconv.FormatInt(v, 36), n)
}

func pad16(v int64, n int) string {
	return padTail(strconv.FormatInt(v, 16), n)
}

func padTail(s string, n int) string {
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s[len(s)-n:]
}

// randomHex returns n random lowercase hex chars.
func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	// crypto/rand.Read never fails.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

func parseInt(s string, base int) (int64, error) {
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, ErrBadID
	}
	return v, nil
}

// Valid reports whether New accepts method.
func Valid(method string) bool {
	switch strings.ToLower(method) {
	case MethodAid, MethodAidx, MethodMeid, MethodMeidg, MethodULID, MethodObjectID:
		return true
	}
	return false
}
