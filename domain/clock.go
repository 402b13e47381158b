package domain

import (
	"strconv"
	"sync/atomic"
	"time"
)

// isoLayout matches the millisecond UTC format browsers produce with toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z"

type Clock func() time.Time

func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func ParseISOTimestamp(s string) (time.Time, error) {
	return time.Parse(isoLayout, s)
}

// IDGenerator hands out millisecond timestamps as ids.
// Two ids requested within the same millisecond are bumped so ids stay strictly increasing.
type IDGenerator struct {
	last  atomic.Int64
	clock Clock
}

func NewIDGenerator(clock Clock) *IDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &IDGenerator{clock: clock}
}

func (g *IDGenerator) Next() string {
	for {
		prev := g.last.Load()
		ms := g.clock().UnixMilli()
		if ms <= prev {
			ms = prev + 1
		}
		if g.last.CompareAndSwap(prev, ms) {
			return strconv.FormatInt(ms, 10)
		}
	}
}
