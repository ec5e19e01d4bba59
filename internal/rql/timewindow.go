package rql

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/timestamp"
)

var relativeWindowPattern = regexp.MustCompile(`^(\d+)([mhdw])$`)

var windowUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// Resolver turns since/until values into instants.
type Resolver struct {
	// Now returns the reference instant. Defaults to time.Now.
	Now func() time.Time
}

// Resolve reads "30m", "2h", "7d" and "2w" as that long before now, then
// tries an absolute timestamp, and otherwise returns one hour before now.
// It never fails.
func (r Resolver) Resolve(value string) time.Time {
	now := r.now()

	if m := relativeWindowPattern.FindStringSubmatch(value); m != nil {
		return now.Add(-relativeDuration(m[1], windowUnits[m[2]]))
	}
	if ts, ok := timestamp.Parse(value); ok {
		return ts
	}
	return now.Add(-model.DefaultWindow)
}

// ParseWindow is like Resolve but reports whether value was understood.
func (r Resolver) ParseWindow(value string) (time.Time, bool) {
	if m := relativeWindowPattern.FindStringSubmatch(value); m != nil {
		return r.now().Add(-relativeDuration(m[1], windowUnits[m[2]])), true
	}
	return timestamp.Parse(value)
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// relativeDuration multiplies n by unit, saturating instead of overflowing.
func relativeDuration(n string, unit time.Duration) time.Duration {
	count, err := strconv.ParseInt(n, 10, 64)
	if err != nil || count > int64(math.MaxInt64/unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(count) * unit
}
