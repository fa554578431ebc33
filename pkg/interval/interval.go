package interval

import (
	"fmt"
	"strings"
	"time"
)

// Parse converts a name into an Interval.
func Parse(name string) (Interval, error) {
	i := Interval(strings.ToLower(strings.TrimSpace(name)))
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownInterval, name, Names())
	}
	return i, nil
}

// Names lists every interval name, comma separated, in All order.
func Names() string {
	names := make([]string, len(All))
	for n, i := range All {
		names[n] = string(i)
	}
	return strings.Join(names, ", ")
}

// ParseTime reads a range bound. RFC 3339 timestamps keep their instant and
// are shown in loc; bare YYYY-MM-DD dates mean midnight in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t, nil
}

// Valid reports whether i is one of the known intervals.
func (i Interval) Valid() bool {
	switch i {
	case Hour, Day, Week, Month, Year, Lifetime:
		return true
	default:
		return false
	}
}

// Fetchable reports whether the analytics API accepts i directly.
func (i Interval) Fetchable() bool {
	switch i {
	case Hour, Day, Week, Month:
		return true
	default:
		return false
	}
}

// Bucketed reports whether i has a start-of function and a fixed step.
func (i Interval) Bucketed() bool {
	return i.Valid() && i != Lifetime
}

// FetchInterval returns the interval to request from the API for i.
//
// Coarse intervals are fetched as months and downsampled afterwards.
func (i Interval) FetchInterval() Interval {
	if i.Fetchable() {
		return i
	}
	return Month
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return string(i)
}

// StartOf truncates t to the start of its bucket in loc.
//
// A nil loc means UTC. Lifetime and unknown intervals return t in loc
// unchanged; callers check Bucketed first.
func (i Interval) StartOf(t time.Time, loc *time.Location) time.Time {
	return i.shift(t, loc, 0)
}

// shift returns the start of the bucket k steps after the bucket of t.
//
// Calendar buckets are rebuilt from t's calendar date with time.Date, so a
// bucket start is the same instant whether it was reached from an event or
// by stepping an axis, including when local midnight does not exist.
// Hours are truncated within t's own offset and stepped as durations,
// which keeps both repeated hours of a fall-back transition apart.
func (i Interval) shift(t time.Time, loc *time.Location, k int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	switch i {
	case Hour:
		within := time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second +
			time.Duration(t.Nanosecond())
		return t.Add(-within).Add(time.Duration(k) * time.Hour)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day()+k, 0, 0, 0, 0, loc)
	case Week:
		// Monday is day zero.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset+7*k, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(t.Year(), t.Month()+time.Month(k), 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(t.Year()+k, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return t
	}
}

// BucketKey is a shorthand for Key(i.StartOf(t, loc)).
func (i Interval) BucketKey(t time.Time, loc *time.Location) string {
	return Key(i.StartOf(t, loc))
}

// Axis returns every bucket start from the bucket of from up to and
// including the bucket of to. Entries are built the way StartOf builds
// bucket starts, so their keys match BucketKey of the events they hold.
func (i Interval) Axis(from, to time.Time, loc *time.Location) ([]time.Time, error) {
	if !i.Bucketed() {
		return nil, fmt.Errorf("%w: %s", ErrNotBucketed, i)
	}

	end := i.StartOf(to, loc)

	var axis []time.Time
	for k := 0; ; k++ {
		cur := i.shift(from, loc, k)
		if cur.After(end) {
			break
		}
		axis = append(axis, cur)
	}
	return axis, nil
}

// Infer guesses the interval of a series from the spacing of two
// consecutive bucket starts.
//
// Returns false if the gap matches no bucketed interval.
func Infer(first, second time.Time) (Interval, bool) {
	gap := second.Sub(first)
	switch {
	case gap <= 0:
		return "", false
	case gap <= 2*time.Hour:
		return Hour, true
	case gap <= 26*time.Hour:
		return Day, true
	case gap <= 8*24*time.Hour:
		return Week, true
	case gap <= 32*24*time.Hour:
		return Month, true
	case gap <= 367*24*time.Hour:
		return Year, true
	default:
		return "", false
	}
}
