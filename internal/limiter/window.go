package limiter

import "time"

// Window is one fixed-boundary counting window.
type Window string

const (
	WindowMinute Window = "minute"
	WindowDay    Window = "day"
	WindowMonth  Window = "month"
)

func (w Window) String() string { return string(w) }

// Windows lists all windows in checking order.
func Windows() []Window { return []Window{WindowMinute, WindowDay, WindowMonth} }

// BucketSuffix returns the fixed-boundary bucket label for a window at t.
// Minute buckets reset at the top of each clock minute, day buckets at UTC
// midnight, month buckets at UTC month start.
func BucketSuffix(w Window, t time.Time) string {
	t = t.UTC()
	switch w {
	case WindowMinute:
		return t.Format("200601021504")
	case WindowDay:
		return t.Format("20060102")
	case WindowMonth:
		return t.Format("200601")
	default:
		return t.Format("200601021504")
	}
}

// NextReset returns when the window containing t rolls over.
func NextReset(w Window, t time.Time) time.Time {
	t = t.UTC()
	switch w {
	case WindowMinute:
		return t.Truncate(time.Minute).Add(time.Minute)
	case WindowDay:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case WindowMonth:
		y, m, _ := t.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default:
		return t.Truncate(time.Minute).Add(time.Minute)
	}
}

// bucketTTL is how long a counter key must outlive its window; generous so a
// bucket is never evicted while still countable, cheap because keys are tiny.
func bucketTTL(w Window) time.Duration {
	switch w {
	case WindowMinute:
		return 2 * time.Minute
	case WindowDay:
		return 48 * time.Hour
	case WindowMonth:
		return 32 * 24 * time.Hour
	default:
		return 2 * time.Minute
	}
}
