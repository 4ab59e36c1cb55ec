package timeframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Timeframe is the recency window applied to search hits.
type Timeframe time.Duration

const (
	// AllTime disables the time window check.
	AllTime Timeframe = 0
	Day     Timeframe = Timeframe(24 * time.Hour)
	Week    Timeframe = Timeframe(7 * 24 * time.Hour)
	Month   Timeframe = Timeframe(30 * 24 * time.Hour)
)

var _ pflag.Value = (*Timeframe)(nil)

var (
	// flag letter -> timeframe
	flagValues = map[string]Timeframe{
		"d": Day,
		"w": Week,
		"m": Month,
		"a": AllTime,
	}

	// timestampLayouts covers both encodings the API uses:
	// "2021-01-02T15:04:05Z" on repositories and issues,
	// "2021-01-02T15:04:05.000000+0100" on commit objects.
	// Fractional seconds are accepted by the parser without being in the layout.
	timestampLayouts = []string{
		"2006-01-02T15:04:05Z0700",
		time.RFC3339,
	}
)

// Parse converts a flag letter (d, w, m, a) to a Timeframe.
func Parse(s string) (Timeframe, error) {
	tf, ok := flagValues[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return AllTime, fmt.Errorf("unsupported timeframe %q: expected one of d, w, m, a", s)
	}
	return tf, nil
}

// IsAllTime reports whether the window check is disabled.
func (t Timeframe) IsAllTime() bool {
	return t == AllTime
}

// Seconds returns the window length in seconds.
func (t Timeframe) Seconds() int64 {
	return int64(time.Duration(t) / time.Second)
}

// Within reports whether an epoch timestamp falls inside the window ending at now.
func (t Timeframe) Within(epoch int64, now time.Time) bool {
	if t.IsAllTime() {
		return true
	}
	return epoch > now.Unix()-t.Seconds()
}

// Start returns the beginning of the window ending at now. For AllTime the zero time is returned.
func (t Timeframe) Start(now time.Time) time.Time {
	if t.IsAllTime() {
		return time.Time{}
	}
	return now.Add(-time.Duration(t))
}

// String implements pflag.Value.
func (t Timeframe) String() string {
	for letter, tf := range flagValues {
		if tf == t {
			return letter
		}
	}
	return time.Duration(t).String()
}

// Set implements pflag.Value.
func (t *Timeframe) Set(s string) error {
	tf, err := Parse(s)
	if err != nil {
		return err
	}
	*t = tf
	return nil
}

// Type implements pflag.Value.
func (t *Timeframe) Type() string {
	return "timeframe"
}

// Describe returns a human readable label used in banners and logs.
func (t Timeframe) Describe() string {
	switch t {
	case Day:
		return "24 hours"
	case Week:
		return "7 days"
	case Month:
		return "30 days"
	case AllTime:
		return "all time"
	default:
		return time.Duration(t).String()
	}
}

// ParseTimestamp normalizes an API timestamp to epoch seconds (UTC).
func ParseTimestamp(ts string) (int64, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, ts)
		if err == nil {
			return parsed.Unix(), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("unrecognized timestamp %q: %w", ts, lastErr)
}
