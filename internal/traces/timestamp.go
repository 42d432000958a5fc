package traces

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Layouts tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Latest Unix second representable as a calendar year below 10000.
const maxUnixSeconds = 253402300799

// parseTimestamp resolves v to an instant, falling back to now.
func parseTimestamp(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case float64:
		return fromUnix(t, now)
	case int:
		return fromUnix(float64(t), now)
	case int64:
		return fromUnix(float64(t), now)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return now
		}
		return fromUnix(f, now)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC()
			}
		}
	}
	return now
}

func fromUnix(sec float64, now time.Time) time.Time {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || math.Abs(sec) > maxUnixSeconds {
		return now
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}
