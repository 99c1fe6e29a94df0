package sheets

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used on every sheet.
const DateLayout = "2006-01-02"

// Layouts carrying no zone are read as wall-clock time in the clinic location.
var localLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/1/2",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// NormalizeDate converts any date representation the remote store produces
// into YYYY-MM-DD in loc. Date-only strings keep their calendar day.
// Unparseable or empty input yields "".
func NormalizeDate(value any, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.In(loc).Format(DateLayout)
	case string:
		return normalizeDateString(v, loc)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return normalizeDateString(v.String(), loc)
		}
		return fromEpochMillis(f, loc)
	case float64:
		return fromEpochMillis(v, loc)
	case int64:
		return fromEpochMillis(float64(v), loc)
	case int:
		return fromEpochMillis(float64(v), loc)
	}
	return ""
}

func normalizeDateString(raw string, loc *time.Location) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc).Format(DateLayout)
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.Format(DateLayout)
		}
	}
	return ""
}

func fromEpochMillis(ms float64, loc *time.Location) string {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return ""
	}
	return time.UnixMilli(int64(ms)).In(loc).Format(DateLayout)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}
