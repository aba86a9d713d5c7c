// Package wire holds small value types shared by the API payload decoders.
package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DayKeyLayout formats a calendar day key.
const DayKeyLayout = "2006-01-02"

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	DayKeyLayout,
}

// Time is a timestamp as sent by the API. Raw keeps the original text; Valid
// is false when the field was missing, null, or not a recognisable date.
// Timestamps without a zone are read as UTC.
type Time struct {
	Raw   string
	Time  time.Time
	Valid bool
}

// ParseTime parses s leniently.
func ParseTime(s string) Time {
	t := Time{Raw: s}
	s = strings.TrimSpace(s)
	if s == "" {
		return t
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			t.Valid = true
			return t
		}
	}
	return t
}

// At returns a valid Time for tm.
func At(tm time.Time) Time {
	return Time{Raw: tm.UTC().Format(time.RFC3339), Time: tm.UTC(), Valid: true}
}

// DayKey returns the UTC calendar day, or "" when the time is not valid.
func (t Time) DayKey() string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(DayKeyLayout)
}

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Numbers and other shapes are kept as raw text and marked invalid.
		*t = Time{Raw: string(data)}
		return nil
	}
	*t = ParseTime(s)
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.Valid {
		return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
	}
	if t.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Raw)
}
