package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Millis is a timestamp carried on the wire as epoch milliseconds.
// A zero or null value decodes to the zero time.
type Millis struct {
	time.Time
}

// MillisOf wraps t.
func MillisOf(t time.Time) Millis {
	return Millis{Time: t}
}

// MarshalJSON encodes the timestamp as epoch milliseconds, 0 for the zero time.
func (m Millis) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(m.UnixMilli(), 10)), nil
}

// UnmarshalJSON decodes epoch milliseconds; null and 0 yield the zero time.
func (m *Millis) UnmarshalJSON(b []byte) error {
	var v *int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil || *v == 0 {
		m.Time = time.Time{}
		return nil
	}
	m.Time = time.UnixMilli(*v)
	return nil
}
