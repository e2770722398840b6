package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// unix values at or above this magnitude are milliseconds
const millisThreshold = 1e12

// Timestamp accepts the timestamp shapes order producers send (RFC 3339 strings,
// unix seconds or milliseconds, {"seconds","nanos"} objects) and always holds UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}

	var (
		parsed time.Time
		err    error
	)
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err = parseTimestampString(s)
	case '{':
		parsed, err = parseTimestampObject(b)
	default:
		parsed, err = parseUnix(raw)
	}
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes RFC 3339 with nanoseconds, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	return parseUnix(s)
}

func parseTimestampObject(b []byte) (time.Time, error) {
	var obj struct {
		Seconds      *int64 `json:"seconds"`
		Nanos        int64  `json:"nanos"`
		Nanoseconds  int64  `json:"nanoseconds"`
		USeconds     *int64 `json:"_seconds"`
		UNanoseconds int64  `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return time.Time{}, err
	}
	switch {
	case obj.Seconds != nil:
		return time.Unix(*obj.Seconds, obj.Nanos+obj.Nanoseconds).UTC(), nil
	case obj.USeconds != nil:
		return time.Unix(*obj.USeconds, obj.UNanoseconds).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("object without seconds")
	}
}

func parseUnix(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if math.Abs(float64(n)) >= millisThreshold {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp format")
	}
	if math.Abs(f) >= millisThreshold {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
