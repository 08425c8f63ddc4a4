package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampKind tells how a date-like field was stored.
type TimestampKind int

const (
	TimestampMissing TimestampKind = iota
	TimestampNative
	TimestampText
)

// Timestamp is a normalized date-like field. Records coming out of a store
// carry either a store-native time (anything exposing ToTime), a plain
// date string written by a form, or nothing at all.
type Timestamp struct {
	kind   TimestampKind
	native time.Time
	text   string
}

// timeConverter is implemented by store-native timestamp values.
type timeConverter interface {
	ToTime() time.Time
}

// textLayouts are tried in order; layouts without a zone are read in the
// caller's location.
var textLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.000", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

func NativeTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{kind: TimestampNative, native: t}
}

func TextTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	return Timestamp{kind: TimestampText, text: s}
}

// TimestampOf normalizes a raw document field.
func TimestampOf(v any) Timestamp {
	switch x := v.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return x
	case timeConverter:
		return NativeTimestamp(x.ToTime())
	case time.Time:
		return NativeTimestamp(x)
	case *time.Time:
		if x == nil {
			return Timestamp{}
		}
		return NativeTimestamp(*x)
	case string:
		return TextTimestamp(x)
	case map[string]any:
		if st, ok := storeTimeFromMap(x); ok {
			return NativeTimestamp(st.Time)
		}
	}
	return Timestamp{}
}

func (ts Timestamp) Kind() TimestampKind { return ts.kind }

func (ts Timestamp) IsMissing() bool { return ts.kind == TimestampMissing }

// Resolve returns the instant the timestamp denotes. Zone-less text is read as UTC.
func (ts Timestamp) Resolve() (time.Time, bool) {
	return ts.ResolveIn(time.UTC)
}

// ResolveIn is Resolve with zone-less text read in loc.
func (ts Timestamp) ResolveIn(loc *time.Location) (time.Time, bool) {
	switch ts.kind {
	case TimestampNative:
		return ts.native, true
	case TimestampText:
		if loc == nil {
			loc = time.UTC
		}
		for _, l := range textLayouts {
			var (
				t   time.Time
				err error
			)
			if l.zoned {
				t, err = time.Parse(l.layout, ts.text)
			} else {
				t, err = time.ParseInLocation(l.layout, ts.text, loc)
			}
			if err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// String renders the timestamp the way it was stored.
func (ts Timestamp) String() string {
	switch ts.kind {
	case TimestampNative:
		return ts.native.Format(time.RFC3339Nano)
	case TimestampText:
		return ts.text
	}
	return ""
}

// Raw returns the value to write back into a document field.
func (ts Timestamp) Raw() any {
	switch ts.kind {
	case TimestampNative:
		return StoreTime{Time: ts.native}
	case TimestampText:
		return ts.text
	}
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.kind == TimestampMissing {
		return []byte("null"), nil
	}
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if s == nil {
		*ts = Timestamp{}
		return nil
	}
	*ts = TextTimestamp(*s)
	return nil
}

// StoreTime is the store-assigned time value kept inside documents.
type StoreTime struct {
	time.Time
}

const storeTimeKey = "$time"

func (s StoreTime) ToTime() time.Time { return s.Time }

func (s StoreTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{storeTimeKey: s.Time.UTC().Format(time.RFC3339Nano)})
}

func (s *StoreTime) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode store time: %w", err)
	}
	st, ok := storeTimeFromMap(m)
	if !ok {
		return fmt.Errorf("decode store time: missing %s", storeTimeKey)
	}
	*s = st
	return nil
}

func storeTimeFromMap(m map[string]any) (StoreTime, bool) {
	if len(m) != 1 {
		return StoreTime{}, false
	}
	raw, ok := m[storeTimeKey].(string)
	if !ok {
		return StoreTime{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return StoreTime{}, false
	}
	return StoreTime{Time: t}, true
}
