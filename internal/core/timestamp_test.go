package core

import (
	"testing"
	"time"
)

func TestTimestampOf(t *testing.T) {
	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		kind TimestampKind
		ok   bool
	}{
		{"nil", nil, TimestampMissing, false},
		{"empty string", "  ", TimestampMissing, false},
		{"store time", StoreTime{Time: at}, TimestampNative, true},
		{"time", at, TimestampNative, true},
		{"date string", "2024-03-05", TimestampText, true},
		{"rfc3339", "2024-03-05T12:00:00Z", TimestampText, true},
		{"local datetime", "2024-03-05T12:00", TimestampText, true},
		{"garbage", "next tuesday", TimestampText, false},
		{"number", 42, TimestampMissing, false},
	}
	for _, tc := range cases {
		ts := TimestampOf(tc.in)
		if ts.Kind() != tc.kind {
			t.Fatalf("%s: kind %v, want %v", tc.name, ts.Kind(), tc.kind)
		}
		if _, ok := ts.Resolve(); ok != tc.ok {
			t.Fatalf("%s: resolve ok=%v, want %v", tc.name, ok, tc.ok)
		}
	}
}

func TestResolveInReadsZonelessTextInLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	got, ok := TextTimestamp("2024-03-01").ResolveIn(loc)
	if !ok {
		t.Fatalf("expected date to resolve")
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	zoned, _ := TextTimestamp("2024-03-01T00:00:00Z").ResolveIn(loc)
	if !zoned.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("zoned text must keep its own offset, got %v", zoned)
	}
}
