package clf

import (
	"testing"
	"time"
)

func TestParseDatePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DatePolicy
		wantErr bool
	}{
		{"", DateSentinel, false},
		{"sentinel", DateSentinel, false},
		{"STRICT", DateStrict, false},
		{" raw ", DateRaw, false},
		{"lenient", DateSentinel, true},
	}
	for _, tt := range tests {
		got, err := ParseDatePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDatePolicy(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDatePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDatePolicyString(t *testing.T) {
	for _, p := range []DatePolicy{DateSentinel, DateStrict, DateRaw} {
		back, err := ParseDatePolicy(p.String())
		if err != nil || back != p {
			t.Errorf("round trip of %v failed: %v, %v", p, back, err)
		}
	}
	if got := DatePolicy(9).String(); got != "DatePolicy(9)" {
		t.Errorf("String() = %q", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"10/Oct/2000:13:55:36 -0700", "2000-10-10 01:55:36"},
		{"01/Jan/2024:00:05:00 +0000", "2024-01-01 12:05:00"},
		{"29/Feb/2024:11:59:59 +0530", "2024-02-29 11:59:59"},
		{"31/Dec/1999:23:59:59 -1200", "1999-12-31 11:59:59"},
	}
	for _, tt := range tests {
		ts, got, err := normalizeDate(tt.raw, DateStrict)
		if err != nil {
			t.Errorf("normalizeDate(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
		if ts.IsZero() {
			t.Errorf("normalizeDate(%q) returned zero time", tt.raw)
		}
	}
}

func TestNormalizeDateKeepsInstant(t *testing.T) {
	ts, _, err := normalizeDate("10/Oct/2000:13:55:36 -0700", DateSentinel)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2000, 10, 10, 20, 55, 36, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("instant = %v, want %v", ts.UTC(), want)
	}
}

func TestNormalizeDateInvalid(t *testing.T) {
	for _, raw := range []string{"", "32/Oct/2000:13:55:36 -0700", "10/Foo/2000:13:55:36 -0700", "2000-10-10"} {
		if _, got, err := normalizeDate(raw, DateSentinel); err != nil || got != InvalidDate {
			t.Errorf("sentinel(%q) = %q, %v", raw, got, err)
		}
		if _, got, err := normalizeDate(raw, DateRaw); err != nil || got != raw {
			t.Errorf("raw(%q) = %q, %v", raw, got, err)
		}
		if _, _, err := normalizeDate(raw, DateStrict); err == nil {
			t.Errorf("strict(%q) should fail", raw)
		}
	}
}
