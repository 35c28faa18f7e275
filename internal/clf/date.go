package clf

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RawLayout is the bracketed timestamp layout of the combined format.
	RawLayout = "02/Jan/2006:15:04:05 -0700"
	// DateLayout is the canonical rendering of entry dates. Hours are on a
	// 12-hour clock in the offset the log was written with.
	DateLayout = "2006-01-02 03:04:05"
	// InvalidDate replaces dates that cannot be parsed under DateSentinel.
	InvalidDate = "0000-00-00 00:00:00"
)

// DatePolicy decides what happens to a timestamp that does not parse.
type DatePolicy int

const (
	// DateSentinel stores InvalidDate and keeps going.
	DateSentinel DatePolicy = iota
	// DateStrict aborts the run with a *DateError.
	DateStrict
	// DateRaw keeps the bracket text as the date.
	DateRaw
)

func (p DatePolicy) String() string {
	switch p {
	case DateSentinel:
		return "sentinel"
	case DateStrict:
		return "strict"
	case DateRaw:
		return "raw"
	}
	return fmt.Sprintf("DatePolicy(%d)", int(p))
}

// ParseDatePolicy converts a flag or config value into a DatePolicy.
// An empty string selects DateSentinel.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sentinel":
		return DateSentinel, nil
	case "strict":
		return DateStrict, nil
	case "raw":
		return DateRaw, nil
	}
	return DateSentinel, fmt.Errorf("unknown date policy %q (valid: sentinel, strict, raw)", s)
}

// ParseDate parses bracket text such as "10/Oct/2000:13:55:36 -0700".
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(RawLayout, strings.TrimSpace(raw))
}

// normalizeDate returns the parsed instant and its canonical text under policy.
func normalizeDate(raw string, policy DatePolicy) (time.Time, string, error) {
	ts, err := ParseDate(raw)
	if err == nil {
		return ts, ts.Format(DateLayout), nil
	}
	switch policy {
	case DateStrict:
		return time.Time{}, "", err
	case DateRaw:
		return time.Time{}, raw, nil
	default:
		return time.Time{}, InvalidDate, nil
	}
}
