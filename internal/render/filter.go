package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/logsieve/internal/clf"
)

// Filter narrows the entries that are presented. Rejects are never filtered.
type Filter struct {
	Methods []string
	// Statuses holds exact codes ("404") or classes ("5xx").
	Statuses []string
	Grep     *regexp.Regexp
	From     time.Time
	To       time.Time
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Methods) == 0 && len(f.Statuses) == 0 && f.Grep == nil && f.From.IsZero() && f.To.IsZero())
}

// Match returns true if e passes all criteria.
func (f *Filter) Match(e clf.Entry) bool {
	if f == nil {
		return true
	}

	if len(f.Methods) > 0 && !containsFold(f.Methods, e.Method) {
		return false
	}

	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if s == e.Status || s == e.StatusClass() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	// entries without a usable timestamp fall outside any range
	if !f.From.IsZero() || !f.To.IsZero() {
		if e.Timestamp.IsZero() {
			return false
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && e.Timestamp.After(f.To) {
			return false
		}
	}

	if f.Grep != nil && !grepEntry(f.Grep, e) {
		return false
	}
	return true
}

// Apply returns a copy of res holding only matching entries.
func (f *Filter) Apply(res *clf.Result) *clf.Result {
	if f.Empty() {
		return res
	}
	out := *res
	out.Entries = make([]clf.Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		if f.Match(e) {
			out.Entries = append(out.Entries, e)
		}
	}
	return &out
}

func grepEntry(re *regexp.Regexp, e clf.Entry) bool {
	for _, s := range []string{e.Resource, e.IP, e.Agent, e.Referer, e.RawDate} {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ParseMethodFlag validates a comma-separated list of request methods.
func ParseMethodFlag(s string) ([]string, error) {
	var out []string
	for _, m := range splitList(s) {
		m = strings.ToUpper(m)
		if !containsFold(clf.Methods, m) {
			return nil, fmt.Errorf("unknown method %q (valid: %s)", m, strings.Join(clf.Methods, ", "))
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseStatusFlag validates a comma-separated list of status codes or
// classes, e.g. "404,5xx".
func ParseStatusFlag(s string) ([]string, error) {
	var out []string
	for _, v := range splitList(s) {
		v = strings.ToLower(v)
		switch {
		case len(v) == 3 && v[0] >= '1' && v[0] <= '5' && v[1:] == "xx":
		case len(v) == 3 && isDigits(v):
		default:
			return nil, fmt.Errorf("invalid status filter %q: expected a code like 404 or a class like 5xx", v)
		}
		out = append(out, v)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// ParseTimeFlag parses a --from/--to value: RFC3339, "2006-01-02 15:04:05"
// (in ref's location), the access-log layout, or a duration relative to ref
// such as "-30m".
func ParseTimeFlag(s string, ref time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, ref.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(clf.RawLayout, s); err == nil {
		return t, nil
	}

	if strings.HasPrefix(s, "-") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return ref.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
