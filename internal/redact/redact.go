// Package redact masks personal data in parsed access log fields before
// they are rendered or shared.
package redact

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/logsieve/internal/clf"
	"gopkg.in/yaml.v3"
)

// Pattern is a named PII matcher. Replacement may reference capture
// groups ($1) like regexp.Expand.
type Pattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	re          *regexp.Regexp
	validate    func(string) bool
}

// Redactor applies patterns to text and keeps per-pattern hit counts.
type Redactor struct {
	patterns []Pattern

	mu   sync.Mutex
	hits map[string]int
}

var builtinPatterns = []Pattern{
	{
		Name:        "query_secret",
		Pattern:     `(?i)([?&;](?:access_token|api_?key|auth|key|password|passwd|pwd|secret|session|sessionid|sid|token)=)[^&;\s"]+`,
		Replacement: "${1}[REDACTED]",
	},
	{
		Name:        "credit_card",
		Pattern:     `\b(\d[ -]*?){13,19}\b`,
		Replacement: "[REDACTED:cc]",
	},
	{
		Name:        "email",
		Pattern:     `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		Replacement: "[REDACTED:email]",
	},
	{
		Name:        "jwt",
		Pattern:     `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		Replacement: "[REDACTED:jwt]",
	},
	{
		Name:        "bearer",
		Pattern:     `(?i)Bearer\s+[A-Za-z0-9_\-.]+`,
		Replacement: "[REDACTED:bearer]",
	},
	{
		Name:        "ip_v4",
		Pattern:     `\b((?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d))\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`,
		Replacement: "${1}.0",
	},
}

// BuiltinNames lists the built-in pattern names in application order.
func BuiltinNames() []string {
	names := make([]string, len(builtinPatterns))
	for i, p := range builtinPatterns {
		names[i] = p.Name
	}
	return names
}

// New creates a Redactor with the named built-in patterns. No names
// selects all of them.
func New(names []string) (*Redactor, error) {
	var selected []Pattern
	if len(names) == 0 {
		selected = append(selected, builtinPatterns...)
	} else {
		byName := make(map[string]Pattern, len(builtinPatterns))
		for _, p := range builtinPatterns {
			byName[p.Name] = p
		}
		for _, n := range names {
			p, ok := byName[n]
			if !ok {
				return nil, fmt.Errorf("unknown redaction pattern: %s (valid: %s)", n, strings.Join(BuiltinNames(), ", "))
			}
			selected = append(selected, p)
		}
	}
	compiled, err := compile(selected)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: compiled, hits: make(map[string]int)}, nil
}

// LoadPatterns appends patterns from a YAML list of {name, pattern, replacement}.
func (r *Redactor) LoadPatterns(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read patterns file: %w", err)
	}
	var customs []Pattern
	if err := yaml.Unmarshal(data, &customs); err != nil {
		return fmt.Errorf("parse patterns file: %w", err)
	}
	for _, p := range customs {
		if p.Name == "" || p.Pattern == "" {
			return fmt.Errorf("parse patterns file: every pattern needs a name and a pattern")
		}
	}
	compiled, err := compile(customs)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, compiled...)
	return nil
}

// Text returns s with every match replaced.
func (r *Redactor) Text(s string) string {
	for i := range r.patterns {
		p := &r.patterns[i]
		n := 0
		s = p.re.ReplaceAllStringFunc(s, func(match string) string {
			if p.validate != nil && !p.validate(match) {
				return match
			}
			n++
			return expand(p, match)
		})
		if n > 0 {
			r.hit(p.Name, n)
		}
	}
	return s
}

// Entry returns a copy of e with the free-text fields redacted. The
// method, status, size and dates carry no personal data and are kept.
func (r *Redactor) Entry(e clf.Entry) clf.Entry {
	e.IP = r.Text(e.IP)
	e.Resource = r.Text(e.Resource)
	e.Referer = r.Text(e.Referer)
	e.Agent = r.Text(e.Agent)
	return e
}

// Result returns a redacted copy of res. res itself is not modified.
func (r *Redactor) Result(res *clf.Result) *clf.Result {
	out := &clf.Result{Blank: res.Blank, Lines: res.Lines}
	if res.Entries != nil {
		out.Entries = make([]clf.Entry, len(res.Entries))
		for i, e := range res.Entries {
			out.Entries[i] = r.Entry(e)
		}
	}
	if res.Rejects != nil {
		out.Rejects = make([]clf.Reject, len(res.Rejects))
		for i, rj := range res.Rejects {
			out.Rejects[i] = clf.Reject{Line: rj.Line, Text: r.Text(rj.Text)}
		}
	}
	return out
}

// Names returns the active pattern names.
func (r *Redactor) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}
	return names
}

// Hits returns replacement counts per pattern, sorted by name.
func (r *Redactor) Hits() []Hit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Hit, 0, len(r.hits))
	for name, n := range r.hits {
		out = append(out, Hit{Pattern: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// Hit is a per-pattern replacement count.
type Hit struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

func (r *Redactor) hit(name string, n int) {
	r.mu.Lock()
	r.hits[name] += n
	r.mu.Unlock()
}

func expand(p *Pattern, match string) string {
	if !strings.Contains(p.Replacement, "$") {
		return p.Replacement
	}
	sub := p.re.FindStringSubmatchIndex(match)
	if sub == nil {
		return p.Replacement
	}
	return string(p.re.ExpandString(nil, p.Replacement, match, sub))
}

func compile(patterns []Pattern) ([]Pattern, error) {
	compiled := make([]Pattern, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", p.Name, err)
		}
		compiled[i] = p
		compiled[i].re = re
		if p.Name == "credit_card" {
			compiled[i].validate = luhnValid
		}
	}
	return compiled, nil
}

// ParseFlag parses a --redact value: "" disables, "true" or "all" enables
// every built-in pattern, "a,b" selects a subset.
func ParseFlag(val string) (enabled bool, names []string) {
	val = strings.TrimSpace(val)
	switch val {
	case "", "false":
		return false, nil
	case "true", "all":
		return true, nil
	}
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return true, names
}
