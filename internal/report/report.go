// Package report summarizes a classification run: traffic mix, top
// talkers, timeline and the shapes of rejected lines.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/logsieve/internal/clf"
)

// Config controls report building.
type Config struct {
	Top    int           // entries per top list (default 10)
	Window time.Duration // timeline bucket width (default 1h)
}

// Report is the summary of one classified log.
type Report struct {
	Source        string      `json:"source"`
	Lines         int         `json:"lines"`
	Entries       int         `json:"entries"`
	Rejects       int         `json:"rejects"`
	Blank         int         `json:"blank"`
	InvalidDates  int         `json:"invalid_dates"`
	RejectRatePct float64     `json:"reject_rate_pct"`
	ErrorRatePct  float64     `json:"error_rate_pct"`
	Severity      string      `json:"severity"`
	BytesServed   int64       `json:"bytes_served"`
	First         *time.Time  `json:"first,omitempty"`
	Last          *time.Time  `json:"last,omitempty"`
	Methods       []Count     `json:"methods"`
	StatusClasses []Count     `json:"status_classes"`
	Statuses      []Count     `json:"statuses"`
	TopResources  []Count     `json:"top_resources"`
	TopClients    []Count     `json:"top_clients"`
	TopAgents     []Count     `json:"top_agents"`
	TopReferers   []Count     `json:"top_referers"`
	Timeline      []Bucket    `json:"timeline,omitempty"`
	Window        string      `json:"window"`
	Signatures    []Signature `json:"reject_signatures,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
}

// Count is one value with its frequency.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Bucket is one timeline window.
type Bucket struct {
	Time   time.Time `json:"time"`
	Total  int       `json:"total"`
	Errors int       `json:"errors"` // 5xx responses
}

// Signature groups rejected lines that normalize to the same text.
type Signature struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
	FirstLine int    `json:"first_line"`
	Example   string `json:"example"`
}

const maxBuckets = 10080

// Build summarizes res. source names the input in the output and in
// suggested follow-up commands.
func Build(res *clf.Result, source string, cfg Config) *Report {
	if cfg.Top <= 0 {
		cfg.Top = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}

	r := &Report{
		Source:  source,
		Lines:   res.Lines,
		Entries: len(res.Entries),
		Rejects: len(res.Rejects),
		Blank:   res.Blank,
		Window:  cfg.Window.String(),
	}
	if total := res.Total(); total > 0 {
		r.RejectRatePct = float64(len(res.Rejects)) / float64(total) * 100
	}

	methods := map[string]int{}
	classes := map[string]int{}
	statuses := map[string]int{}
	resources := map[string]int{}
	clients := map[string]int{}
	agents := map[string]int{}
	referers := map[string]int{}
	buckets := map[int64]*Bucket{}
	errs := 0

	for _, e := range res.Entries {
		methods[e.Method]++
		classes[e.StatusClass()]++
		statuses[e.Status]++
		resources[e.Path()]++
		clients[e.IP]++
		agents[e.Agent]++
		if e.Referer != "" && e.Referer != "-" {
			referers[e.Referer]++
		}
		r.BytesServed += e.Bytes()
		isErr := e.StatusClass() == "5xx"
		if isErr {
			errs++
		}

		if e.Timestamp.IsZero() {
			r.InvalidDates++
			continue
		}
		ts := e.Timestamp.UTC()
		if r.First == nil || ts.Before(*r.First) {
			t := ts
			r.First = &t
		}
		if r.Last == nil || ts.After(*r.Last) {
			t := ts
			r.Last = &t
		}
		key := ts.Truncate(cfg.Window).Unix()
		b := buckets[key]
		if b == nil {
			b = &Bucket{Time: time.Unix(key, 0).UTC()}
			buckets[key] = b
		}
		b.Total++
		if isErr {
			b.Errors++
		}
	}
	if len(res.Entries) > 0 {
		r.ErrorRatePct = float64(errs) / float64(len(res.Entries)) * 100
	}

	r.Methods = topCounts(methods, 0)
	r.StatusClasses = topCounts(classes, 0)
	r.Statuses = topCounts(statuses, cfg.Top)
	r.TopResources = topCounts(resources, cfg.Top)
	r.TopClients = topCounts(clients, cfg.Top)
	r.TopAgents = topCounts(agents, cfg.Top)
	r.TopReferers = topCounts(referers, cfg.Top)
	var window time.Duration
	r.Timeline, window = buildTimeline(buckets, cfg.Window)
	r.Window = window.String()
	r.Signatures = buildSignatures(res.Rejects, cfg.Top)
	r.Severity = classifySeverity(r.ErrorRatePct, r.RejectRatePct)
	r.Suggestions = buildSuggestions(r)
	return r
}

// topCounts sorts by count descending then value, keeping at most top
// (all when top <= 0).
func topCounts(m map[string]int, top int) []Count {
	out := make([]Count, 0, len(m))
	for v, n := range m {
		out = append(out, Count{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// buildTimeline returns a gap-free series from the first to the last
// bucket. When the span needs more than maxBuckets windows the window is
// widened to a multiple of itself; the width used is returned.
func buildTimeline(buckets map[int64]*Bucket, window time.Duration) ([]Bucket, time.Duration) {
	if len(buckets) == 0 {
		return nil, window
	}
	var minKey, maxKey int64
	first := true
	for k := range buckets {
		if first || k < minKey {
			minKey = k
		}
		if first || k > maxKey {
			maxKey = k
		}
		first = false
	}

	step := int64(window / time.Second)
	if step <= 0 {
		step = 1
	}
	n := (maxKey-minKey)/step + 1
	if n > maxBuckets {
		factor := (n + maxBuckets - 1) / maxBuckets
		step *= factor
		window = time.Duration(step) * time.Second
		n = (maxKey-minKey)/step + 1
	}

	timeline := make([]Bucket, n)
	for i := range timeline {
		timeline[i].Time = time.Unix(minKey+int64(i)*step, 0).UTC()
	}
	for k, b := range buckets {
		i := (k - minKey) / step
		timeline[i].Total += b.Total
		timeline[i].Errors += b.Errors
	}
	return timeline, window
}

func buildSignatures(rejects []clf.Reject, top int) []Signature {
	if len(rejects) == 0 {
		return nil
	}
	idx := map[string]int{}
	var sigs []Signature
	for _, rj := range rejects {
		sig := Normalize(rj.Text)
		if i, ok := idx[sig]; ok {
			sigs[i].Count++
			continue
		}
		idx[sig] = len(sigs)
		sigs = append(sigs, Signature{Signature: sig, Count: 1, FirstLine: rj.Line, Example: rj.Text})
	}
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Count > sigs[j].Count })
	if len(sigs) > top {
		sigs = sigs[:top]
	}
	return sigs
}

func classifySeverity(errorRatePct, rejectRatePct float64) string {
	switch {
	case errorRatePct > 5 || rejectRatePct > 50:
		return "high"
	case errorRatePct > 1 || rejectRatePct > 10:
		return "medium"
	default:
		return "low"
	}
}

func buildSuggestions(r *Report) []string {
	src := r.Source
	if src == "" {
		src = "-"
	}
	var out []string
	if r.ErrorRatePct > 0 {
		out = append(out, fmt.Sprintf("logsieve classify %s --status 5xx --sort resource", src))
	}
	if r.Rejects > 0 {
		out = append(out, fmt.Sprintf("logsieve classify %s --rejects --format json --query 'rejects[].text'", src))
	}
	if r.InvalidDates > 0 {
		out = append(out, fmt.Sprintf("logsieve classify %s --date-policy raw", src))
	}
	out = append(out, fmt.Sprintf("logsieve classify %s --format parquet --out access.parquet", src))
	return out
}
