package clf

import (
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Entry is a matched line with its date normalized.
type Entry struct {
	Line      int       `json:"line"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"-"`
	Date      string    `json:"date"`
	RawDate   string    `json:"-"`
	Method    string    `json:"method"`
	Resource  string    `json:"resource"`
	Status    string    `json:"status"`
	Size      string    `json:"size"`
	Referer   string    `json:"referer"`
	Agent     string    `json:"agent"`
}

// Reject is a non-blank line that did not match, kept verbatim.
type Reject struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Result is the outcome of one classification run.
type Result struct {
	Entries []Entry  `json:"entries"`
	Rejects []Reject `json:"rejects"`
	Blank   int      `json:"blank"`
	Lines   int      `json:"lines"`
}

// Total returns the number of recognized lines: entries plus rejects.
func (r *Result) Total() int {
	return len(r.Entries) + len(r.Rejects)
}

// InvalidDates counts entries whose timestamp did not parse.
func (r *Result) InvalidDates() int {
	n := 0
	for _, e := range r.Entries {
		if e.Timestamp.IsZero() {
			n++
		}
	}
	return n
}

// DefaultMaxLineBytes bounds a single line read by ClassifyReader.
const DefaultMaxLineBytes = 1 << 20

// Classifier drives Match over a sequence of lines.
type Classifier struct {
	jobs    int
	policy  DatePolicy
	maxLine int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithJobs splits classification across n goroutines. Values below 2 run serially.
func WithJobs(n int) Option {
	return func(c *Classifier) { c.jobs = n }
}

// WithDatePolicy sets how unparseable timestamps are handled.
func WithDatePolicy(p DatePolicy) Option {
	return func(c *Classifier) { c.policy = p }
}

// WithMaxLineBytes sets the line limit used by ClassifyReader.
func WithMaxLineBytes(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxLine = n
		}
	}
}

// New returns a Classifier. Without options it runs serially with DateSentinel.
func New(opts ...Option) *Classifier {
	c := &Classifier{jobs: 1, maxLine: DefaultMaxLineBytes}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify sorts lines with default options.
func Classify(lines []string) (*Result, error) {
	return New().Classify(lines)
}

// Classify sorts lines into entries and rejects, in input order. Line
// numbers are 1-based positions in lines, blank lines included.
func (c *Classifier) Classify(lines []string) (*Result, error) {
	chunks := split(len(lines), c.jobs)
	if len(chunks) <= 1 {
		res := &Result{Lines: len(lines), Entries: []Entry{}, Rejects: []Reject{}}
		if err := c.classifyRange(lines, 0, len(lines), res); err != nil {
			return nil, err
		}
		return res, nil
	}

	parts := make([]Result, len(chunks))
	errs := make([]error, len(chunks))
	var g errgroup.Group
	for i, ch := range chunks {
		g.Go(func() error {
			errs[i] = c.classifyRange(lines, ch[0], ch[1], &parts[i])
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		// the earliest failing chunk wins so strict mode reports the same
		// line regardless of scheduling
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
		return nil, err
	}

	res := &Result{Lines: len(lines)}
	var ne, nr int
	for i := range parts {
		ne += len(parts[i].Entries)
		nr += len(parts[i].Rejects)
	}
	res.Entries = make([]Entry, 0, ne)
	res.Rejects = make([]Reject, 0, nr)
	for i := range parts {
		res.Entries = append(res.Entries, parts[i].Entries...)
		res.Rejects = append(res.Rejects, parts[i].Rejects...)
		res.Blank += parts[i].Blank
	}
	return res, nil
}

func (c *Classifier) classifyRange(lines []string, lo, hi int, res *Result) error {
	for i := lo; i < hi; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			res.Blank++
			continue
		}
		f, ok := Match(line)
		if !ok {
			res.Rejects = append(res.Rejects, Reject{Line: i + 1, Text: line})
			continue
		}
		ts, date, err := normalizeDate(f.RawDate, c.policy)
		if err != nil {
			return &DateError{Line: i + 1, Raw: f.RawDate, Err: err}
		}
		res.Entries = append(res.Entries, Entry{
			Line:      i + 1,
			IP:        f.IP,
			Timestamp: ts,
			Date:      date,
			RawDate:   f.RawDate,
			Method:    f.Method,
			Resource:  f.Resource,
			Status:    f.Status,
			Size:      f.Size,
			Referer:   f.Referer,
			Agent:     f.Agent,
		})
	}
	return nil
}

// split divides n items into at most jobs contiguous [lo, hi) ranges.
func split(n, jobs int) [][2]int {
	if n == 0 {
		return nil
	}
	if jobs < 2 {
		return [][2]int{{0, n}}
	}
	if jobs > n {
		jobs = n
	}
	size := (n + jobs - 1) / jobs
	out := make([][2]int, 0, jobs)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
