package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/logsieve/internal/source"
)

// textWriter wraps an io.Writer and captures the first error.
type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) println(args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintln(tw.w, args...)
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteText writes a human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}

	tw.printf("Source:   %s\n", r.Source)
	if r.First != nil && r.Last != nil {
		tw.printf("Period:   %s to %s (%s)\n",
			r.First.Format(time.DateTime), r.Last.Format(time.DateTime), formatHumanDuration(r.Last.Sub(*r.First)))
	}
	tw.printf("Lines:    %s (%s entries, %s rejects, %s blank)\n",
		FormatCount(r.Lines), FormatCount(r.Entries), FormatCount(r.Rejects), FormatCount(r.Blank))
	tw.printf("Rejects:  %.1f%%\n", r.RejectRatePct)
	tw.printf("5xx:      %.1f%%  severity %s\n", r.ErrorRatePct, r.Severity)
	tw.printf("Served:   %s\n", source.FormatBytes(r.BytesServed))
	if r.InvalidDates > 0 {
		tw.printf("Dates:    %s entries with unparseable timestamps\n", FormatCount(r.InvalidDates))
	}
	tw.println()

	writeCounts(tw, "Methods", r.Methods, r.Entries)
	writeCounts(tw, "Status classes", r.StatusClasses, r.Entries)
	writeCounts(tw, "Top statuses", r.Statuses, r.Entries)
	writeCounts(tw, "Top resources", r.TopResources, r.Entries)
	writeCounts(tw, "Top clients", r.TopClients, r.Entries)
	writeCounts(tw, "Top agents", r.TopAgents, r.Entries)
	writeCounts(tw, "Top referers", r.TopReferers, r.Entries)

	if len(r.Timeline) > 0 {
		tw.printf("Timeline (%s buckets):\n", r.Window)
		writeSparkline(tw, r.Timeline)
		tw.println()
	}

	if len(r.Signatures) > 0 {
		tw.printf("Reject signatures (of %s rejects):\n", FormatCount(r.Rejects))
		for i, s := range r.Signatures {
			tw.printf("  %d. %-60s %s  (first at line %d)\n", i+1, truncate(s.Signature, 60), FormatCount(s.Count), s.FirstLine)
		}
		tw.println()
	}

	if len(r.Suggestions) > 0 {
		tw.println("Next steps:")
		for _, s := range r.Suggestions {
			tw.printf("  %s\n", s)
		}
	}
	return tw.err
}

func writeCounts(tw *textWriter, title string, counts []Count, total int) {
	if len(counts) == 0 {
		return
	}
	tw.printf("%s:\n", title)
	for _, c := range counts {
		pct := float64(0)
		if total > 0 {
			pct = float64(c.Count) / float64(total) * 100
		}
		tw.printf("  %-40s %8s  (%.1f%%)\n", truncate(c.Value, 40), FormatCount(c.Count), pct)
	}
	tw.println()
}

// WriteMarkdown writes the report as a markdown document.
func (r *Report) WriteMarkdown(w io.Writer) error {
	tw := &textWriter{w: w}

	tw.printf("# Access log report: %s\n\n", r.Source)
	tw.println("| metric | value |")
	tw.println("|---|---|")
	tw.printf("| lines | %s |\n", FormatCount(r.Lines))
	tw.printf("| entries | %s |\n", FormatCount(r.Entries))
	tw.printf("| rejects | %s (%.1f%%) |\n", FormatCount(r.Rejects), r.RejectRatePct)
	tw.printf("| blank | %s |\n", FormatCount(r.Blank))
	tw.printf("| 5xx rate | %.1f%% |\n", r.ErrorRatePct)
	tw.printf("| severity | %s |\n", r.Severity)
	tw.printf("| bytes served | %s |\n", source.FormatBytes(r.BytesServed))
	if r.First != nil && r.Last != nil {
		tw.printf("| period | %s to %s |\n", r.First.Format(time.RFC3339), r.Last.Format(time.RFC3339))
	}
	tw.println()

	for _, sec := range []struct {
		title  string
		counts []Count
	}{
		{"Methods", r.Methods},
		{"Status classes", r.StatusClasses},
		{"Top resources", r.TopResources},
		{"Top clients", r.TopClients},
		{"Top agents", r.TopAgents},
	} {
		if len(sec.counts) == 0 {
			continue
		}
		tw.printf("## %s\n\n| value | count |\n|---|---|\n", sec.title)
		for _, c := range sec.counts {
			tw.printf("| %s | %d |\n", mdEscape(c.Value), c.Count)
		}
		tw.println()
	}

	if len(r.Signatures) > 0 {
		tw.println("## Reject signatures")
		tw.println()
		tw.println("| signature | count | first line |")
		tw.println("|---|---|---|")
		for _, s := range r.Signatures {
			tw.printf("| `%s` | %d | %d |\n", strings.ReplaceAll(s.Signature, "`", "'"), s.Count, s.FirstLine)
		}
		tw.println()
	}
	return tw.err
}

func mdEscape(s string) string {
	if s == "" {
		return "(empty)"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// writeSparkline renders timeline buckets as a sparkline chart.
func writeSparkline(tw *textWriter, buckets []Bucket) {
	var maxLines int
	for _, b := range buckets {
		if b.Total > maxLines {
			maxLines = b.Total
		}
	}

	const perRow = 24
	for i := 0; i < len(buckets); i += perRow {
		end := min(i+perRow, len(buckets))
		tw.printf("  %s ", buckets[i].Time.Format("01-02 15:04"))
		for j := i; j < end; j++ {
			idx := 0
			if maxLines > 0 {
				ratio := float64(buckets[j].Total) / float64(maxLines)
				idx = int(math.Round(ratio * float64(len(sparkBlocks)-1)))
			}
			tw.printf("%s", string(sparkBlocks[idx]))
		}
		tw.println()
	}
}

// FormatCount formats numbers with comma separators.
func FormatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatHumanDuration formats a duration as "Xh Ym" or "Xm Ys".
func formatHumanDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
