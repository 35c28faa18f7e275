package render

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/logsieve/internal/clf"
)

// Document is the JSON form of a result.
type Document struct {
	Entries []clf.Entry  `json:"entries"`
	Rejects []clf.Reject `json:"rejects,omitzero"`
	Stats   Stats        `json:"stats"`
}

// Stats are the counts of a run.
type Stats struct {
	Lines        int `json:"lines"`
	Entries      int `json:"entries"`
	Rejects      int `json:"rejects"`
	Blank        int `json:"blank"`
	InvalidDates int `json:"invalid_dates"`
}

// NewStats counts res.
func NewStats(res *clf.Result) Stats {
	return Stats{
		Lines:        res.Lines,
		Entries:      len(res.Entries),
		Rejects:      len(res.Rejects),
		Blank:        res.Blank,
		InvalidDates: res.InvalidDates(),
	}
}

// NewDocument builds the JSON form. Rejects are included only when
// showRejects is set, as [] when there are none; the stats always count
// them.
func NewDocument(res *clf.Result, showRejects bool) Document {
	doc := Document{Entries: res.Entries, Stats: NewStats(res)}
	if doc.Entries == nil {
		doc.Entries = []clf.Entry{}
	}
	if showRejects {
		doc.Rejects = res.Rejects
		if doc.Rejects == nil {
			doc.Rejects = []clf.Reject{}
		}
	}
	return doc
}

func writeJSON(w io.Writer, res *clf.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(res, opts.ShowRejects))
}
