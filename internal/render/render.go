// Package render presents a classification result as a terminal table,
// JSON, JSONL, CSV, Parquet or a standalone HTML page.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/redact"
)

// Format identifies the output format.
type Format string

const (
	FormatTable   Format = "table"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatHTML    Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatParquet, FormatHTML}

// ParseFormat validates a --format value. Empty selects FormatTable.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatTable, nil
	}
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unsupported format %q (valid: %s)", s, strings.Join(names, ", "))
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool { return f == FormatParquet }

// Options controls presentation. None of it affects classification.
type Options struct {
	Format      Format
	ShowRejects bool
	Redactor    *redact.Redactor
	Color       bool
	// Title heads the HTML page and the table footer.
	Title string
}

// Write renders res to w.
func Write(w io.Writer, res *clf.Result, opts Options) error {
	if opts.Redactor != nil {
		res = opts.Redactor.Result(res)
	}
	switch opts.Format {
	case FormatTable, "":
		return writeTable(w, res, opts)
	case FormatJSON:
		return writeJSON(w, res, opts)
	case FormatHTML:
		return writeHTML(w, res, opts)
	case FormatJSONL, FormatCSV, FormatParquet:
		ew, err := NewEntryWriter(w, opts.Format)
		if err != nil {
			return err
		}
		for _, e := range res.Entries {
			if err := ew.Write(e); err != nil {
				_ = ew.Close()
				return fmt.Errorf("write line %d: %w", e.Line, err)
			}
		}
		return ew.Close()
	}
	return fmt.Errorf("unsupported format %q", opts.Format)
}

// EntryWriter streams entries in a row-oriented format.
type EntryWriter interface {
	Write(clf.Entry) error
	// Close flushes buffered rows. It does not close the underlying writer.
	Close() error
}

// NewEntryWriter returns a writer for jsonl, csv or parquet.
func NewEntryWriter(w io.Writer, format Format) (EntryWriter, error) {
	switch format {
	case FormatJSONL:
		return newJSONLWriter(w), nil
	case FormatCSV:
		cw, err := newCSVWriter(w)
		if err != nil {
			return nil, err
		}
		return cw, nil
	case FormatParquet:
		return newParquetWriter(w), nil
	default:
		return nil, fmt.Errorf("format %q is not row-oriented", format)
	}
}
