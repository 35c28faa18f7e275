package render

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ppiankov/logsieve/internal/clf"
)

var csvHeader = []string{"line", "ip", "date", "method", "resource", "status", "size", "referer", "agent"}

type csvWriter struct {
	w *csv.Writer
}

func newCSVWriter(w io.Writer) (*csvWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	return &csvWriter{w: cw}, nil
}

func (w *csvWriter) Write(e clf.Entry) error {
	return w.w.Write([]string{
		strconv.Itoa(e.Line),
		e.IP,
		e.Date,
		e.Method,
		e.Resource,
		e.Status,
		e.Size,
		e.Referer,
		e.Agent,
	})
}

func (w *csvWriter) Close() error {
	w.w.Flush()
	return w.w.Error()
}
