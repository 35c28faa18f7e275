package render

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/ppiankov/logsieve/internal/clf"
)

type jsonlWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{buf: buf, enc: enc}
}

func (w *jsonlWriter) Write(e clf.Entry) error {
	return w.enc.Encode(e)
}

func (w *jsonlWriter) Close() error {
	return w.buf.Flush()
}
