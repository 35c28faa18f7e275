package render

import (
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/ppiankov/logsieve/internal/clf"
)

const parquetBatchSize = 50000

// parquetEntry is the Parquet schema. Ts is zero for unparseable dates.
type parquetEntry struct {
	Line     int64  `parquet:"line"`
	IP       string `parquet:"ip,dict"`
	Ts       int64  `parquet:"ts,timestamp(millisecond)"`
	Date     string `parquet:"date"`
	Method   string `parquet:"method,dict"`
	Path     string `parquet:"path"`
	Resource string `parquet:"resource"`
	Status   int32  `parquet:"status"`
	Bytes    int64  `parquet:"bytes"`
	Referer  string `parquet:"referer"`
	Agent    string `parquet:"agent,dict"`
}

type parquetWriter struct {
	writer *parquet.GenericWriter[parquetEntry]
	batch  []parquetEntry
}

func newParquetWriter(w io.Writer) *parquetWriter {
	return &parquetWriter{
		writer: parquet.NewGenericWriter[parquetEntry](w, parquet.Compression(&zstd.Codec{})),
		batch:  make([]parquetEntry, 0, 1024),
	}
}

func (w *parquetWriter) Write(e clf.Entry) error {
	var ts int64
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UnixMilli()
	}
	status := int32(0)
	for _, c := range e.Status {
		status = status*10 + int32(c-'0')
	}
	w.batch = append(w.batch, parquetEntry{
		Line:     int64(e.Line),
		IP:       e.IP,
		Ts:       ts,
		Date:     e.Date,
		Method:   e.Method,
		Path:     e.Path(),
		Resource: e.Resource,
		Status:   status,
		Bytes:    e.Bytes(),
		Referer:  e.Referer,
		Agent:    e.Agent,
	})
	if len(w.batch) >= parquetBatchSize {
		return w.flush()
	}
	return nil
}

func (w *parquetWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	_, err := w.writer.Write(w.batch)
	w.batch = w.batch[:0]
	return err
}

func (w *parquetWriter) Close() error {
	if err := w.flush(); err != nil {
		_ = w.writer.Close()
		return err
	}
	return w.writer.Close()
}
