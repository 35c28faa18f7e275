package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/logging"
	"github.com/ppiankov/logsieve/internal/render"
	"github.com/ppiankov/logsieve/internal/source"
)

// uploadField is the multipart field holding the log file.
const uploadField = "log"

// upload is one received and classified log.
type upload struct {
	id    string
	name  string
	res   *clf.Result
	bytes int64
}

// receive reads, decodes and classifies the request body. Every call is
// counted, logged and audited whatever the outcome.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) (*upload, error) {
	start := time.Now()
	up := &upload{id: uuid.NewString()}
	ctx := logging.WithUploadID(r.Context(), up.id)
	logger := logging.FromContext(ctx)

	res, err := s.classifyBody(ctx, w, r, up)

	result := "ok"
	if err != nil {
		_, result = errorStatus(err)
	}
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(result).Inc()
		s.metrics.UploadBytes.Add(float64(up.bytes))
		s.metrics.ClassifyDuration.Observe(elapsed.Seconds())
		if res != nil {
			s.metrics.LinesTotal.WithLabelValues("entry").Add(float64(len(res.Entries)))
			s.metrics.LinesTotal.WithLabelValues("reject").Add(float64(len(res.Rejects)))
			s.metrics.LinesTotal.WithLabelValues("blank").Add(float64(res.Blank))
		}
	}

	entry := AuditEntry{
		UploadID:   up.id,
		RemoteIP:   remoteIP(r),
		Name:       up.name,
		Result:     result,
		Bytes:      up.bytes,
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		logger.Warn("upload failed", "name", up.name, "result", result, "error", err)
	} else {
		entry.Lines = res.Lines
		entry.Entries = len(res.Entries)
		entry.Rejects = len(res.Rejects)
		logger.Info("upload classified",
			"name", up.name,
			"bytes", up.bytes,
			"entries", len(res.Entries),
			"rejects", len(res.Rejects),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	s.cfg.Audit.Log(entry)

	if err != nil {
		return nil, err
	}
	up.res = res
	return up, nil
}

func (s *Server) classifyBody(ctx context.Context, w http.ResponseWriter, r *http.Request, up *upload) (*clf.Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()
	if s.metrics != nil {
		s.metrics.InflightUploads.Inc()
		defer s.metrics.InflightUploads.Dec()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	body, name, err := uploadBody(r)
	if err != nil {
		if ue, ok := source.AsUploadError(err); ok {
			return nil, ue
		}
		return nil, &source.UploadError{Kind: source.KindUnreadable, Msg: "invalid upload form", Err: err}
	}
	defer func() { _ = body.Close() }()
	up.name = name

	counted := &countingReader{r: body}
	defer func() { up.bytes = counted.n }()

	rc, err := source.OpenReader(counted, source.Options{MaxBytes: s.cfg.MaxBytes, MaxLineBytes: s.cfg.MaxLineBytes})
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	lines, err := source.ReadLines(rc, s.cfg.MaxLineBytes)
	if err != nil {
		return nil, err
	}
	return s.classifier.Classify(lines)
}

// uploadBody returns the multipart field "log", or the raw body for any
// other content type.
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// errorStatus maps a failed upload to an HTTP status and a metrics label.
func errorStatus(err error) (int, string) {
	if errors.Is(err, ErrBusy) {
		return http.StatusServiceUnavailable, "busy"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "canceled"
	}
	if ue, ok := source.AsUploadError(err); ok {
		if ue.Kind == source.KindTooLarge {
			return http.StatusRequestEntityTooLarge, string(ue.Kind)
		}
		return http.StatusBadRequest, string(ue.Kind)
	}
	var de *clf.DateError
	switch {
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity, "invalid_date"
	case errors.Is(err, clf.ErrInvalidInput), errors.Is(err, clf.ErrLineTooLong):
		return http.StatusBadRequest, "invalid_input"
	}
	return http.StatusInternalServerError, "error"
}

// errorMessage is the client-facing text for err.
func errorMessage(err error) string {
	if ue, ok := source.AsUploadError(err); ok {
		return ue.Msg
	}
	return err.Error()
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	up, err := s.receive(w, r)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	res := up.res
	if s.cfg.Redactor != nil {
		res = s.cfg.Redactor.Result(res)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Upload-Id", up.id)

	if q := r.URL.Query().Get("q"); q != "" {
		out, err := render.Query(res, q)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": "invalid_query"})
			return
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(out)
		return
	}

	opts := render.Options{Format: render.FormatJSON, ShowRejects: queryBool(r, "rejects")}
	if err := render.Write(w, res, opts); err != nil {
		logging.FromContext(logging.WithUploadID(r.Context(), up.id)).Error("write response", "error", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.receive(w, r)
	if err != nil {
		status, _ := errorStatus(err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = indexTmpl.Execute(w, indexData{MaxUpload: source.FormatBytes(s.cfg.MaxUpload), Error: errorMessage(err)})
		return
	}

	title := up.name
	if title == "" {
		title = "upload " + up.id
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Upload-Id", up.id)
	opts := render.Options{
		Format:      render.FormatHTML,
		ShowRejects: true,
		Redactor:    s.cfg.Redactor,
		Title:       title,
	}
	if err := render.Write(w, up.res, opts); err != nil {
		logging.FromContext(logging.WithUploadID(r.Context(), up.id)).Error("write response", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, indexData{MaxUpload: source.FormatBytes(s.cfg.MaxUpload)})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	v := s.cfg.Version
	if v == "" {
		v = "dev"
	}
	_ = json.NewEncoder(w).Encode(struct {
		Version string `json:"version"`
	}{Version: v})
}

func writeJSONError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errorMessage(err), "kind": kind})
}

func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

type indexData struct {
	MaxUpload string
	Error     string
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>logsieve</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; color: #1a1a1a; background: #fafafa; padding: 2rem; max-width: 640px; margin: 0 auto; line-height: 1.5; }
  h1 { font-size: 1.4rem; margin-bottom: 1rem; }
  .error { background: #ffebe9; border: 1px solid #cf222e; padding: 0.5rem 0.75rem; border-radius: 4px; margin-bottom: 1rem; }
  .hint { color: #555; font-size: 0.9rem; }
  button { margin-top: 1rem; padding: 0.4rem 1rem; }
</style>
</head>
<body>
<h1>logsieve</h1>
{{- if .Error}}
<div class="error">{{.Error}}</div>
{{- end}}
<form method="post" action="/upload" enctype="multipart/form-data">
  <input type="file" name="log" required>
  <p class="hint">Apache combined log, plain, gzip or zstd, up to {{.MaxUpload}}.</p>
  <button type="submit">Classify</button>
</form>
</body>
</html>
`))
