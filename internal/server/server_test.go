package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/redact"
	"github.com/ppiankov/logsieve/internal/source"
)

const logText = `127.0.0.1 - - [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326 "-" "Mozilla/4.08"
10.0.0.2 - - [10/Oct/2000:14:00:00 -0700] "POST /login?token=abc HTTP/1.1" 500 - "http://example.com/" "curl/7.0"

not a log line
`

func newTestServer(t *testing.T, cfg Config) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(cfg, NewMetrics(reg)), reg
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type classifyResponse struct {
	Entries []clf.Entry  `json:"entries"`
	Rejects []clf.Reject `json:"rejects"`
	Stats   struct {
		Lines   int `json:"lines"`
		Entries int `json:"entries"`
		Rejects int `json:"rejects"`
		Blank   int `json:"blank"`
	} `json:"stats"`
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if labelsMatch(m, labels) {
				if c := m.GetCounter(); c != nil {
					return c.GetValue()
				}
				if g := m.GetGauge(); g != nil {
					return g.GetValue()
				}
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestClassifyRawBody(t *testing.T) {
	s, reg := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(logText)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Upload-Id") == "" {
		t.Error("missing X-Upload-Id")
	}

	var resp classifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 2 || resp.Rejects != nil {
		t.Errorf("entries=%d rejects=%v", len(resp.Entries), resp.Rejects)
	}
	if resp.Stats.Rejects != 1 || resp.Stats.Blank != 1 || resp.Stats.Lines != 4 {
		t.Errorf("stats = %+v", resp.Stats)
	}

	if v := counterValue(t, reg, "logsieve_uploads_total", map[string]string{"result": "ok"}); v != 1 {
		t.Errorf("uploads ok = %v, want 1", v)
	}
	if v := counterValue(t, reg, "logsieve_lines_total", map[string]string{"outcome": "entry"}); v != 2 {
		t.Errorf("entry lines = %v, want 2", v)
	}
	if v := counterValue(t, reg, "logsieve_upload_bytes_total", nil); v != float64(len(logText)) {
		t.Errorf("upload bytes = %v, want %d", v, len(logText))
	}
}

func TestClassifyMultipartWithRejects(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	body, ct := multipartBody(t, "log", "access.log", []byte(logText))
	req := httptest.NewRequest(http.MethodPost, "/api/classify?rejects=1", body)
	req.Header.Set("Content-Type", ct)

	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp classifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rejects) != 1 || resp.Rejects[0].Text != "not a log line" || resp.Rejects[0].Line != 4 {
		t.Errorf("rejects = %+v", resp.Rejects)
	}
}

func TestClassifyGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(logText))
	_ = zw.Close()

	s, _ := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/classify", &buf))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"entries": 2`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestClassifyQuery(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/classify?q="+url.QueryEscape("entries[?status=='500'].ip"), strings.NewReader(logText))
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got []string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "10.0.0.2" {
		t.Errorf("query result = %v", got)
	}

	bad := do(s, httptest.NewRequest(http.MethodPost, "/api/classify?q="+url.QueryEscape("entries["), strings.NewReader(logText)))
	if bad.Code != http.StatusBadRequest || !strings.Contains(bad.Body.String(), "invalid_query") {
		t.Errorf("bad query: %d %s", bad.Code, bad.Body.String())
	}
}

func TestClassifyRedacts(t *testing.T) {
	rd, err := redact.New([]string{"query_secret"})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, Config{Redactor: rd})
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(logText)))
	if strings.Contains(rec.Body.String(), "token=abc") || !strings.Contains(rec.Body.String(), "token=[REDACTED]") {
		t.Errorf("token not redacted: %s", rec.Body.String())
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		body       func(t *testing.T) (*bytes.Buffer, string)
		wantStatus int
		wantKind   string
	}{
		{
			name: "too large",
			cfg:  Config{MaxUpload: 64},
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBufferString(strings.Repeat(logText, 10)), "text/plain"
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   "too_large",
		},
		{
			name: "missing field",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartBody(t, "file", "access.log", []byte(logText))
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "no_file",
		},
		{
			name: "binary",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBuffer([]byte{'a', 0, 'b', '\n'}), "application/octet-stream"
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name: "zip archive",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBuffer([]byte("PK\x03\x04rest")), "application/zip"
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "unsupported",
		},
		{
			name: "truncated gzip",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				_, _ = zw.Write([]byte(strings.Repeat(logText, 50)))
				_ = zw.Close()
				return bytes.NewBuffer(buf.Bytes()[:buf.Len()/2]), "application/gzip"
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "partial",
		},
		{
			name: "strict date",
			cfg:  Config{DatePolicy: clf.DateStrict},
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBufferString(`1.2.3.4 - - [not a date] "GET / HTTP/1.1" 200 1 "-" "a"` + "\n"), "text/plain"
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "invalid_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, reg := newTestServer(t, tt.cfg)
			body, ct := tt.body(t)
			req := httptest.NewRequest(http.MethodPost, "/api/classify", body)
			req.Header.Set("Content-Type", ct)
			rec := do(s, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp["kind"] != tt.wantKind || resp["error"] == "" {
				t.Errorf("response = %v, want kind %q", resp, tt.wantKind)
			}
			if v := counterValue(t, reg, "logsieve_uploads_total", map[string]string{"result": tt.wantKind}); v != 1 {
				t.Errorf("uploads_total{result=%q} = %v, want 1", tt.wantKind, v)
			}
		})
	}
}

func TestTooLargeMessage(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxUpload: 1 << 10})
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(strings.Repeat("x", 4<<10))))
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	want := "the file size exceeds the maximum file size limit, file must be less than 1.0 KB"
	if resp["error"] != want {
		t.Errorf("error = %q, want %q", resp["error"], want)
	}
}

func TestUploadPage(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	body, ct := multipartBody(t, "log", "access.log", []byte(logText))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{"<title>access.log</title>", "/apache_pb.gif HTTP/1.0", "Rejects", "not a log line"} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestUploadPageError(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	body, ct := multipartBody(t, "other", "access.log", []byte(logText))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := do(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no file was uploaded") {
		t.Errorf("page should show the error:\n%s", rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxUpload: 2 << 20})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="log"`) || !strings.Contains(rec.Body.String(), "2.0 MB") {
		t.Errorf("index = %s", rec.Body.String())
	}

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("/nope status = %d, want 404", rec.Code)
	}
}

func TestHealthzAndVersion(t *testing.T) {
	s, _ := newTestServer(t, Config{Version: "1.2.3"})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if !strings.Contains(rec.Body.String(), `"1.2.3"`) {
		t.Errorf("version = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestBusy(t *testing.T) {
	s, reg := newTestServer(t, Config{MaxConcurrent: 1, UploadWait: 20 * time.Millisecond})
	if err := s.limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.limiter.Release()

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(logText)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if v := counterValue(t, reg, "logsieve_uploads_total", map[string]string{"result": "busy"}); v != 1 {
		t.Errorf("busy uploads = %v", v)
	}
}

func TestAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := NewAuditLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, Config{Audit: audit})

	body, ct := multipartBody(t, "log", "access.log", []byte(logText))
	req := httptest.NewRequest(http.MethodPost, "/api/classify", body)
	req.Header.Set("Content-Type", ct)
	do(s, req)
	do(s, httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewReader([]byte{0})))
	if err := audit.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2", len(lines))
	}
	var first, second AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first.Result != "ok" || first.Name != "access.log" || first.Entries != 2 || first.Rejects != 1 || first.UploadID == "" {
		t.Errorf("first = %+v", first)
	}
	if second.Result != "invalid_input" {
		t.Errorf("second = %+v", second)
	}
	if first.UploadID == second.UploadID {
		t.Error("upload ids should differ")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		label  string
	}{
		{ErrBusy, 503, "busy"},
		{fmt.Errorf("wrap: %w", context.Canceled), 503, "canceled"},
		{&source.UploadError{Kind: source.KindTooLarge, Msg: "x"}, 413, "too_large"},
		{&source.UploadError{Kind: source.KindNoFile, Msg: "x"}, 400, "no_file"},
		{fmt.Errorf("line 3: %w", clf.ErrLineTooLong), 400, "invalid_input"},
		{&clf.DateError{Line: 1, Raw: "x", Err: errors.New("bad")}, 422, "invalid_date"},
		{errors.New("boom"), 500, "error"},
	}
	for _, tt := range tests {
		status, label := errorStatus(tt.err)
		if status != tt.status || label != tt.label {
			t.Errorf("errorStatus(%v) = %d %q, want %d %q", tt.err, status, label, tt.status, tt.label)
		}
	}
}

func TestServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/classify", "text/plain", strings.NewReader(logText))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestLimiterRelease(t *testing.T) {
	l := newLimiter(1, 10*time.Millisecond)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Acquire = %v, want ErrBusy", err)
	}
	l.Release()
	if l.Active() != 0 {
		t.Errorf("Active = %d", l.Active())
	}
	if err := l.WaitForDrain(context.Background()); err != nil {
		t.Error(err)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
}
