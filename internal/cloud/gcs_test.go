package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type mockGCSWriter struct {
	buf      bytes.Buffer
	writeErr error
	closeErr error
}

func (m *mockGCSWriter) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.buf.Write(p)
}

func (m *mockGCSWriter) Close() error {
	return m.closeErr
}

type mockGCSIterator struct {
	objects []*gstorage.ObjectAttrs
	idx     int
	err     error
}

func (m *mockGCSIterator) Next() (*gstorage.ObjectAttrs, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.idx >= len(m.objects) {
		return nil, iterator.Done
	}
	obj := m.objects[m.idx]
	m.idx++
	return obj, nil
}

type gcsFixture struct {
	writer      *mockGCSWriter
	contentType string
	body        string
	readErr     error
	iter        gcsObjectIterator
	prefix      string
}

func (f *gcsFixture) backend() *gcsBackend {
	return &gcsBackend{
		bucket: "logs",
		newWriter: func(_ context.Context, _, ct string) io.WriteCloser {
			f.contentType = ct
			return f.writer
		},
		newReader: func(_ context.Context, _ string) (io.ReadCloser, int64, error) {
			if f.readErr != nil {
				return nil, 0, f.readErr
			}
			return io.NopCloser(strings.NewReader(f.body)), int64(len(f.body)), nil
		},
		newIterator: func(_ context.Context, p string) gcsObjectIterator {
			f.prefix = p
			return f.iter
		},
	}
}

func TestGCSPut(t *testing.T) {
	f := &gcsFixture{writer: &mockGCSWriter{}}
	err := f.backend().Put(context.Background(), "out.csv", strings.NewReader("a,b\n"), 4, "text/csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.writer.buf.String() != "a,b\n" {
		t.Errorf("written = %q", f.writer.buf.String())
	}
	if f.contentType != "text/csv" {
		t.Errorf("content type = %q", f.contentType)
	}
}

func TestGCSPut_Errors(t *testing.T) {
	tests := []struct {
		name   string
		writer *mockGCSWriter
		want   string
	}{
		{"copy", &mockGCSWriter{writeErr: errors.New("disk full")}, "gcs put"},
		{"close", &mockGCSWriter{closeErr: errors.New("finalize failed")}, "gcs finalize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &gcsFixture{writer: tt.writer}
			err := f.backend().Put(context.Background(), "k", strings.NewReader("x"), 1, "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestGCSGet(t *testing.T) {
	f := &gcsFixture{body: "10.0.0.1 - - [...]\n"}
	rc, size, err := f.backend().Get(context.Background(), "access.log")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != f.body || size != int64(len(f.body)) {
		t.Errorf("got %q size %d", data, size)
	}
}

func TestGCSGet_NotFound(t *testing.T) {
	f := &gcsFixture{readErr: gstorage.ErrObjectNotExist}
	_, _, err := f.backend().Get(context.Background(), "missing.log")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGCSGet_Error(t *testing.T) {
	f := &gcsFixture{readErr: errors.New("permission denied")}
	_, _, err := f.backend().Get(context.Background(), "k")
	if err == nil || !strings.Contains(err.Error(), "gcs get") {
		t.Errorf("error = %v", err)
	}
}

func TestGCSList(t *testing.T) {
	f := &gcsFixture{iter: &mockGCSIterator{objects: []*gstorage.ObjectAttrs{
		{Name: "httpd/a.log", Size: 10},
		{Name: "httpd/b.log", Size: 20},
	}}}
	objects, err := f.backend().List(context.Background(), "httpd")
	if err != nil {
		t.Fatal(err)
	}
	if f.prefix != "httpd/" {
		t.Errorf("prefix = %q", f.prefix)
	}
	if len(objects) != 2 || objects[1].Size != 20 {
		t.Errorf("objects = %+v", objects)
	}
}

func TestGCSList_Error(t *testing.T) {
	f := &gcsFixture{iter: &mockGCSIterator{err: errors.New("boom")}}
	_, err := f.backend().List(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "gcs list") {
		t.Errorf("error = %v", err)
	}
	if f.prefix != "" {
		t.Errorf("empty prefix became %q", f.prefix)
	}
}

func TestNewGCSBackend_BadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/creds.json")
	_, err := newGCSBackend(context.Background(), "logs")
	if err == nil {
		t.Skip("GCS client creation succeeded despite bad credentials path")
	}
	if !strings.Contains(err.Error(), "create GCS client") {
		t.Errorf("error = %q, want to contain 'create GCS client'", err)
	}
}
