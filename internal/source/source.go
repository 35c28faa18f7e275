// Package source obtains access log text from files, stdin, object
// storage and pod logs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/cloud"
	"github.com/ppiankov/logsieve/internal/k8s"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// DefaultMaxBytes caps the decoded size of one log.
const DefaultMaxBytes int64 = 64 << 20

// Options controls acquisition.
type Options struct {
	// MaxBytes caps decoded bytes; DefaultMaxBytes when <= 0.
	MaxBytes int64
	// MaxLineBytes caps a single line; clf.DefaultMaxLineBytes when <= 0.
	MaxLineBytes int

	// Stdin is read for location "-". Defaults to os.Stdin.
	Stdin io.Reader

	// NewBackend opens object storage. Defaults to cloud.NewBackend.
	NewBackend func(ctx context.Context, scheme, bucket string) (cloud.Backend, error)

	// Kube serves k8s:// locations. When nil a client is built from Kubeconfig.
	Kube       *k8s.Client
	Kubeconfig string
	Logs       k8s.LogOptions
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes > 0 {
		return o.MaxBytes
	}
	return DefaultMaxBytes
}

// Open returns a reader over the decoded text at location: "-" for stdin,
// s3:// and gs:// objects, k8s:// pod logs, or a local path.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	raw, err := openRaw(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	return wrap(raw, opts)
}

// OpenReader decodes and size-limits an already open stream, such as an
// HTTP upload. Closing the result closes r if it is an io.Closer.
func OpenReader(r io.Reader, opts Options) (io.ReadCloser, error) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return wrap(rc, opts)
}

func wrap(raw io.ReadCloser, opts Options) (io.ReadCloser, error) {
	dec, _, err := Decompress(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &limitedReadCloser{r: dec, closers: []io.Closer{dec, raw}, left: opts.maxBytes(), limit: opts.maxBytes()}, nil
}

// Load opens location and returns its lines, validated as text.
func Load(ctx context.Context, location string, opts Options) ([]string, error) {
	rc, err := Open(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return ReadLines(rc, opts.MaxLineBytes)
}

// ReadLines reads r as text lines. Truncated compressed streams surface
// as KindPartial and size overruns as KindTooLarge.
func ReadLines(r io.Reader, maxLine int) ([]string, error) {
	lines, err := clf.ReadLines(r, maxLine)
	if err != nil {
		if errors.Is(err, clf.ErrInvalidInput) || errors.Is(err, clf.ErrLineTooLong) {
			return nil, err
		}
		if ue, ok := AsUploadError(err); ok {
			return nil, ue
		}
		return nil, &UploadError{Kind: KindUnreadable, Msg: "encountered an error reading the file", Err: err}
	}
	return lines, nil
}

func openRaw(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	switch {
	case location == "":
		return nil, &UploadError{Kind: KindNoFile, Msg: "no file was given"}
	case location == "-":
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	case cloud.IsURL(location):
		return openObject(ctx, location, opts)
	case k8s.IsTarget(location):
		return openPod(ctx, location, opts)
	}
	return openFile(location, opts.maxBytes())
}

func openFile(path string, limit int64) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		if ue, ok := AsUploadError(err); ok {
			return nil, ue
		}
		return nil, &UploadError{Kind: KindUnreadable, Msg: fmt.Sprintf("stat %s", path), Err: err}
	}
	if info.IsDir() {
		return nil, &UploadError{Kind: KindUnsupported, Msg: fmt.Sprintf("%s is a directory", path)}
	}
	// compressed files are checked again after decoding
	if info.Size() > limit {
		return nil, tooLarge(limit)
	}
	f, err := os.Open(path)
	if err != nil {
		if ue, ok := AsUploadError(err); ok {
			return nil, ue
		}
		return nil, &UploadError{Kind: KindUnreadable, Msg: fmt.Sprintf("open %s", path), Err: err}
	}
	return f, nil
}

func openObject(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	loc, err := cloud.ParseURL(location)
	if err != nil {
		return nil, &UploadError{Kind: KindUnsupported, Msg: "invalid object URL", Err: err}
	}
	if loc.Key == "" || loc.Key[len(loc.Key)-1] == '/' {
		return nil, &UploadError{Kind: KindUnsupported, Msg: fmt.Sprintf("%s names a prefix, not an object", location)}
	}
	newBackend := opts.NewBackend
	if newBackend == nil {
		newBackend = cloud.NewBackend
	}
	b, err := newBackend(ctx, loc.Scheme, loc.Bucket)
	if err != nil {
		return nil, &UploadError{Kind: KindUnreadable, Msg: "connect to object storage", Err: err}
	}
	rc, size, err := b.Get(ctx, loc.Key)
	if err != nil {
		if errors.Is(err, cloud.ErrNotFound) {
			return nil, &UploadError{Kind: KindNoFile, Msg: fmt.Sprintf("%s does not exist", location), Err: err}
		}
		return nil, &UploadError{Kind: KindUnreadable, Msg: "download " + location, Err: err}
	}
	if size > opts.maxBytes() {
		_ = rc.Close()
		return nil, tooLarge(opts.maxBytes())
	}
	return rc, nil
}

func openPod(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	target, err := k8s.ParseTarget(location)
	if err != nil {
		return nil, &UploadError{Kind: KindUnsupported, Msg: "invalid pod location", Err: err}
	}
	client := opts.Kube
	if client == nil {
		client, err = k8s.NewClient(opts.Kubeconfig, target.Namespace)
		if err != nil {
			return nil, &UploadError{Kind: KindUnreadable, Msg: "connect to cluster", Err: err}
		}
	}
	rc, err := k8s.PodLogs(ctx, client, target, opts.Logs)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &UploadError{Kind: KindNoFile, Msg: target.String() + " does not exist", Err: err}
		}
		return nil, &UploadError{Kind: KindUnreadable, Msg: "read logs of " + target.String(), Err: err}
	}
	return rc, nil
}

// limitedReadCloser fails with KindTooLarge once more than limit bytes
// have been read.
type limitedReadCloser struct {
	r       io.Reader
	closers []io.Closer
	left    int64
	limit   int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, tooLarge(l.limit)
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n + int(l.left), tooLarge(l.limit)
	}
	return n, err
}

func (l *limitedReadCloser) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
