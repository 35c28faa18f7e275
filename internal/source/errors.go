package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
)

// Kind categorizes acquisition failures.
type Kind string

const (
	KindTooLarge    Kind = "too_large"
	KindPartial     Kind = "partial"
	KindNoFile      Kind = "no_file"
	KindUnreadable  Kind = "unreadable"
	KindUnsupported Kind = "unsupported"
)

// UploadError reports a failure to obtain the log text, before any line
// reaches the classifier.
type UploadError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UploadError) Unwrap() error { return e.Err }

func tooLarge(limit int64) *UploadError {
	return &UploadError{
		Kind: KindTooLarge,
		Msg:  fmt.Sprintf("the file size exceeds the maximum file size limit, file must be less than %s", FormatBytes(limit)),
	}
}

// AsUploadError maps err to an UploadError when it is one of the known
// acquisition failures. Other errors are returned as is with ok false.
func AsUploadError(err error) (*UploadError, bool) {
	if err == nil {
		return nil, false
	}
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue, true
	}
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return tooLarge(mbe.Limit), true
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, fs.ErrNotExist):
		return &UploadError{Kind: KindNoFile, Msg: "no file was uploaded", Err: err}, true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &UploadError{Kind: KindPartial, Msg: "the file was only partially uploaded", Err: err}, true
	case errors.Is(err, fs.ErrPermission):
		return &UploadError{Kind: KindUnreadable, Msg: "the file could not be read, verify permissions", Err: err}, true
	}
	return nil, false
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
