package clf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports input that is not text: invalid UTF-8 or NUL bytes.
	ErrInvalidInput = errors.New("input is not valid text")
	// ErrLineTooLong reports a line over the reader's line limit.
	ErrLineTooLong = errors.New("line exceeds maximum length")
)

// DateError reports an unparseable timestamp under DateStrict.
type DateError struct {
	Line int
	Raw  string
	Err  error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("line %d: invalid date %q: %v", e.Line, e.Raw, e.Err)
}

func (e *DateError) Unwrap() error { return e.Err }
