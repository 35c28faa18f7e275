package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/cloud"
	"github.com/ppiankov/logsieve/internal/source"
)

// Exit codes for agent retry logic.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitUsage      = 2
	ExitNotFound   = 3
	ExitPermission = 4
	ExitNetwork    = 5
	ExitFindings   = 6
	// ExitInvalidInput means the log itself could not be classified:
	// binary data, an overlong line, or a bad date under the strict policy.
	ExitInvalidInput = 7
)

// CLIError is a structured error with a category for agent consumption.
type CLIError struct {
	Code    int    `json:"exit_code"`
	Type    string `json:"error"`
	Message string `json:"message"`
	Recover bool   `json:"recoverable"`
}

func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns nil; CLIError is a leaf error.
func (e *CLIError) Unwrap() error { return nil }

// NewUsageError creates an error for invalid arguments.
func NewUsageError(msg string) *CLIError {
	return &CLIError{Code: ExitUsage, Type: "invalid_args", Message: msg}
}

// NewNotFoundError creates an error for missing resources.
func NewNotFoundError(msg string) *CLIError {
	return &CLIError{Code: ExitNotFound, Type: "not_found", Message: msg}
}

// NewPermissionError creates an error for access denied.
func NewPermissionError(msg string) *CLIError {
	return &CLIError{Code: ExitPermission, Type: "permission", Message: msg}
}

// NewNetworkError creates a recoverable network error.
func NewNetworkError(msg string) *CLIError {
	return &CLIError{Code: ExitNetwork, Type: "network", Message: msg, Recover: true}
}

// NewFindingsError reports that the run succeeded but found what the
// caller asked to fail on, such as rejected lines.
func NewFindingsError(msg string) *CLIError {
	return &CLIError{Code: ExitFindings, Type: "findings", Message: msg}
}

// NewInvalidInputError creates an error for logs that cannot be classified.
func NewInvalidInputError(msg string) *CLIError {
	return &CLIError{Code: ExitInvalidInput, Type: "invalid_input", Message: msg}
}

// NewInternalError creates an error for unexpected failures.
func NewInternalError(msg string) *CLIError {
	return &CLIError{Code: ExitInternal, Type: "internal", Message: msg}
}

// FromError categorizes err. CLIErrors pass through; acquisition and
// classification failures get their own codes; anything else is internal.
func FromError(err error) *CLIError {
	if err == nil {
		return nil
	}
	var ce *CLIError
	if errors.As(err, &ce) {
		if ce == err {
			return ce
		}
		// keep the outer context in the message
		return &CLIError{Code: ce.Code, Type: ce.Type, Message: err.Error(), Recover: ce.Recover}
	}

	msg := err.Error()
	var de *clf.DateError
	switch {
	case errors.As(err, &de), errors.Is(err, clf.ErrInvalidInput), errors.Is(err, clf.ErrLineTooLong):
		return NewInvalidInputError(msg)
	case errors.Is(err, cloud.ErrNotFound):
		return NewNotFoundError(msg)
	case errors.Is(err, context.DeadlineExceeded):
		return NewNetworkError(msg)
	}

	if ue, ok := source.AsUploadError(err); ok {
		switch ue.Kind {
		case source.KindNoFile:
			return NewNotFoundError(msg)
		case source.KindUnreadable:
			if errors.Is(err, fs.ErrPermission) {
				return NewPermissionError(msg)
			}
			return NewInternalError(msg)
		case source.KindTooLarge, source.KindUnsupported:
			return NewUsageError(msg)
		case source.KindPartial:
			return NewInvalidInputError(msg)
		}
	}
	return NewInternalError(msg)
}

// ExitCode extracts the exit code from an error.
// Returns ExitOK (0) for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return FromError(err).Code
}

// FormatError writes the error to w. In JSON mode, it writes structured JSON.
// In text mode, it writes "error: <message>".
func FormatError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		data, _ := json.Marshal(FromError(err))
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	_, _ = fmt.Fprintf(w, "error: %v\n", err)
}
