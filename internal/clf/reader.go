package clf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ReadLines reads r to EOF and returns its lines in order with "\n" and
// "\r\n" terminators removed. Each line must be valid UTF-8 without NUL
// bytes and no longer than maxLine bytes (DefaultMaxLineBytes if <= 0).
func ReadLines(r io.Reader, maxLine int) ([]string, error) {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	// room for the terminator; the scanner treats cap(buf) as a floor on the limit
	limit := maxLine + 2
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, limit)), limit)

	var lines []string
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if len(line) > maxLine {
			return nil, fmt.Errorf("line %d: %w", n, ErrLineTooLong)
		}
		if !utf8.ValidString(line) || strings.IndexByte(line, 0) >= 0 {
			return nil, fmt.Errorf("line %d: %w", n, ErrInvalidInput)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d: %w", n+1, ErrLineTooLong)
		}
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return lines, nil
}

// ClassifyReader reads and validates every line of r, then classifies them.
func (c *Classifier) ClassifyReader(r io.Reader) (*Result, error) {
	lines, err := ReadLines(r, c.maxLine)
	if err != nil {
		return nil, err
	}
	return c.Classify(lines)
}
