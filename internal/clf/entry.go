package clf

import (
	"strconv"
	"strings"
)

// Path returns the request target without query string or protocol,
// e.g. "/search" for "/search?q=x HTTP/1.1".
func (e Entry) Path() string {
	target, _, _ := strings.Cut(e.Resource, " ")
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return target
}

// Protocol returns the trailing protocol token of the request, or "".
func (e Entry) Protocol() string {
	i := strings.LastIndexByte(e.Resource, ' ')
	if i < 0 {
		return ""
	}
	p := e.Resource[i+1:]
	if !strings.HasPrefix(p, "HTTP/") {
		return ""
	}
	return p
}

// StatusClass returns "1xx" through "5xx", or "other".
func (e Entry) StatusClass() string {
	if len(e.Status) == 3 && e.Status[0] >= '1' && e.Status[0] <= '5' {
		return e.Status[:1] + "xx"
	}
	return "other"
}

// Bytes returns the response size; "-" counts as zero.
func (e Entry) Bytes() int64 {
	n, err := strconv.ParseInt(e.Size, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
