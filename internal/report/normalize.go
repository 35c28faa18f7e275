package report

import "regexp"

// normalizers replace variable tokens so similar reject lines share a signature.
var normalizers = []struct {
	re   *regexp.Regexp
	repl string
}{
	// UUIDs: 8-4-4-4-12 hex
	{regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`), "<UUID>"},
	// bracketed access log timestamps: [10/Oct/2000:13:55:36 -0700]
	{regexp.MustCompile(`\[\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}\]`), "[<TS>]"},
	// ISO timestamps
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.\d]*Z?`), "<TS>"},
	// IPv4 addresses
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "<IP>"},
	// Hex strings: 0x1a2b3c
	{regexp.MustCompile(`0x[0-9a-fA-F]+`), "<HEX>"},
	// Numbers of 4+ digits; status codes survive
	{regexp.MustCompile(`\b\d{4,}\b`), "<N>"},
}

// Normalize replaces variable tokens (UUIDs, IPs, timestamps, long
// numbers) with placeholders.
func Normalize(line string) string {
	for _, n := range normalizers {
		line = n.re.ReplaceAllString(line, n.repl)
	}
	return line
}
