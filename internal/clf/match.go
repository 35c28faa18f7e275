// Package clf parses Apache combined-format access log lines and sorts
// them into entries and rejects.
package clf

import "regexp"

// Pattern is the combined log grammar. It is unanchored: text before the
// address and between groups is tolerated.
const Pattern = `(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}).*\[(.*)\].*"(GET|POST|DELETE|PUT|HEAD)\s(.*)"\s(\d{3})\s(\d+|-)\s"(.*?)"\s"(.*?)"`

var lineRe = regexp.MustCompile(Pattern)

// Methods lists the request methods the grammar accepts.
var Methods = []string{"GET", "POST", "DELETE", "PUT", "HEAD"}

// Fields holds the raw captures of one matched line.
type Fields struct {
	IP       string
	RawDate  string
	Method   string
	Resource string
	Status   string
	Size     string
	Referer  string
	Agent    string
}

// Match applies the grammar to line. On a miss it returns zero Fields and false.
func Match(line string) (Fields, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Fields{}, false
	}
	return Fields{
		IP:       m[1],
		RawDate:  m[2],
		Method:   m[3],
		Resource: m[4],
		Status:   m[5],
		Size:     m[6],
		Referer:  m[7],
		Agent:    m[8],
	}, true
}
