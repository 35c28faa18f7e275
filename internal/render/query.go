package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmespath/go-jmespath"

	"github.com/ppiankov/logsieve/internal/clf"
)

// Query evaluates a JMESPath expression against the JSON document of res,
// e.g. "entries[?status=='404'].resource" or "stats.rejects". Rejects are
// always visible to queries.
func Query(res *clf.Result, expr string) (any, error) {
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}

	// round-trip through JSON so the query sees the same field names as --format json
	data, err := json.Marshal(NewDocument(res, true))
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	out, err := compiled.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return out, nil
}

// WriteQuery evaluates expr and writes the result as indented JSON.
func WriteQuery(w io.Writer, res *clf.Result, expr string) error {
	out, err := Query(res, expr)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
