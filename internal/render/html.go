package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/report"
)

type htmlEntry struct {
	Line     int
	IP       string
	Date     string
	Method   string
	Resource string
	Status   string
	Class    string
	Size     string
	Referer  string
	Agent    string
}

type htmlReject struct {
	Line int
	Text string
}

// htmlData holds pre-formatted values for the page template.
type htmlData struct {
	Title        string
	Lines        string
	Entries      string
	Rejects      string
	Blank        string
	InvalidDates string
	RejectPct    string
	Rows         []htmlEntry
	ShowRejects  bool
	RejectRows   []htmlReject
}

func writeHTML(w io.Writer, res *clf.Result, opts Options) error {
	return pageTmpl.Execute(w, buildHTMLData(res, opts))
}

func buildHTMLData(res *clf.Result, opts Options) htmlData {
	d := htmlData{
		Title:        opts.Title,
		Lines:        report.FormatCount(res.Lines),
		Entries:      report.FormatCount(len(res.Entries)),
		Rejects:      report.FormatCount(len(res.Rejects)),
		Blank:        report.FormatCount(res.Blank),
		InvalidDates: report.FormatCount(res.InvalidDates()),
		RejectPct:    "0.0%",
		ShowRejects:  opts.ShowRejects,
	}
	if d.Title == "" {
		d.Title = "logsieve"
	}
	if total := res.Total(); total > 0 {
		d.RejectPct = fmt.Sprintf("%.1f%%", float64(len(res.Rejects))/float64(total)*100)
	}

	d.Rows = make([]htmlEntry, len(res.Entries))
	for i, e := range res.Entries {
		d.Rows[i] = htmlEntry{
			Line:     e.Line,
			IP:       e.IP,
			Date:     e.Date,
			Method:   e.Method,
			Resource: e.Resource,
			Status:   e.Status,
			Class:    "s" + e.StatusClass()[:1],
			Size:     e.Size,
			Referer:  e.Referer,
			Agent:    e.Agent,
		}
	}
	if opts.ShowRejects {
		d.RejectRows = make([]htmlReject, len(res.Rejects))
		for i, r := range res.Rejects {
			d.RejectRows[i] = htmlReject{Line: r.Line, Text: r.Text}
		}
	}
	return d
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; color: #1a1a1a; background: #fafafa; padding: 2rem; line-height: 1.5; }
  h1 { font-size: 1.4rem; margin-bottom: 0.5rem; }
  h2 { font-size: 1.1rem; margin: 1.5rem 0 0.5rem; }
  .stats { display: flex; gap: 1.5rem; margin-bottom: 1rem; color: #555; }
  .stats b { color: #1a1a1a; }
  input#filter { width: 100%; max-width: 480px; padding: 0.4rem 0.6rem; border: 1px solid #ccc; border-radius: 4px; margin-bottom: 1rem; }
  table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
  th { text-align: left; border-bottom: 2px solid #ddd; padding: 0.3rem 0.5rem; position: sticky; top: 0; background: #fafafa; }
  td { border-bottom: 1px solid #eee; padding: 0.25rem 0.5rem; vertical-align: top; }
  td.res, td.agent { word-break: break-all; }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .s2 { color: #1a7f37; } .s3 { color: #0969da; } .s4 { color: #bc4c00; } .s5 { color: #cf222e; font-weight: 600; }
  pre { font-size: 0.8rem; white-space: pre-wrap; word-break: break-all; }
  .rejects td { color: #666; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="stats">
  <span><b>{{.Lines}}</b> lines</span>
  <span><b>{{.Entries}}</b> entries</span>
  <span><b>{{.Rejects}}</b> rejects ({{.RejectPct}})</span>
  <span><b>{{.Blank}}</b> blank</span>
  <span><b>{{.InvalidDates}}</b> invalid dates</span>
</div>
<input id="filter" type="search" placeholder="filter rows..." autofocus>
<table id="entries">
<thead><tr><th>Line</th><th>IP</th><th>Date</th><th>Method</th><th>Status</th><th>Size</th><th>Resource</th><th>Referer</th><th>Agent</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td class="num">{{.Line}}</td><td>{{.IP}}</td><td>{{.Date}}</td><td>{{.Method}}</td><td class="{{.Class}}">{{.Status}}</td><td class="num">{{.Size}}</td><td class="res">{{.Resource}}</td><td>{{.Referer}}</td><td class="agent">{{.Agent}}</td></tr>
{{- end}}
</tbody>
</table>
{{- if .ShowRejects}}
<h2>Rejects</h2>
<table class="rejects">
<thead><tr><th>Line</th><th>Text</th></tr></thead>
<tbody>
{{- range .RejectRows}}
<tr><td class="num">{{.Line}}</td><td><pre>{{.Text}}</pre></td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
<script>
document.getElementById("filter").addEventListener("input", function (ev) {
  var q = ev.target.value.toLowerCase();
  document.querySelectorAll("#entries tbody tr").forEach(function (tr) {
    tr.style.display = tr.textContent.toLowerCase().indexOf(q) === -1 ? "none" : "";
  });
});
</script>
</body>
</html>
`))
