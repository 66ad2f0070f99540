// Package review renders an anonymized document as a standalone HTML page
// for a human check: placeholders are highlighted and the mapping record is
// listed as a table.
package review

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
)

// placeholderRE matches "<TYPE_N>".
var placeholderRE = regexp.MustCompile(`<([A-Z][A-Z0-9_]*)_([0-9]+)>`)

// Private-use runes survive Markdown rendering untouched, so placeholders are
// wrapped in them before rendering and turned into marks afterwards.
const (
	openMark  = "\uE000"
	closeMark = "\uE001"
)

var markedRE = regexp.MustCompile(openMark + `([A-Z][A-Z0-9_]*)_([0-9]+)` + closeMark)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Input is what a report is built from.
type Input struct {
	Title    string
	Text     string // anonymized text
	Markdown bool   // render Text as Markdown; otherwise as preformatted text
	Mapping  *anonymizer.MappingRecord
	Excluded *anonymizer.ExcludedRecord // optional

	// HideOriginals leaves original values out of the mapping table.
	HideOriginals bool
}

// Row is one line of the mapping table.
type Row struct {
	Placeholder string
	EntityType  string
	Text        string
	Score       float64
	Occurrences int
}

// Summary counts what the report shows.
type Summary struct {
	Placeholders int
	Occurrences  int
	Unknown      int // placeholders in the text with no mapping entry
	Excluded     int
	ByType       map[string]int
}

type page struct {
	Title         string
	Document      string
	Language      string
	MinConfidence float64
	Body          template.HTML
	Rows          []Row
	Excluded      []anonymizer.ExcludedEntity
	HideOriginals bool
	Summary       Summary
}

// Render writes the HTML report for in to w.
func Render(w io.Writer, in Input) (Summary, error) {
	mappings := map[string]anonymizer.MappingEntry{}
	p := page{Title: in.Title, HideOriginals: in.HideOriginals}
	if in.Mapping != nil {
		mappings = in.Mapping.Mappings
		p.Document = in.Mapping.Document
		p.Language = in.Mapping.Language
		p.MinConfidence = in.Mapping.MinConfidence
	}
	if p.Title == "" {
		p.Title = "Anonymization review"
		if p.Document != "" {
			p.Title += ": " + p.Document
		}
	}

	body, err := renderBody(in.Text, in.Markdown)
	if err != nil {
		return Summary{}, err
	}
	p.Body = template.HTML(highlight(body, mappings))

	counts := countPlaceholders(in.Text)
	p.Rows = buildRows(mappings, counts)
	p.Summary = summarize(p.Rows, counts, mappings)
	if in.Excluded != nil && !in.HideOriginals {
		p.Excluded = in.Excluded.Entities
	}
	if in.Excluded != nil {
		p.Summary.Excluded = len(in.Excluded.Entities)
	}

	if err := pageTmpl.Execute(w, p); err != nil {
		return Summary{}, fmt.Errorf("rendering review page: %w", err)
	}
	return p.Summary, nil
}

// renderBody turns the text into sanitized HTML with placeholders wrapped in
// private-use markers.
func renderBody(text string, markdown bool) (string, error) {
	marked := placeholderRE.ReplaceAllString(text, openMark+"${1}_${2}"+closeMark)
	if !markdown {
		return "<pre>" + html.EscapeString(marked) + "</pre>", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(marked), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return bluemonday.UGCPolicy().Sanitize(buf.String()), nil
}

func highlight(body string, mappings map[string]anonymizer.MappingEntry) string {
	return markedRE.ReplaceAllStringFunc(body, func(m string) string {
		sub := markedRE.FindStringSubmatch(m)
		typ, n := sub[1], sub[2]
		placeholder := "<" + typ + "_" + n + ">"
		class := "ph ph-" + strings.ToLower(typ)
		if _, ok := mappings[placeholder]; !ok {
			class += " ph-unknown"
		}
		return fmt.Sprintf(`<mark class="%s" title="%s">%s</mark>`,
			class, typ, html.EscapeString(placeholder))
	})
}

func countPlaceholders(text string) map[string]int {
	counts := map[string]int{}
	for _, m := range placeholderRE.FindAllString(text, -1) {
		counts[m]++
	}
	return counts
}

func buildRows(mappings map[string]anonymizer.MappingEntry, counts map[string]int) []Row {
	rows := make([]Row, 0, len(mappings))
	for ph, e := range mappings {
		rows = append(rows, Row{
			Placeholder: ph,
			EntityType:  e.EntityType,
			Text:        e.Text,
			Score:       e.Score,
			Occurrences: counts[ph],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, ni := splitPlaceholder(rows[i].Placeholder)
		tj, nj := splitPlaceholder(rows[j].Placeholder)
		if ti != tj {
			return ti < tj
		}
		return ni < nj
	})
	return rows
}

func splitPlaceholder(ph string) (string, int) {
	m := placeholderRE.FindStringSubmatch(ph)
	if m == nil {
		return ph, 0
	}
	n, _ := strconv.Atoi(m[2])
	return m[1], n
}

func summarize(rows []Row, counts map[string]int, mappings map[string]anonymizer.MappingEntry) Summary {
	s := Summary{Placeholders: len(rows), ByType: map[string]int{}}
	for _, r := range rows {
		s.ByType[r.EntityType]++
	}
	for ph, n := range counts {
		s.Occurrences += n
		if _, ok := mappings[ph]; !ok {
			s.Unknown++
		}
	}
	return s
}

var pageTmpl = template.Must(template.New("review").Funcs(template.FuncMap{
	"score": func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
}).Parse(`<!DOCTYPE html>
<html lang="{{if .Language}}{{.Language}}{{else}}en{{end}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem;color:#222}
pre{white-space:pre-wrap}
.ph{background:#ffe58a;border-radius:3px;padding:0 2px;font-family:monospace}
.ph-unknown{background:#f8b4b4}
table{border-collapse:collapse;width:100%;margin-top:1rem}
th,td{border:1px solid #ccc;padding:4px 8px;text-align:left}
.meta{color:#666}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">{{if .Language}}Language: {{.Language}} · Threshold: {{score .MinConfidence}} · {{end}}{{.Summary.Placeholders}} placeholders, {{.Summary.Occurrences}} occurrences{{if .Summary.Unknown}}, {{.Summary.Unknown}} unknown{{end}}</p>
<section class="document">
{{.Body}}
</section>
<h2>Mapping</h2>
<table>
<thead><tr><th>Placeholder</th><th>Type</th>{{if not .HideOriginals}}<th>Original</th>{{end}}<th>Score</th><th>Occurrences</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td><code>{{.Placeholder}}</code></td><td>{{.EntityType}}</td>{{if not $.HideOriginals}}<td>{{.Text}}</td>{{end}}<td>{{score .Score}}</td><td>{{.Occurrences}}</td></tr>
{{end}}</tbody>
</table>
{{if .Excluded}}<h2>Not anonymized</h2>
<table>
<thead><tr><th>Text</th><th>Type</th><th>Score</th><th>Offsets</th></tr></thead>
<tbody>
{{range .Excluded}}<tr><td>{{.Text}}</td><td>{{.EntityType}}</td><td>{{score .Score}}</td><td>{{.Start}}–{{.End}}</td></tr>
{{end}}</tbody>
</table>
{{end}}</body>
</html>
`))
