// Package chart renders assembled rank series as standalone HTML line
// charts, one file per keyword set. The plotting library is loaded from a
// CDN; rank 1 is drawn at the top.
package chart

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
)

const plotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var page = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Script}}"></script>
</head>
<body>
<div id="chart" style="width:100%;height:90vh;"></div>
<script>
Plotly.newPlot("chart", {{.Traces}}, {
  title: {text: {{.Title}}},
  xaxis: {title: {text: "Date"}, tickformat: "%Y-%m-%d", dtick: 86400000},
  yaxis: {title: {text: "Rank"}, autorange: "reversed", dtick: 5}
});
</script>
</body>
</html>
`))

type trace struct {
	X    []string       `json:"x"`
	Y    []*int         `json:"y"`
	Name string         `json:"name"`
	Mode string         `json:"mode"`
	Line map[string]any `json:"line,omitempty"`
}

type pageData struct {
	Title  string
	Script string
	Traces []trace
}

// Render writes one chart for s to w.
func Render(w io.Writer, label string, s *series.Series) error {
	x := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		x[i] = d.Format("2006-01-02 15:04:05")
	}
	data := pageData{Title: label, Script: plotlyCDN, Traces: make([]trace, 0, len(s.Order))}
	for _, doc := range s.Order {
		tr := trace{X: x, Y: s.Ranks[doc], Name: doc, Mode: "lines+markers"}
		if s.Mine[doc] {
			tr.Line = map[string]any{"width": 4}
		}
		data.Traces = append(data.Traces, tr)
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("rendering chart %s: %w", label, err)
	}
	return nil
}

// WriteAll renders every keyword set in result into
// <outDir>/YYYY-MM-DD/HHMMSS/<label>.html and returns the written paths.
func WriteAll(result series.Result, outDir string, at time.Time) ([]string, error) {
	dir := filepath.Join(outDir, at.Format("2006-01-02"), at.Format("150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chart directory: %w", err)
	}
	var paths []string
	for _, label := range result.Labels() {
		path := filepath.Join(dir, FileName(label))
		if err := writeFile(path, label, result[label]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path, label string, s *series.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := Render(f, label, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var fileNameReplacer = strings.NewReplacer("\t", "_", "/", "_", "\\", "_", ":", "_")

// FileName turns a keyword label into a file name.
func FileName(label string) string {
	return fileNameReplacer.Replace(label) + ".html"
}
