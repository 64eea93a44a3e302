package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/qaops/migratrack/internal/trend"
)

// markdownToHTML converts report markdown bodies. GFM is needed for the
// pipe tables the markdown rendering emits.
var markdownToHTML = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 860px; padding: 0 1rem; color: #1f2430; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d0d4dc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f4f6f8; }
code { background: #f4f6f8; padding: 0.1rem 0.3rem; border-radius: 3px; }
</style>
</head>
<body>
{{.Body}}
{{.Chart}}
</body>
</html>
`))

type pageData struct {
	Title string
	Body  template.HTML
	Chart template.HTML
}

// renderHTML writes the report as a standalone HTML page: the markdown body
// converted with goldmark plus the trend chart when there is enough history
// to draw one.
func (r *Renderer) renderHTML(w io.Writer, rep *Report) error {
	var md bytes.Buffer
	if err := r.renderMarkdown(&md, rep); err != nil {
		return err
	}

	chart := ""
	if len(rep.Trend.Recent) > 1 {
		var err error
		chart, err = trendChart(rep.Project, rep.Trend.Recent)
		if err != nil {
			return err
		}
	}

	return writePage(w, "Migration report: "+rep.Project, md.Bytes(), chart)
}

// renderTrendHTML is the trend-only HTML page.
func (r *Renderer) renderTrendHTML(w io.Writer, project string, tr trend.TrendResult, generatedAt time.Time) error {
	var md bytes.Buffer
	if err := r.renderTrendMarkdown(&md, project, tr, generatedAt); err != nil {
		return err
	}

	chart := ""
	if len(tr.Recent) > 1 {
		var err error
		chart, err = trendChart(project, tr.Recent)
		if err != nil {
			return err
		}
	}

	return writePage(w, "Adoption trend: "+project, md.Bytes(), chart)
}

func writePage(w io.Writer, title string, markdownBody []byte, chart string) error {
	var body bytes.Buffer
	if err := markdownToHTML.Convert(markdownBody, &body); err != nil {
		return fmt.Errorf("convert report markdown: %w", err)
	}

	return pageTemplate.Execute(w, pageData{
		Title: title,
		Body:  template.HTML(body.String()), // #nosec G203 -- body is rendered from our own markdown, not user input
		Chart: template.HTML(chart),         // #nosec G203 -- chart markup comes from go-echarts
	})
}
