package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

const htmlDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: system-ui, -apple-system, sans-serif; color: #1d2733; max-width: 860px; margin: 2rem auto; padding: 0 1rem; }
  h1 { font-size: 1.5rem; border-bottom: 3px solid #0a6e8a; padding-bottom: .5rem; }
  h2 { font-size: 1.1rem; color: #0a6e8a; margin-top: 2rem; }
  .meta { color: #5a6673; font-size: .9rem; }
  .meta td { padding: .1rem .8rem .1rem 0; }
  .banner { background: #fcf3d7; border: 1px solid #d8b44a; padding: .6rem .8rem; border-radius: 4px; margin: 1rem 0; }
  .badge { display: inline-block; background: #eef2f5; border-radius: 3px; padding: .1rem .5rem; font-size: .8rem; color: #5a6673; }
  .chart { margin: 1rem 0; }
  .chart h3 { font-size: .9rem; text-transform: uppercase; letter-spacing: .05em; color: #5a6673; }
  .row { display: flex; align-items: center; margin: .2rem 0; font-size: .9rem; }
  .row .label { width: 9rem; }
  .row .bar { background: #0a6e8a; height: .9rem; border-radius: 2px; }
  .row .value { margin-left: .5rem; color: #5a6673; }
  .article { margin: .8rem 0; }
  .article .title { font-weight: 600; }
  .article .meta { font-size: .85rem; }
  a { color: #0a6e8a; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table class="meta">
<tr><td>Client</td><td>{{.ClientName}} ({{.ClientID}})</td></tr>
<tr><td>Window</td><td>{{.Window}}</td></tr>
<tr><td>Generated</td><td>{{.Generated}}</td></tr>
<tr><td>Report ID</td><td>{{.ReportID}}</td></tr>
</table>
{{if .Partial}}<div class="banner">Partial report: {{.PartialReason}}</div>{{end}}

<h2>Executive Summary</h2>
{{if .Summary.Degraded}}<span class="badge">automated fallback summary</span>
{{else if .Summary.ModelUsed}}<span class="badge">model: {{.Summary.ModelUsed}}</span>{{end}}
<p>{{.Summary.Paragraph}}</p>
{{if .Summary.Bullets}}<ul>
{{range .Summary.Bullets}}<li>{{.}}</li>
{{end}}</ul>{{end}}

<h2>Trends</h2>
<p>{{.SentimentLine}}</p>
{{range .Charts}}<div class="chart">
<h3>{{.Title}}</h3>
{{range .Rows}}<div class="row"><span class="label">{{.Label}}</span><div class="bar" style="width: {{.Percent}}%"></div><span class="value">{{.Value}}</span></div>
{{end}}</div>
{{end}}

<h2>Articles ({{len .Articles}})</h2>
{{range .Articles}}<div class="article">
<div class="title">{{.Index}}. <a href="{{.URL}}">{{.ArticleTitle}}</a></div>
<div class="meta">{{.Meta}}</div>
</div>
{{end}}
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlDocument))

type htmlChartRow struct {
	Label   string
	Value   int
	Percent int
}

type htmlChart struct {
	Title string
	Rows  []htmlChartRow
}

type htmlArticle struct {
	Index        int
	ArticleTitle string
	URL          string
	Meta         string
}

type htmlView struct {
	Title         string
	ClientName    string
	ClientID      string
	Window        string
	Generated     string
	ReportID      string
	Partial       bool
	PartialReason string
	Summary       domain.SummarySection
	SentimentLine string
	Charts        []htmlChart
	Articles      []htmlArticle
}

// renderHTML produces the styled document artifact.
func renderHTML(rep domain.Report) ([]byte, error) {
	s := rep.Trends.Sentiment
	view := htmlView{
		Title:         fmt.Sprintf("%s business intelligence brief", capitalize(string(rep.Cadence))),
		ClientName:    rep.ClientName,
		ClientID:      rep.ClientID,
		Window:        fmt.Sprintf("%s to %s", rep.From.Format(timeLayout), rep.To.Format(timeLayout)),
		Generated:     rep.GeneratedAt.Format(timeLayout),
		ReportID:      rep.ID,
		Partial:       rep.Partial,
		PartialReason: rep.PartialReason,
		Summary:       rep.Summary,
		SentimentLine: fmt.Sprintf("Sentiment mean %+.2f (%d positive, %d negative, %d neutral)",
			s.Mean, s.Positive, s.Negative, s.Neutral),
	}

	for _, chart := range rep.Trends.Charts {
		rows := chartRows(rep.Trends, chart)
		if len(rows) == 0 {
			continue
		}
		maxValue := 0
		for _, r := range rows {
			if r.value > maxValue {
				maxValue = r.value
			}
		}
		if maxValue == 0 {
			maxValue = 1
		}
		hc := htmlChart{Title: chartTitle(chart)}
		for _, r := range rows {
			pct := r.value * 100 / maxValue
			if pct < 4 {
				pct = 4
			}
			hc.Rows = append(hc.Rows, htmlChartRow{Label: r.label, Value: r.value, Percent: pct})
		}
		view.Charts = append(view.Charts, hc)
	}

	for i, ref := range rep.Articles {
		meta := []string{
			ref.SourceID,
			ref.PublishedAt.Format(dateLayout),
			fmt.Sprintf("relevance %.2f", ref.Score),
		}
		if ref.Sentiment != "" {
			meta = append(meta, ref.Sentiment)
		}
		if len(ref.Topics) > 0 {
			meta = append(meta, strings.Join(ref.Topics, "/"))
		}
		view.Articles = append(view.Articles, htmlArticle{
			Index:        i + 1,
			ArticleTitle: ref.Title,
			URL:          ref.URL,
			Meta:         strings.Join(meta, " | "),
		})
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
