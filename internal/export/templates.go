package export

const markdownSource = `# ClosePath call report: {{.CallID}}

- Mode: {{.Mode}}
- Started: {{stamp .StartedAt}}
{{- if .EndedAt}}
- Ended: {{stamp .EndedAt}}
{{- end}}
- Generated: {{stamp .GeneratedAt}}
- Utterances: {{.UtteranceSize}}
{{- if .HasScorecard}}
- Scorecard source: {{.Source}}
{{- end}}

## MEDDPICC scorecard
{{if .HasScorecard}}
| Area | Status | Confidence | Evidence | Missing |
|---|---|---|---|---|
{{- range .Areas}}
| {{.Title}} | {{.Status}} | {{.Confidence}}% | {{join .Evidence "; "}} | {{join .MissingInfo "; "}} |
{{- end}}

## Intent confidence: {{.Level}}
{{range .Reasoning}}
- {{.}}
{{- end}}
{{- if .RiskFlags}}

**Deal risks**
{{range .RiskFlags}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Action}}

## Recommended next action: {{.Action}}

{{.Rationale}}
{{range .NextSteps}}
- {{.}}
{{- end}}
{{- end}}

## Suggested questions
{{range .Questions}}
- [{{.Priority}}] ({{.Area.Title}}) {{.Question}}
{{- if .WhyNow}} _{{.WhyNow}}_{{end}}
{{- else}}
_None._
{{- end}}
{{else}}
_No analysis yet._
{{end}}
## Asked questions
{{range .Asked}}
- {{.}}
{{- else}}
_None._
{{- end}}

## Transcript
{{range .Transcript}}
- ` + "`{{.At}}`" + ` **{{.Speaker}}:** {{.Text}}
{{- else}}
_Empty._
{{- end}}
`

const htmlSource = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ClosePath call report: {{.CallID}}</title>
<style>
body{font-family:sans-serif;max-width:960px;margin:2em auto;padding:0 1em}
table{border-collapse:collapse;width:100%}
td,th{border:1px solid #ccc;padding:.4em;text-align:left;vertical-align:top}
</style>
</head>
<body>
<h1>ClosePath call report: {{.CallID}}</h1>
<ul>
<li>Mode: {{.Mode}}</li>
<li>Started: {{stamp .StartedAt}}</li>
{{if .EndedAt}}<li>Ended: {{stamp .EndedAt}}</li>{{end}}
<li>Generated: {{stamp .GeneratedAt}}</li>
<li>Utterances: {{.UtteranceSize}}</li>
{{if .HasScorecard}}<li>Scorecard source: {{.Source}}</li>{{end}}
</ul>

<h2>MEDDPICC scorecard</h2>
{{if .HasScorecard}}
<table>
<tr><th>Area</th><th>Status</th><th>Confidence</th><th>Evidence</th><th>Missing</th></tr>
{{range .Areas}}<tr><td>{{.Title}}</td><td>{{.Status}}</td><td>{{.Confidence}}%</td><td>{{join .Evidence "; "}}</td><td>{{join .MissingInfo "; "}}</td></tr>
{{end}}</table>

<h2>Intent confidence: {{.Level}}</h2>
<ul>{{range .Reasoning}}<li>{{.}}</li>{{end}}</ul>
{{if .RiskFlags}}<h3>Deal risks</h3>
<ul>{{range .RiskFlags}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Action}}<h2>Recommended next action: {{.Action}}</h2>
<p>{{.Rationale}}</p>
<ul>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ul>{{end}}

<h2>Suggested questions</h2>
<ul>{{range .Questions}}<li>[{{.Priority}}] ({{.Area.Title}}) {{.Question}}{{if .WhyNow}} <em>{{.WhyNow}}</em>{{end}}</li>{{else}}<li><em>None.</em></li>{{end}}</ul>
{{else}}
<p><em>No analysis yet.</em></p>
{{end}}

<h2>Asked questions</h2>
<ul>{{range .Asked}}<li>{{.}}</li>{{else}}<li><em>None.</em></li>{{end}}</ul>

<h2>Transcript</h2>
<ol>{{range .Transcript}}<li><code>{{.At}}</code> <strong>{{.Speaker}}:</strong> {{.Text}}</li>{{else}}<li><em>Empty.</em></li>{{end}}</ol>
</body>
</html>
`
