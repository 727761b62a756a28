// Package export renders a call's scorecard and transcript as a Markdown or
// HTML report.
package export

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/MrWong99/closepath/internal/session"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/types"
)

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat validates a format name. An empty name selects Markdown.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Filename returns the download name for a call's report.
func Filename(callID string, f Format) string {
	return fmt.Sprintf("closepath-%s.%s", callID, f)
}

// AreaRow is one line of the scorecard table.
type AreaRow struct {
	Title       string
	Status      string
	Confidence  int
	Evidence    []string
	MissingInfo []string
}

// Line is one rendered transcript line.
type Line struct {
	At      string
	Speaker string
	Text    string
}

// Report is the data both templates render.
type Report struct {
	CallID      string
	Mode        string
	StartedAt   time.Time
	EndedAt     *time.Time
	GeneratedAt time.Time

	HasScorecard  bool
	Source        string
	Areas         []AreaRow
	Questions     []meddpicc.SuggestedQuestion
	Asked         []string
	Level         string
	Reasoning     []string
	RiskFlags     []string
	Action        string
	Rationale     string
	NextSteps     []string
	Transcript    []Line
	UtteranceSize int
}

// NewReport builds a report from a call snapshot.
func NewReport(s session.Snapshot, now time.Time) Report {
	r := Report{
		CallID:        s.CallID,
		Mode:          string(s.Mode),
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
		GeneratedAt:   now,
		Asked:         s.Asked,
		UtteranceSize: len(s.Transcript),
	}
	for _, u := range s.Transcript {
		r.Transcript = append(r.Transcript, line(u))
	}
	sc := s.Scorecard
	if sc == nil {
		return r
	}
	r.HasScorecard = true
	r.Source = sourceLabel(sc.Source)
	for _, area := range meddpicc.Areas {
		as := sc.MEDDPICC[area]
		r.Areas = append(r.Areas, AreaRow{
			Title:       area.Title(),
			Status:      as.Status.Label(),
			Confidence:  int(as.Confidence*100 + 0.5),
			Evidence:    as.Evidence,
			MissingInfo: as.MissingInfo,
		})
	}
	r.Questions = sc.SuggestedQuestions
	r.Level = strings.ToUpper(string(sc.IntentConfidence.Level))
	r.Reasoning = sc.IntentConfidence.Reasoning
	r.RiskFlags = sc.IntentConfidence.DealRiskFlags
	r.Action = actionLabel(sc.RecommendedNextAction.Action)
	r.Rationale = sc.RecommendedNextAction.Rationale
	r.NextSteps = sc.RecommendedNextAction.ImmediateNextSteps
	return r
}

func line(u types.Utterance) Line {
	d := u.Timestamp.Round(time.Second)
	return Line{
		At:      fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60),
		Speaker: u.Speaker,
		Text:    u.Text,
	}
}

func sourceLabel(s meddpicc.Source) string {
	switch s {
	case meddpicc.SourceDemo:
		return "demo payload (no model configured)"
	case meddpicc.SourceHeuristic:
		return "local heuristic (analysis request failed)"
	case meddpicc.SourceModel:
		return "model analysis"
	default:
		return "unknown"
	}
}

func actionLabel(a meddpicc.Action) string {
	switch a {
	case meddpicc.Proceed:
		return "Proceed"
	case meddpicc.Requalify:
		return "Re-qualify"
	case meddpicc.Disengage:
		return "Disengage"
	default:
		return ""
	}
}

var funcs = template.FuncMap{
	"stamp": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"join":  strings.Join,
}

var (
	markdownTmpl = template.Must(template.New("md").Funcs(funcs).Parse(markdownSource))
	htmlTmpl     = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap(funcs)).Parse(htmlSource))
)

// Markdown renders r as a Markdown document.
func Markdown(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("export: render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// HTML renders r as a standalone HTML page.
func HTML(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("export: render html: %w", err)
	}
	return buf.Bytes(), nil
}

// Render dispatches on f.
func Render(r Report, f Format) ([]byte, error) {
	if f == FormatHTML {
		return HTML(r)
	}
	return Markdown(r)
}
