package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

// Pages holds one parsed template per flow
type Pages struct {
	pages map[questionnaire.Kind]*template.Template
}

// LoadPages parses layout.html together with each flow's page from fsys
func LoadPages(fsys fs.FS) (*Pages, error) {
	p := &Pages{pages: make(map[questionnaire.Kind]*template.Template)}
	for _, kind := range kinds {
		tmpl, err := template.New(string(kind)+".html").ParseFS(fsys, "layout.html", string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", kind, err)
		}
		p.pages[kind] = tmpl
	}
	return p, nil
}

var kinds = []questionnaire.Kind{questionnaire.KindChat, questionnaire.KindSteps, questionnaire.KindForm}

var titles = map[questionnaire.Kind]string{
	questionnaire.KindChat:  "Chat",
	questionnaire.KindSteps: "Step by step",
	questionnaire.KindForm:  "Single form",
}

type flowLink struct {
	Path   string
	Title  string
	Active bool
}

type questionView struct {
	Field     string
	Label     string
	Domain    questionnaire.Domain
	Options   []string
	Min       int
	Max       int
	MaxLength int
	Value     string
}

func newQuestionView(q questionnaire.Question, value string) questionView {
	return questionView{
		Field:     q.Name,
		Label:     q.Label(),
		Domain:    q.Domain,
		Options:   q.Options,
		Min:       q.Min,
		Max:       q.Max,
		MaxLength: questionnaire.MaxTextLength,
		Value:     value,
	}
}

// view is the data every page template receives
type view struct {
	Title      string
	Nonce      string
	Flows      []flowLink
	Error      string
	Transcript []questionnaire.Message
	Question   *questionView
	Number     int
	Total      int
	Questions  []questionView
	Result     *prediction.Result
	Confidence string
}

func newView(kind questionnaire.Kind, nonce string) *view {
	v := &view{Title: titles[kind], Nonce: nonce}
	for _, k := range kinds {
		v.Flows = append(v.Flows, flowLink{Path: "/" + string(k), Title: titles[k], Active: k == kind})
	}
	return v
}

// Render executes the page for kind into the response
func (p *Pages) Render(c *gin.Context, status int, kind questionnaire.Kind, data *view) error {
	tmpl, ok := p.pages[kind]
	if !ok {
		return fmt.Errorf("no template for flow %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
