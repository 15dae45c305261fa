// Package handler contains the HTTP handlers: server-rendered pages and the
// JSON API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, form or JSON body)
//  2. Call the service layer
//  3. Write the response (a rendered template, a redirect or JSON)
//
// Handlers hold no business rules. Ownership, validation and generation all
// live in package service.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/aligned/internal/model"
)

// pageNames are the templates that fill the "content" block of base.html.
var pageNames = []string{"login", "dashboard", "new", "detail", "share", "settings", "error"}

// Pages holds one parsed template set per page.
//
// TEMPLATE COMPOSITION:
// Every set is base.html + report.html + <page>.html. base.html renders
// {{template "content" .}}, each page defines "content", and report.html
// defines the "report" block shared by the detail and share pages. Sets are
// separate because every page defines the same "content" name.
type Pages struct {
	sets   map[string]*template.Template
	logger *slog.Logger
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"section": func(title string, items []string) reportSection {
		return reportSection{Title: title, Items: items}
	},
}

type reportSection struct {
	Title string
	Items []string
}

// NewPages parses every page template from fsys (web.Templates in
// production). Parsing happens once at startup.
func NewPages(fsys fs.FS, logger *slog.Logger) (*Pages, error) {
	p := &Pages{sets: make(map[string]*template.Template, len(pageNames)), logger: logger}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys,
			"templates/base.html",
			"templates/report.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.sets[name] = tmpl
	}
	return p, nil
}

// pageData is what every template receives. Pages use the fields they need.
type pageData struct {
	Title  string
	User   *model.User
	Error  string
	Notice string

	// login
	Email string
	Next  string
	Sent  bool

	Summaries []model.SummaryHeader
	Summary   *model.Summary
	Fields    model.SummaryFields
	ShareURL  string
	Profile   *model.Profile
}

// render executes into a buffer first so a template error becomes a clean
// 500 instead of a half-written page.
func (p *Pages) render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := p.sets[name]
	if !ok {
		p.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError shows the error page with the mapped status.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	data := pageData{Title: http.StatusText(status), Error: userMessage(err)}
	data.User, _ = userFrom(r)
	p.render(w, status, "error", data)
}
