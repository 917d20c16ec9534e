package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"schoa/internal/core"
	"schoa/internal/db"
	"schoa/pkg"
)

// ackCookie remembers that the disclaimer was accepted.
const ackCookie = "schoa_ack"

// searchSuggestions are offered under the search box.
var searchSuggestions = []string{
	"Patients with high blood pressure",
	"Who is scheduled for surgery?",
	"Patients needing respiratory care",
	"Show me diabetic patients",
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	idr      = message.NewPrinter(language.Indonesian)
)

var templateFuncs = template.FuncMap{
	"idr": func(v int64) string { return idr.Sprintf("Rp %d", v) },
	"pct": func(f float64) string { return idr.Sprintf("%.1f%%", f*100) },
	"title": func(v pkg.ViewState) string {
		switch v {
		case pkg.ViewClinical:
			return "Clinical Docs"
		case pkg.ViewFinancial:
			return "Financial Hub"
		case pkg.ViewSearch:
			return "Smart Search"
		default:
			return "Overview"
		}
	},
}

// renderMarkdown converts model output to HTML.  Raw HTML in the input is
// dropped by goldmark's default renderer.
func renderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// page is the data passed to layout.html.
type page struct {
	View           pkg.ViewState
	Views          []pkg.ViewState
	ShowDisclaimer bool
	Disclaimer     string

	Dashboard  pkg.Dashboard
	Patients   []pkg.Patient
	Selected   *pkg.Patient
	Financials []pkg.FinancialRecord

	Output  template.HTML
	Outcome core.Outcome

	Query       string
	Searched    bool
	Explanation string
	Results     []pkg.Patient
	Suggestions []string
}

func (s *Server) newPage(c echo.Context, view pkg.ViewState) (*page, error) {
	ctx := c.Request().Context()
	patients, err := s.Store.Patients(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	financials, err := s.Store.Financials(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	p := &page{
		View:        view,
		Views:       pkg.ViewStates,
		Disclaimer:  core.Disclaimer,
		Dashboard:   pkg.NewDashboard(patients, financials),
		Patients:    patients,
		Financials:  financials,
		Suggestions: searchSuggestions,
	}
	if _, err := c.Cookie(ackCookie); err != nil {
		p.ShowDisclaimer = true
	}
	if len(patients) > 0 {
		p.Selected = &patients[0]
	}
	return p, nil
}

// selectPatient points the clinical panel at id and reports whether id
// names a known patient.  Otherwise the default selection is kept.
func (p *page) selectPatient(id string) bool {
	for i := range p.Patients {
		if p.Patients[i].ID == id {
			p.Selected = &p.Patients[i]
			return true
		}
	}
	return false
}

func (s *Server) render(c echo.Context, p *page) error {
	var buf bytes.Buffer
	if err := s.Templates.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (s *Server) setOutput(p *page, md string, outcome core.Outcome) error {
	html, err := renderMarkdown(md)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p.Output = html
	p.Outcome = outcome
	return nil
}

// handlePage renders the panel named by ?view=.
func (s *Server) handlePage(c echo.Context) error {
	p, err := s.newPage(c, pkg.ParseViewState(c.QueryParam("view")))
	if err != nil {
		return err
	}
	p.selectPatient(c.QueryParam("patient"))
	return s.render(c, p)
}

// handleAcknowledge records that the disclaimer was accepted.
func (s *Server) handleAcknowledge(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     ackCookie,
		Value:    "1",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})
	next := c.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	return c.Redirect(http.StatusSeeOther, next)
}

func (s *Server) handleSummaryPage(c echo.Context) error {
	p, err := s.newPage(c, pkg.ViewClinical)
	if err != nil {
		return err
	}
	if id := c.FormValue("patient"); id != "" && !p.selectPatient(id) {
		return storeError(fmt.Errorf("%w: %s", db.ErrPatientNotFound, id))
	}
	if p.Selected == nil {
		return s.render(c, p)
	}
	res := s.Summarizer.SummarizePatient(c.Request().Context(), *p.Selected)
	if err := s.setOutput(p, res.Value, res.Outcome); err != nil {
		return err
	}
	return s.render(c, p)
}

func (s *Server) handleAnalysisPage(c echo.Context) error {
	p, err := s.newPage(c, pkg.ViewFinancial)
	if err != nil {
		return err
	}
	res := s.Analyst.Analyze(c.Request().Context(), p.Financials)
	if err := s.setOutput(p, res.Value, res.Outcome); err != nil {
		return err
	}
	return s.render(c, p)
}

// handleSearchPage runs a search from the form.  A blank query re-renders
// the panel without calling the model.
func (s *Server) handleSearchPage(c echo.Context) error {
	p, err := s.newPage(c, pkg.ViewSearch)
	if err != nil {
		return err
	}
	p.Query = c.FormValue("query")
	if strings.TrimSpace(p.Query) == "" {
		return s.render(c, p)
	}
	resp, err := s.search(c, p.Query)
	if err != nil {
		return err
	}
	p.Searched = true
	p.Explanation = resp.Explanation
	p.Results = resp.Patients
	p.Outcome = resp.Outcome
	return s.render(c, p)
}
