package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"schoa/internal/core"
	"schoa/internal/db"
)

// Version is reported by /health.
const Version = "0.1.0"

//go:embed templates/*.html
var templateFS embed.FS

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Store      db.Store
	Summarizer *core.Summarizer
	Analyst    *core.FinancialAnalyst
	Search     *core.PatientSearch
	Templates  *template.Template
	Log        zerolog.Logger

	echo *echo.Echo
}

// NewServer constructs a Server and registers its routes.
func NewServer(store db.Store, summarizer *core.Summarizer, analyst *core.FinancialAnalyst, search *core.PatientSearch, log zerolog.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		Store:      store,
		Summarizer: summarizer,
		Analyst:    analyst,
		Search:     search,
		Templates:  tmpl,
		Log:        log,
	}
	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(s.Log))
	e.Use(RequestID())
	e.Use(Logger(s.Log))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})

	api := e.Group("/api")
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/patients", s.handleListPatients)
	api.GET("/patients/:id", s.handleGetPatient)
	api.POST("/patients/:id/summary", s.handleSummarize)
	api.GET("/financials", s.handleFinancials)
	api.POST("/financials/analysis", s.handleAnalyze)
	api.POST("/search", s.handleSearch)

	e.GET("/", s.handlePage)
	e.POST("/ack", s.handleAcknowledge)
	e.POST("/clinical/summary", s.handleSummaryPage)
	e.POST("/financial/analysis", s.handleAnalysisPage)
	e.POST("/search", s.handleSearchPage)

	return e
}

// ServeHTTP hands the request to the echo router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
