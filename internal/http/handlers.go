package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"schoa/internal/core"
	"schoa/internal/db"
	"schoa/pkg"
)

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the search result with the matching records resolved
// against the store.
type SearchResponse struct {
	pkg.SearchResult
	Patients []pkg.Patient `json:"patients"`
	Outcome  core.Outcome  `json:"outcome"`
}

func storeError(err error) error {
	if errors.Is(err, db.ErrPatientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (s *Server) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	patients, err := s.Store.Patients(ctx)
	if err != nil {
		return storeError(err)
	}
	financials, err := s.Store.Financials(ctx)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, pkg.NewDashboard(patients, financials))
}

func (s *Server) handleListPatients(c echo.Context) error {
	patients, err := s.Store.Patients(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	if patients == nil {
		patients = []pkg.Patient{}
	}
	return c.JSON(http.StatusOK, patients)
}

func (s *Server) handleGetPatient(c echo.Context) error {
	p, err := s.Store.Patient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// handleSummarize runs the clinical adapter for one patient.  The response
// is always 200 once the patient exists; failures show up as the fallback
// text with outcome "fallback".
func (s *Server) handleSummarize(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := s.Store.Patient(ctx, c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	res := s.Summarizer.SummarizePatient(ctx, p)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patientId": p.ID,
		"summary":   res.Value,
		"outcome":   res.Outcome,
	})
}

func (s *Server) handleFinancials(c echo.Context) error {
	records, err := s.Store.Financials(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	if records == nil {
		records = []pkg.FinancialRecord{}
	}
	resp := map[string]interface{}{"records": records}
	if n := len(records); n > 0 {
		resp["latest"] = records[n-1]
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalyze(c echo.Context) error {
	ctx := c.Request().Context()
	records, err := s.Store.Financials(ctx)
	if err != nil {
		return storeError(err)
	}
	res := s.Analyst.Analyze(ctx, records)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"analysis": res.Value,
		"outcome":  res.Outcome,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
	}
	resp, err := s.search(c, req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) search(c echo.Context, query string) (*SearchResponse, error) {
	ctx := c.Request().Context()
	patients, err := s.Store.Patients(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	res := s.Search.Search(ctx, query, patients)
	return &SearchResponse{
		SearchResult: res.Value,
		Patients:     core.FilterPatients(patients, res.Value.MatchedIDs),
		Outcome:      res.Outcome,
	}, nil
}
