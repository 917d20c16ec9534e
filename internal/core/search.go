package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"schoa/internal/llm"
	"schoa/pkg"
)

// SearchSchema is the response shape requested from the model.
var SearchSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"matchedIds":  {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}},
		"explanation": {Type: llm.TypeString},
	},
}

// patientDigest is the slice of a patient the model gets to see.
type patientDigest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

// PatientSearch delegates semantic matching of patients to the model.
type PatientSearch struct {
	LLM llm.Client
	Log zerolog.Logger
}

// NewPatientSearch constructs a search adapter.
func NewPatientSearch(client llm.Client, log zerolog.Logger) *PatientSearch {
	return &PatientSearch{LLM: client, Log: log}
}

// Search asks the model which patients match query.  Ids come back in
// whatever order the model emits them and may name patients that do not
// exist; use FilterPatients to resolve them.
func (s *PatientSearch) Search(ctx context.Context, query string, patients []pkg.Patient) Result[pkg.SearchResult] {
	unavailable := pkg.SearchResult{MatchedIDs: []string{}, Explanation: SearchFallback}

	digests := make([]patientDigest, 0, len(patients))
	for _, p := range patients {
		digests = append(digests, patientDigest{
			ID:        p.ID,
			Name:      p.Name,
			Condition: p.Condition,
			Notes:     p.ClinicalNotes,
		})
	}
	db, err := json.Marshal(digests)
	if err != nil {
		logFailure(s.Log, "search", err)
		return fallback(unavailable, err)
	}

	text, err := generate(ctx, s.LLM, llm.Request{
		Prompt: fmt.Sprintf(searchPrompt, query, db),
		Schema: SearchSchema,
	})
	if err != nil {
		logFailure(s.Log, "search", err)
		return fallback(unavailable, err)
	}

	res, defaulted, err := parseSearchResponse(text)
	if err != nil {
		logFailure(s.Log, "search", err)
		return fallback(unavailable, err)
	}
	if defaulted {
		return placeholder(res)
	}
	return generated(res)
}

// parseSearchResponse checks text against SearchSchema and extracts the
// fields.  Missing or null fields take their defaults; a field of the wrong
// type makes the whole response invalid.
func parseSearchResponse(text string) (pkg.SearchResult, bool, error) {
	text = stripCodeFence(text)
	if text == "" {
		text = "{}"
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return pkg.SearchResult{}, false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw == nil {
		return pkg.SearchResult{}, false, fmt.Errorf("%w: not a JSON object", ErrInvalidResponse)
	}

	var (
		res       = pkg.SearchResult{MatchedIDs: []string{}}
		defaulted bool
	)
	if v, ok := raw["matchedIds"]; ok && !isJSONNull(v) {
		var ids []string
		if err := json.Unmarshal(v, &ids); err != nil {
			return pkg.SearchResult{}, false, fmt.Errorf("%w: matchedIds: %v", ErrInvalidResponse, err)
		}
		if ids != nil {
			res.MatchedIDs = ids
		}
	} else {
		defaulted = true
	}
	if v, ok := raw["explanation"]; ok && !isJSONNull(v) {
		if err := json.Unmarshal(v, &res.Explanation); err != nil {
			return pkg.SearchResult{}, false, fmt.Errorf("%w: explanation: %v", ErrInvalidResponse, err)
		}
	}
	if res.Explanation == "" {
		res.Explanation = SearchNoExplanation
		defaulted = true
	}
	return res, defaulted, nil
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// FilterPatients returns the patients whose id is in ids, in collection
// order.  Ids with no matching patient are ignored.
func FilterPatients(patients []pkg.Patient, ids []string) []pkg.Patient {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]pkg.Patient, 0, len(ids))
	for _, p := range patients {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
