package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"schoa/internal/db"
	"schoa/internal/llm"
	"schoa/pkg"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// stubClient is a deterministic llm.Client.
type stubClient struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)

	calls int32
	mu    sync.Mutex
	last  llm.Request
}

var _ llm.Client = (*stubClient)(nil)

func (s *stubClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	if s.GenerateFunc != nil {
		return s.GenerateFunc(ctx, req)
	}
	return "", nil
}

func reply(text string) *stubClient {
	return &stubClient{GenerateFunc: func(context.Context, llm.Request) (string, error) { return text, nil }}
}

func failing() *stubClient {
	return &stubClient{GenerateFunc: func(context.Context, llm.Request) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}}
}

func panicking() *stubClient {
	return &stubClient{GenerateFunc: func(context.Context, llm.Request) (string, error) { panic("boom") }}
}

func fixture(t *testing.T) ([]pkg.Patient, []pkg.FinancialRecord) {
	t.Helper()
	f, err := db.DefaultFixture()
	require.NoError(t, err)
	patients, _ := f.Patients(context.Background())
	financials, _ := f.Financials(context.Background())
	return patients, financials
}

const budiNotes = "Patient reports increased thirst and frequent urination. Fasting blood glucose 180 mg/dL."

func TestSummarize_ReturnsModelTextVerbatim(t *testing.T) {
	stub := reply("# After Visit Summary\n\n_AI-generated draft._")
	s := NewSummarizer(stub, zerolog.Nop())

	res := s.Summarize(context.Background(), "Budi Santoso", budiNotes, `{"resourceType":"Patient"}`)
	assert.Equal(t, "# After Visit Summary\n\n_AI-generated draft._", res.Value)
	assert.Equal(t, OutcomeGenerated, res.Outcome)
	assert.False(t, res.Degraded())
	assert.NoError(t, res.Err)

	assert.Contains(t, stub.last.Prompt, "Patient: Budi Santoso")
	assert.Contains(t, stub.last.Prompt, "Clinical Notes: "+budiNotes)
	assert.Contains(t, stub.last.Prompt, `Raw FHIR Data: {"resourceType":"Patient"}`)
	assert.Contains(t, stub.last.Prompt, "verified by a physician")
	assert.Nil(t, stub.last.Schema)
}

func TestSummarize_EmptyNotesPassedThrough(t *testing.T) {
	stub := reply("ok")
	s := NewSummarizer(stub, zerolog.Nop())
	res := s.Summarize(context.Background(), "Budi Santoso", "", "")
	assert.Equal(t, "ok", res.Value)
	assert.Contains(t, stub.last.Prompt, "Clinical Notes: \n")
}

func TestSummarize_EmptyResponseIsPlaceholder(t *testing.T) {
	s := NewSummarizer(reply(""), zerolog.Nop())
	res := s.Summarize(context.Background(), "Budi Santoso", budiNotes, "{}")
	assert.Equal(t, ClinicalPlaceholder, res.Value)
	assert.Equal(t, OutcomePlaceholder, res.Outcome)
	assert.True(t, res.Degraded())
}

func TestSummarize_TransportFailure(t *testing.T) {
	s := NewSummarizer(failing(), zerolog.Nop())
	res := s.Summarize(context.Background(), "Budi Santoso", budiNotes, "{}")
	assert.Equal(t, "Error connecting to AI service. Please check API key.", res.Value)
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Error(t, res.Err)
}

func TestSummarizePatient(t *testing.T) {
	patients, _ := fixture(t)
	stub := reply("summary")
	s := NewSummarizer(stub, zerolog.Nop())
	res := s.SummarizePatient(context.Background(), patients[0])
	assert.NotEmpty(t, res.Value)
	assert.Contains(t, stub.last.Prompt, "Budi Santoso")
	assert.Contains(t, stub.last.Prompt, "E11.9")
}

func TestAnalyze_EmbedsDataset(t *testing.T) {
	_, financials := fixture(t)
	stub := reply("## Executive brief")
	a := NewFinancialAnalyst(stub, zerolog.Nop())

	res := a.Analyze(context.Background(), financials)
	assert.Equal(t, "## Executive brief", res.Value)
	assert.Equal(t, OutcomeGenerated, res.Outcome)
	assert.Contains(t, stub.last.Prompt, "Data (Last 5 Months): ")
	assert.Contains(t, stub.last.Prompt, `{"month":"Jun","revenue":1200000000,"expenses":850000000,"payroll":400000000,"patientCount":450}`)
	assert.Contains(t, stub.last.Prompt, "Payroll to Revenue")
}

func TestAnalyze_EmptyDataset(t *testing.T) {
	stub := reply("nothing to analyse")
	a := NewFinancialAnalyst(stub, zerolog.Nop())
	res := a.Analyze(context.Background(), nil)
	assert.Equal(t, "nothing to analyse", res.Value)
	assert.Contains(t, stub.last.Prompt, "Data (Last 0 Months): []")
}

func TestAnalyze_EmptyResponseIsPlaceholder(t *testing.T) {
	_, financials := fixture(t)
	res := NewFinancialAnalyst(reply(""), zerolog.Nop()).Analyze(context.Background(), financials)
	assert.Equal(t, FinancialPlaceholder, res.Value)
	assert.Equal(t, OutcomePlaceholder, res.Outcome)
}

func TestAnalyze_TransportFailure(t *testing.T) {
	_, financials := fixture(t)
	res := NewFinancialAnalyst(failing(), zerolog.Nop()).Analyze(context.Background(), financials)
	assert.Equal(t, "Error generating financial insights.", res.Value)
	assert.Equal(t, OutcomeFallback, res.Outcome)
}

func TestSearch_ProjectionAndSchema(t *testing.T) {
	patients, _ := fixture(t)
	stub := reply(`{"matchedIds":["P-1002"],"explanation":"Hypertension."}`)
	s := NewPatientSearch(stub, zerolog.Nop())

	res := s.Search(context.Background(), "Patients with high blood pressure", patients)
	assert.Equal(t, OutcomeGenerated, res.Outcome)
	assert.Equal(t, []string{"P-1002"}, res.Value.MatchedIDs)
	assert.Equal(t, "Hypertension.", res.Value.Explanation)

	assert.Same(t, SearchSchema, stub.last.Schema)
	assert.Contains(t, stub.last.Prompt, `Query: "Patients with high blood pressure"`)
	assert.Contains(t, stub.last.Prompt, `"id":"P-1001","name":"Budi Santoso","condition":"Type 2 Diabetes","notes":"Patient reports`)
	assert.NotContains(t, stub.last.Prompt, "resourceType")
	assert.NotContains(t, stub.last.Prompt, "admissionStatus")
}

func TestSearch_TransportFailure(t *testing.T) {
	patients, _ := fixture(t)
	res := NewPatientSearch(failing(), zerolog.Nop()).Search(context.Background(), "diabetes", patients)
	assert.Equal(t, pkg.SearchResult{MatchedIDs: []string{}, Explanation: "AI Search unavailable."}, res.Value)
	assert.Equal(t, OutcomeFallback, res.Outcome)
}

func TestSearch_MissingExplanationDefaults(t *testing.T) {
	patients, _ := fixture(t)
	res := NewPatientSearch(reply(`{"matchedIds":["P-1001","P-1004"]}`), zerolog.Nop()).
		Search(context.Background(), "chronic", patients)
	assert.Equal(t, []string{"P-1001", "P-1004"}, res.Value.MatchedIDs)
	assert.Equal(t, "No explanation provided.", res.Value.Explanation)
	assert.Equal(t, OutcomePlaceholder, res.Outcome)
}

func TestParseSearchResponse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		ids       []string
		expl      string
		defaulted bool
		invalid   bool
	}{
		{name: "full", text: `{"matchedIds":["a"],"explanation":"why"}`, ids: []string{"a"}, expl: "why"},
		{name: "empty text", text: "", ids: []string{}, expl: SearchNoExplanation, defaulted: true},
		{name: "empty object", text: "{}", ids: []string{}, expl: SearchNoExplanation, defaulted: true},
		{name: "null ids", text: `{"matchedIds":null,"explanation":"x"}`, ids: []string{}, expl: "x", defaulted: true},
		{name: "empty explanation", text: `{"matchedIds":[],"explanation":""}`, ids: []string{}, expl: SearchNoExplanation, defaulted: true},
		{name: "fenced", text: "```json\n{\"matchedIds\":[\"b\"],\"explanation\":\"y\"}\n```", ids: []string{"b"}, expl: "y"},
		{name: "extra fields", text: `{"matchedIds":["c"],"explanation":"z","score":1}`, ids: []string{"c"}, expl: "z"},
		{name: "not json", text: "Sorry, I cannot help.", invalid: true},
		{name: "array document", text: `["P-1001"]`, invalid: true},
		{name: "null document", text: "null", invalid: true},
		{name: "ids wrong type", text: `{"matchedIds":"P-1001"}`, invalid: true},
		{name: "ids of numbers", text: `{"matchedIds":[1001]}`, invalid: true},
		{name: "explanation wrong type", text: `{"matchedIds":[],"explanation":42}`, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, defaulted, err := parseSearchResponse(tt.text)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ids, res.MatchedIDs)
			assert.Equal(t, tt.expl, res.Explanation)
			assert.Equal(t, tt.defaulted, defaulted)
		})
	}
}

func TestSearch_MalformedResponseFallsBack(t *testing.T) {
	patients, _ := fixture(t)
	res := NewPatientSearch(reply("not json at all"), zerolog.Nop()).Search(context.Background(), "q", patients)
	assert.Equal(t, []string{}, res.Value.MatchedIDs)
	assert.Equal(t, SearchFallback, res.Value.Explanation)
	assert.ErrorIs(t, res.Err, ErrInvalidResponse)
}

func TestAdapters_NeverCrashCaller(t *testing.T) {
	patients, financials := fixture(t)
	ctx := context.Background()
	for name, client := range map[string]llm.Client{"panic": panicking(), "nil": nil} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				c := NewSummarizer(client, zerolog.Nop()).Summarize(ctx, "Budi Santoso", budiNotes, "{}")
				assert.Equal(t, ClinicalFallback, c.Value)
				f := NewFinancialAnalyst(client, zerolog.Nop()).Analyze(ctx, financials)
				assert.Equal(t, FinancialFallback, f.Value)
				s := NewPatientSearch(client, zerolog.Nop()).Search(ctx, "q", patients)
				assert.Equal(t, SearchFallback, s.Value.Explanation)
			})
		})
	}
}

func TestAdapters_Idempotent(t *testing.T) {
	patients, financials := fixture(t)
	ctx := context.Background()
	stub := &stubClient{GenerateFunc: func(_ context.Context, req llm.Request) (string, error) {
		if req.Schema != nil {
			return `{"matchedIds":["P-1003","P-1001"],"explanation":"deterministic"}`, nil
		}
		return "fixed: " + req.Prompt[:20], nil
	}}

	sum := NewSummarizer(stub, zerolog.Nop())
	fin := NewFinancialAnalyst(stub, zerolog.Nop())
	srch := NewPatientSearch(stub, zerolog.Nop())

	assert.Equal(t, sum.SummarizePatient(ctx, patients[1]), sum.SummarizePatient(ctx, patients[1]))
	assert.Equal(t, fin.Analyze(ctx, financials), fin.Analyze(ctx, financials))
	assert.Equal(t, srch.Search(ctx, "surgery", patients), srch.Search(ctx, "surgery", patients))
	assert.EqualValues(t, 6, atomic.LoadInt32(&stub.calls))
}

func TestAdapters_Concurrent(t *testing.T) {
	patients, financials := fixture(t)
	ctx := context.Background()
	stub := &stubClient{GenerateFunc: func(_ context.Context, req llm.Request) (string, error) {
		if req.Schema != nil {
			return `{"matchedIds":["P-1004"],"explanation":"asthma"}`, nil
		}
		return "text", nil
	}}
	sum := NewSummarizer(stub, zerolog.Nop())
	fin := NewFinancialAnalyst(stub, zerolog.Nop())
	srch := NewPatientSearch(stub, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); assert.Equal(t, "text", sum.SummarizePatient(ctx, patients[0]).Value) }()
		go func() { defer wg.Done(); assert.Equal(t, "text", fin.Analyze(ctx, financials).Value) }()
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"P-1004"}, srch.Search(ctx, "asthma", patients).Value.MatchedIDs)
		}()
	}
	wg.Wait()
}

func TestFilterPatients(t *testing.T) {
	patients, _ := fixture(t)

	got := FilterPatients(patients, []string{"P-1003", "P-0000", "P-1001"})
	require.Len(t, got, 2)
	assert.Equal(t, "P-1001", got[0].ID)
	assert.Equal(t, "P-1003", got[1].ID)

	assert.Empty(t, FilterPatients(patients, nil))
	assert.Empty(t, FilterPatients(patients, []string{"unknown"}))
	assert.Len(t, FilterPatients(patients, []string{"P-1002", "P-1002"}), 1)
}

func TestFilterPatients_IsIntersection(t *testing.T) {
	patients, _ := fixture(t)
	known := map[string]bool{}
	for _, p := range patients {
		known[p.ID] = true
	}
	ids := []string{"P-1004", "X", "P-1002", "", "P-1001"}
	got := FilterPatients(patients, ids)

	want := 0
	for _, id := range ids {
		if known[id] {
			want++
		}
	}
	assert.Len(t, got, want)
	for _, p := range got {
		assert.Contains(t, ids, p.ID)
	}
}
