package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"schoa/internal/llm"
	"schoa/pkg"
)

// Summarizer drafts the After Visit Summary and H&P note for a patient.
type Summarizer struct {
	LLM llm.Client
	Log zerolog.Logger
}

// NewSummarizer constructs a summariser.
func NewSummarizer(client llm.Client, log zerolog.Logger) *Summarizer {
	return &Summarizer{LLM: client, Log: log}
}

// Summarize asks the model for a markdown summary built from the patient's
// name, notes and raw FHIR payload.  The model text is returned verbatim.
// It never fails: an empty answer yields ClinicalPlaceholder and any error
// yields ClinicalFallback.
func (s *Summarizer) Summarize(ctx context.Context, patientName, notes, fhirData string) Result[string] {
	prompt := fmt.Sprintf(clinicalPrompt, patientName, fhirData, notes)
	text, err := generate(ctx, s.LLM, llm.Request{Prompt: prompt})
	if err != nil {
		logFailure(s.Log, "clinical", err)
		return fallback(ClinicalFallback, err)
	}
	if text == "" {
		return placeholder(ClinicalPlaceholder)
	}
	return generated(text)
}

// SummarizePatient is Summarize for a stored patient record.
func (s *Summarizer) SummarizePatient(ctx context.Context, p pkg.Patient) Result[string] {
	return s.Summarize(ctx, p.Name, p.ClinicalNotes, p.FHIRResource)
}
