package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"schoa/internal/llm"
	"schoa/pkg"
)

// FinancialAnalyst produces the executive brief for the financial hub.  The
// figures are not computed locally; the whole dataset goes to the model.
type FinancialAnalyst struct {
	LLM llm.Client
	Log zerolog.Logger
}

// NewFinancialAnalyst constructs an analyst.
func NewFinancialAnalyst(client llm.Client, log zerolog.Logger) *FinancialAnalyst {
	return &FinancialAnalyst{LLM: client, Log: log}
}

// Analyze returns a markdown brief covering revenue trend, expense
// anomalies, average net profit margin and payroll efficiency suggestions.
// Records are expected in chronological order.
func (a *FinancialAnalyst) Analyze(ctx context.Context, records []pkg.FinancialRecord) Result[string] {
	if records == nil {
		records = []pkg.FinancialRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		logFailure(a.Log, "financial", err)
		return fallback(FinancialFallback, err)
	}
	prompt := fmt.Sprintf(financialPrompt, len(records), data)
	text, err := generate(ctx, a.LLM, llm.Request{Prompt: prompt})
	if err != nil {
		logFailure(a.Log, "financial", err)
		return fallback(FinancialFallback, err)
	}
	if text == "" {
		return placeholder(FinancialPlaceholder)
	}
	return generated(text)
}
