package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPrompt is returned when a request carries no instruction text.
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// SchemaType enumerates the JSON types a response schema can describe.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a minimal JSON schema describing the shape a structured
// response must take.  Providers translate it into their own format.
type Schema struct {
	Type       SchemaType
	Properties map[string]*Schema
	Items      *Schema
}

// Request is a single-shot generation request.  When Schema is set the
// provider is asked for a JSON document of that shape.
type Request struct {
	Prompt string
	Schema *Schema
}

// Client generates text for a prompt.  Implementations must be safe for
// concurrent use.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options configures New.
type Options struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// New returns the client for the configured provider.  A missing API key is
// not an error here; it surfaces on each Generate call instead.
func New(opts Options) (Client, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderGemini:
		return NewGeminiClient(opts.GeminiAPIKey, opts.Model, opts.GeminiBaseURL), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts.OpenAIAPIKey, opts.Model, opts.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}
