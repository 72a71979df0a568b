package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sense-app/sense-ai-chat/config"
	openai_provider "github.com/sense-app/sense-ai-chat/provider/openai"
)

// Message is one turn of an LLM conversation. ToolCalls is set on
// assistant messages that requested tools; ToolCallID on tool results.
type Message = openai_provider.Message

// ToolCall is a model-requested tool invocation with raw JSON arguments.
type ToolCall = openai_provider.ToolCall

// ToolDef declares a callable tool: name, description and a JSON-schema
// parameters object.
type ToolDef = openai_provider.ToolDef

// Completion is one model response: free text and/or tool calls.
type Completion = openai_provider.Completion

// SchemaError marks a structured-generation response that failed to parse
// or validate against its declared schema. Distinct from "nothing to
// report": callers must not treat the malformed payload as usable data.
type SchemaError = openai_provider.SchemaError

// Validator is implemented by every structured-output schema type.
type Validator interface {
	Validate() error
}

// Provider is the language-model collaborator: free-form generation with
// an optional tool-calling contract, and structured generation validated
// against a declared schema before being trusted.
type Provider interface {
	// Chat sends a plain conversation and returns the text response.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// ChatWithTools sends a conversation with tool definitions; the model
	// responds with text and/or tool calls.
	ChatWithTools(ctx context.Context, model string, messages []Message, tools []ToolDef) (Completion, error)

	// GenerateObject runs a JSON-constrained generation and unmarshals the
	// response into out, then validates it. Parse or validation failures
	// return a *SchemaError. maxTokens <= 0 uses the provider default.
	GenerateObject(ctx context.Context, model string, prompt string, maxTokens int, out any) error
}

// NewProvider builds a provider from configuration. Only the first
// configured provider entry is used.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	for _, p := range cfg.Providers {
		switch p.Type {
		case "openai":
			return openai_provider.NewClient(p), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", p.Type)
		}
	}
	return nil, fmt.Errorf("no valid LLM providers found")
}

// DecodeArguments unmarshals tool-call arguments into a parameter struct.
func DecodeArguments(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}
