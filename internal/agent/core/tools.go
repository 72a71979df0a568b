package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sense-app/sense-ai-chat/provider"
)

// Tool is one of the agent's closed set of actions. Invoke receives the
// turn's knowledge bank and output stream, mutates the bank, and returns
// the text fed back to the model as the tool result.
type Tool interface {
	Name() Action
	Description() string
	Parameters() map[string]interface{}
	Invoke(ctx context.Context, bank *KnowledgeBank, args json.RawMessage, stream Stream) (string, error)
}

// Registry is the dispatch table from model tool-call names to tools.
type Registry map[Action]Tool

func NewRegistry(tools ...Tool) Registry {
	r := make(Registry, len(tools))
	for _, t := range tools {
		r[t.Name()] = t
	}
	return r
}

// Defs returns tool definitions for the given actions, in order.
// Unknown actions are skipped.
func (r Registry) Defs(actions []Action) []provider.ToolDef {
	defs := make([]provider.ToolDef, 0, len(actions))
	for _, a := range actions {
		t, ok := r[a]
		if !ok {
			continue
		}
		defs = append(defs, provider.ToolDef{
			Name:        string(t.Name()),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Dispatch executes one model tool call through the table.
func (r Registry) Dispatch(ctx context.Context, call provider.ToolCall, bank *KnowledgeBank, stream Stream) (string, error) {
	tool, ok := r[Action(call.Name)]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	return tool.Invoke(ctx, bank, call.Arguments, stream)
}

func stringArray(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}
