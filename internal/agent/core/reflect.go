package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/provider"
)

// ReflectTool decomposes the user's request into shopping-relevant
// sub-questions and deduplicates them against the bank's open questions.
type ReflectTool struct {
	Dedup     *Deduplicator
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

type reflectArgs struct {
	Thoughts  string   `json:"thoughts,omitempty"`
	Questions []string `json:"questions"`
}

func (t *ReflectTool) Name() Action { return ActionReflect }

func (t *ReflectTool) Description() string {
	return actionDescriptions[ActionReflect]
}

func (t *ReflectTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thoughts":  map[string]interface{}{"type": "string", "description": "Why these sub-questions"},
			"questions": stringArray("Shopping-relevant sub-questions to investigate"),
		},
		"required": []string{"questions"},
	}
}

func (t *ReflectTool) Invoke(ctx context.Context, bank *KnowledgeBank, raw json.RawMessage, stream Stream) (string, error) {
	started := time.Now()
	var args reflectArgs
	if err := provider.DecodeArguments(raw, &args); err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionReflect), time.Since(started), err)
		return "", fmt.Errorf("reflect arguments: %w", err)
	}
	if len(args.Questions) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionReflect), time.Since(started), nil)
		return "No sub-questions were provided; nothing to reflect on.", nil
	}

	unique := args.Questions
	if len(bank.Questions) > 0 {
		res, err := t.Dedup.Dedup(ctx, args.Questions, bank.Questions)
		if err != nil {
			// Dedup failure is non-fatal: fall back to treating every
			// candidate as unique.
			t.Logger.Printf("dedup failed, keeping all candidates: %v", err)
		} else {
			unique = res.UniqueQueries
		}
	}

	bank.ReplaceQuestions(unique)
	bank.Apply(ActionReflect)

	_ = stream.Annotate(Annotation{Type: "reflect", Data: map[string]interface{}{
		"questions": bank.Questions,
	}})
	t.Telemetry.RecordToolInvocation(string(ActionReflect), time.Since(started), nil)

	return fmt.Sprintf("Reflection complete. Open questions are now:\n%s\n\n%s",
		joinLines(bank.Questions), bank.Prompt()), nil
}

func joinLines(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\n"
		}
		out += "- " + s
	}
	return out
}
