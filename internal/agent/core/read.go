package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/internal/helpers"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/tools/web_fetch"
)

// ReadTool fetches pages concurrently and synthesizes their contents
// into learnings, follow-up questions and products.
type ReadTool struct {
	Fetcher   web_fetch.Fetcher
	Learner   *Learner
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

type readArgs struct {
	Thoughts string   `json:"thoughts,omitempty"`
	URLs     []string `json:"urls"`
}

func (t *ReadTool) Name() Action { return ActionRead }

func (t *ReadTool) Description() string {
	return actionDescriptions[ActionRead]
}

func (t *ReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thoughts": map[string]interface{}{"type": "string", "description": "Why these pages"},
			"urls":     stringArray("Webpage URLs to read"),
		},
		"required": []string{"urls"},
	}
}

func (t *ReadTool) Invoke(ctx context.Context, bank *KnowledgeBank, raw json.RawMessage, stream Stream) (string, error) {
	started := time.Now()
	var args readArgs
	if err := provider.DecodeArguments(raw, &args); err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionRead), time.Since(started), err)
		return "", fmt.Errorf("read arguments: %w", err)
	}
	if len(args.URLs) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionRead), time.Since(started), nil)
		return "No URLs were provided; nothing to read.", nil
	}

	_ = stream.Annotate(Annotation{Type: "read", Data: map[string]interface{}{
		"domains": domains(args.URLs),
	}})

	// One concurrent fetch per URL; a failed fetch yields an empty page
	// and is filtered out below.
	contents := make([]string, len(args.URLs))
	var wg sync.WaitGroup
	for i, u := range args.URLs {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			text, err := t.Fetcher.Fetch(ctx, u)
			t.Telemetry.RecordFetch(u, len(text), err)
			if err != nil {
				t.Logger.Printf("fetch failed for %s: %v", u, err)
				return
			}
			contents[i] = text
		}(i, u)
	}
	wg.Wait()

	var pages []PageContent
	for i, text := range contents {
		if text != "" {
			pages = append(pages, PageContent{URL: args.URLs[i], Content: text})
		}
	}

	// Read URLs never return to the bank, even when every fetch failed.
	bank.RemoveSearchResults(args.URLs)
	bank.Apply(ActionRead)

	if len(pages) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionRead), time.Since(started), nil)
		return "None of the pages could be read.", nil
	}

	learned, err := t.Learner.Learn(ctx, pages, bank.Questions, bank.LatestUserMessage())
	if err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionRead), time.Since(started), err)
		return "", fmt.Errorf("synthesizing page contents: %w", err)
	}

	bank.AddLearnings(learned.Learnings)
	bank.AddQuestions(learned.FollowUpQuestions)
	bank.AddProducts(learned.Products)

	_ = stream.Annotate(Annotation{Type: "readResults", Data: map[string]interface{}{
		"pagesRead":    len(pages),
		"productCount": len(learned.Products),
	}})
	t.Telemetry.RecordToolInvocation(string(ActionRead), time.Since(started), nil)

	return fmt.Sprintf("Read %d pages: %d learnings, %d products found.\n\n%s",
		len(pages), len(learned.Learnings), len(learned.Products), bank.Prompt()), nil
}

func domains(urls []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range urls {
		d := helpers.Domain(u)
		if d == "" {
			continue
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
