package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/tools/web_search"
)

// SearchTool rewrites topics into operator-qualified queries and runs
// them against the search gateway. Queries run serially with a fixed
// delay between calls to stay inside the provider's rate limits.
type SearchTool struct {
	Rewriter  *QueryRewriter
	Searcher  web_search.Searcher
	Delay     time.Duration
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

type searchArgs struct {
	Thoughts string   `json:"thoughts,omitempty"`
	Queries  []string `json:"queries"`
}

func (t *SearchTool) Name() Action { return ActionSearch }

func (t *SearchTool) Description() string {
	return actionDescriptions[ActionSearch]
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thoughts": map[string]interface{}{"type": "string", "description": "Why these queries"},
			"queries":  stringArray("Natural-language search queries"),
		},
		"required": []string{"queries"},
	}
}

func (t *SearchTool) Invoke(ctx context.Context, bank *KnowledgeBank, raw json.RawMessage, stream Stream) (string, error) {
	started := time.Now()
	var args searchArgs
	if err := provider.DecodeArguments(raw, &args); err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionSearch), time.Since(started), err)
		return "", fmt.Errorf("search arguments: %w", err)
	}
	if len(args.Queries) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionSearch), time.Since(started), nil)
		return "No queries were provided; nothing to search.", nil
	}

	rewritten, err := t.Rewriter.Rewrite(ctx, args.Queries)
	if err != nil {
		// Fall back to the raw queries rather than aborting the turn.
		t.Logger.Printf("rewrite failed, searching raw queries: %v", err)
		rewritten = SearchQueries{Queries: args.Queries}
	}

	_ = stream.Annotate(Annotation{Type: "search", Data: map[string]interface{}{
		"queries": rewritten.Queries,
	}})

	added := 0
	var related []string
	for i, q := range rewritten.Queries {
		if i > 0 && t.Delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(t.Delay):
			}
		}

		resp, err := t.Searcher.Search(ctx, q)
		t.Telemetry.RecordSearch("web", len(resp.Organic), err)
		if err != nil {
			// Best-effort batch: a failing query contributes zero results.
			t.Logger.Printf("search failed for %q: %v", q, err)
			continue
		}

		results := make([]SearchResult, 0, len(resp.Organic))
		for _, r := range resp.Organic {
			results = append(results, SearchResult{
				Title:       r.Title,
				URL:         r.URL,
				Description: r.Description,
				Icon:        r.Icon,
			})
		}
		added += bank.AddSearchResults(results)
		related = append(related, resp.Related...)
	}

	bank.AddQuestions(related)
	bank.Apply(ActionSearch)

	_ = stream.Annotate(Annotation{Type: "searchResults", Data: map[string]interface{}{
		"queryCount":  len(rewritten.Queries),
		"resultCount": added,
	}})
	t.Telemetry.RecordToolInvocation(string(ActionSearch), time.Since(started), nil)

	return fmt.Sprintf("Searched %d queries, found %d new results.\n\n%s",
		len(rewritten.Queries), added, bank.Prompt()), nil
}
