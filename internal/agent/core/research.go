package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/internal/llmformat"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/tools/web_fetch"
	"github.com/sense-app/sense-ai-chat/tools/web_search"
)

const researchSystemPrompt = `You are a product researcher. Use the search tool to find
webpages about the candidate products, and the read tool to read promising URLs.
Alternate between them until you know which concrete products best match the
request and which stores carry them, then answer with a short summary.`

const researchSynthesisPrompt = `Based on the research transcript below, produce a ranked
list of candidate products for the request, each with the stores most likely to
carry it and the reasoning behind the ranking.

Request: %s

Transcript:
%s

Respond with JSON:
{"thoughts": "<overall reasoning>", "products": [{"name": "...", "filters": "...",
"reasoning": "...", "stores": [{"name": "...", "reason": "..."}]}]}`

// researchState is the tool's private aggregate. It never touches the
// turn's knowledge bank; the synthesized result is handed upward.
type researchState struct {
	queries  []string
	results  []SearchResult
	pages    []PageContent
	thoughts []string
	seenURLs map[string]bool
}

func (s *researchState) transcript() string {
	var b strings.Builder
	b.WriteString("Queries Issued:\n")
	b.WriteString(llmformat.JSON(s.queries))
	b.WriteString("\n\nSearch Results:\n")
	b.WriteString(llmformat.JSON(s.results))
	b.WriteString("\n\nPages Read:\n")
	for _, p := range s.pages {
		b.WriteString(p.URL)
		b.WriteString("\n")
		b.WriteString(p.Content)
		b.WriteString("\n---\n")
	}
	b.WriteString("\nThoughts:\n")
	b.WriteString(llmformat.JSON(s.thoughts))
	return b.String()
}

// ResearchTool runs a bounded nested loop in which a model alternates
// between searching and reading against a private aggregate, then
// synthesizes ranked product candidates with recommended stores.
type ResearchTool struct {
	Provider  provider.Provider
	Model     string
	Searcher  web_search.Searcher
	Fetcher   web_fetch.Fetcher
	MaxSteps  int
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

type researchArgs struct {
	Thoughts string   `json:"thoughts"`
	Queries  []string `json:"queries"`
	Intent   string   `json:"intent,omitempty"`
}

func (t *ResearchTool) Name() Action { return ActionResearch }

func (t *ResearchTool) Description() string {
	return actionDescriptions[ActionResearch]
}

func (t *ResearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thoughts": map[string]interface{}{"type": "string", "description": "What to find out"},
			"queries":  stringArray("Seed queries for the research loop"),
			"intent":   map[string]interface{}{"type": "string", "description": "One-line summary of the user's intent"},
		},
		"required": []string{"thoughts", "queries"},
	}
}

func (t *ResearchTool) Invoke(ctx context.Context, bank *KnowledgeBank, raw json.RawMessage, stream Stream) (string, error) {
	started := time.Now()
	var args researchArgs
	if err := provider.DecodeArguments(raw, &args); err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionResearch), time.Since(started), err)
		return "", fmt.Errorf("research arguments: %w", err)
	}
	intent := args.Intent
	if intent == "" {
		intent = bank.LatestUserMessage()
	}

	_ = stream.Annotate(Annotation{Type: "research", Data: map[string]interface{}{
		"queries": args.Queries,
	}})

	state := &researchState{seenURLs: map[string]bool{}}
	if args.Thoughts != "" {
		state.thoughts = append(state.thoughts, args.Thoughts)
	}

	result, err := t.loop(ctx, intent, args.Queries, state)
	if err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionResearch), time.Since(started), err)
		return "", err
	}

	_ = stream.Annotate(Annotation{Type: "researchResults", Data: map[string]interface{}{
		"candidateCount": len(result.Products),
	}})
	t.Telemetry.RecordToolInvocation(string(ActionResearch), time.Since(started), nil)

	return fmt.Sprintf("Research complete.\n%s", llmformat.JSON(result)), nil
}

func (t *ResearchTool) loop(ctx context.Context, intent string, seeds []string, state *researchState) (ResearchResult, error) {
	defs := []provider.ToolDef{
		{
			Name:        "search",
			Description: "Search the web for the given queries.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"queries": stringArray("Search queries"),
				},
				"required": []string{"queries"},
			},
		},
		{
			Name:        "read",
			Description: "Read the given webpage URLs.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"urls": stringArray("Webpage URLs to read"),
				},
				"required": []string{"urls"},
			},
		},
	}

	messages := []provider.Message{
		{Role: "system", Content: researchSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Request: %s\nSeed queries: %s", intent, strings.Join(seeds, "; "))},
	}

	maxSteps := t.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	for step := 0; step < maxSteps; step++ {
		completion, err := t.Provider.ChatWithTools(ctx, t.Model, messages, defs)
		if err != nil {
			return ResearchResult{}, fmt.Errorf("research step %d: %w", step, err)
		}
		if len(completion.ToolCalls) == 0 {
			if completion.Content != "" {
				state.thoughts = append(state.thoughts, completion.Content)
			}
			break
		}

		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			result := t.executeNested(ctx, call, state)
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return t.synthesize(ctx, intent, state)
}

func (t *ResearchTool) executeNested(ctx context.Context, call provider.ToolCall, state *researchState) string {
	switch call.Name {
	case "search":
		var args struct {
			Queries []string `json:"queries"`
		}
		if err := provider.DecodeArguments(call.Arguments, &args); err != nil {
			return fmt.Sprintf("invalid search arguments: %v", err)
		}
		found := 0
		for _, q := range args.Queries {
			state.queries = append(state.queries, q)
			resp, err := t.Searcher.Search(ctx, q)
			t.Telemetry.RecordSearch("web", len(resp.Organic), err)
			if err != nil {
				t.Logger.Printf("research search failed for %q: %v", q, err)
				continue
			}
			for _, r := range resp.Organic {
				if state.seenURLs[r.URL] {
					continue
				}
				state.seenURLs[r.URL] = true
				state.results = append(state.results, SearchResult{
					Title: r.Title, URL: r.URL, Description: r.Description, Icon: r.Icon,
				})
				found++
			}
		}
		return fmt.Sprintf("Found %d new results.\n%s", found, llmformat.JSON(state.results))

	case "read":
		var args struct {
			URLs []string `json:"urls"`
		}
		if err := provider.DecodeArguments(call.Arguments, &args); err != nil {
			return fmt.Sprintf("invalid read arguments: %v", err)
		}
		contents := make([]string, len(args.URLs))
		var wg sync.WaitGroup
		for i, u := range args.URLs {
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				text, err := t.Fetcher.Fetch(ctx, u)
				t.Telemetry.RecordFetch(u, len(text), err)
				if err != nil {
					t.Logger.Printf("research fetch failed for %s: %v", u, err)
					return
				}
				contents[i] = text
			}(i, u)
		}
		wg.Wait()
		read := 0
		var b strings.Builder
		for i, text := range contents {
			if text == "" {
				continue
			}
			state.pages = append(state.pages, PageContent{URL: args.URLs[i], Content: text})
			b.WriteString(args.URLs[i])
			b.WriteString(":\n")
			b.WriteString(text)
			b.WriteString("\n---\n")
			read++
		}
		if read == 0 {
			return "None of the pages could be read."
		}
		return b.String()

	default:
		return fmt.Sprintf("unknown tool %q", call.Name)
	}
}

func (t *ResearchTool) synthesize(ctx context.Context, intent string, state *researchState) (ResearchResult, error) {
	prompt := fmt.Sprintf(researchSynthesisPrompt, intent, state.transcript())

	var out ResearchResult
	if err := t.Provider.GenerateObject(ctx, t.Model, prompt, 0, &out); err != nil {
		return ResearchResult{}, fmt.Errorf("research synthesis: %w", err)
	}
	return out, nil
}
