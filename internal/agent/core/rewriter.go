package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sense-app/sense-ai-chat/provider"
)

const rewriterPrompt = `You are a search query expander for a shopping assistant.
Rewrite the topic below into 1-3 web search queries. Prefer concise 2-4 word
base keyword sets, and qualify them with search operators where useful:
exact-phrase quoting, +include / -exclude terms, site:, filetype:, lang:,
loc:, intitle:, inbody:.

Topic: %s

Respond with JSON: {"thoughts": "<strategy>", "queries": ["<query>", ...]}`

// QueryRewriter expands natural-language topics into operator-qualified
// search queries, one concurrent model call per topic.
type QueryRewriter struct {
	Provider provider.Provider
	Model    string
	Logger   *log.Logger
}

// Rewrite fans out one structured call per topic and merges the results.
// A failed topic is dropped and logged; the rewrite only fails when no
// topic survives.
func (r *QueryRewriter) Rewrite(ctx context.Context, topics []string) (SearchQueries, error) {
	if len(topics) == 0 {
		return SearchQueries{}, fmt.Errorf("no topics to rewrite")
	}

	results := make([]*SearchQueries, len(topics))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			var out SearchQueries
			err := r.Provider.GenerateObject(ctx, r.Model, fmt.Sprintf(rewriterPrompt, topic), 0, &out)
			if err != nil {
				r.Logger.Printf("rewrite failed for topic %q: %v", topic, err)
				return
			}
			results[i] = &out
		}(i, topic)
	}
	wg.Wait()

	var merged SearchQueries
	var thoughts []string
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Thoughts != "" {
			thoughts = append(thoughts, res.Thoughts)
		}
		merged.Queries = append(merged.Queries, res.Queries...)
	}
	if len(merged.Queries) == 0 {
		return SearchQueries{}, fmt.Errorf("rewrite failed for all %d topics", len(topics))
	}
	merged.Thoughts = strings.Join(thoughts, "\n")
	return merged, nil
}
