package core

import (
	"context"
	"fmt"
	"log"

	"github.com/sense-app/sense-ai-chat/internal/llmformat"
	"github.com/sense-app/sense-ai-chat/provider"
)

const dedupPrompt = `You deduplicate search questions for a shopping assistant.

Two questions are duplicates ONLY when they share identical base keywords AND
identical operators. Operators are: site:, filetype:, lang:, loc:, intitle:,
inbody:, exact-phrase quoting, and +/- inclusion/exclusion. Two otherwise
similar questions with different operators are NOT duplicates. Compare the new
questions against each other and against the existing ones.

New questions:
%s

Existing questions:
%s

Respond with JSON: {"thoughts": "<reasoning>", "uniqueQueries": ["<question>", ...]}
uniqueQueries must list only new questions that are not duplicates.`

// Deduplicator filters candidate questions that semantically repeat
// questions the bank already holds.
type Deduplicator struct {
	Provider provider.Provider
	Model    string
	Logger   *log.Logger
}

// Dedup returns the subset of candidates that are not duplicates of each
// other or of the existing questions.
func (d *Deduplicator) Dedup(ctx context.Context, candidates, existing []string) (DedupResult, error) {
	prompt := fmt.Sprintf(dedupPrompt, llmformat.JSON(candidates), llmformat.JSON(existing))

	var out DedupResult
	if err := d.Provider.GenerateObject(ctx, d.Model, prompt, 0, &out); err != nil {
		return DedupResult{}, fmt.Errorf("dedup call: %w", err)
	}
	return out, nil
}
