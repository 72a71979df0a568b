package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sense-app/sense-ai-chat/internal/llmformat"
	"github.com/sense-app/sense-ai-chat/provider"
)

const learnPrompt = `You extract shopping knowledge from web pages.

The user asked: %s

Open questions:
%s

Page contents:
%s

From the pages, extract:
- "learnings": short factual findings relevant to the user's request
- "followUpQuestions": new questions worth investigating next
- "products": every concrete product found, with as much metadata as the
  page gives. Each product needs name, a positive numeric price, and
  currencyCode; include url, imageUrl, storeName, delivery, offers,
  rating and ratingCount when available. Skip products without a price.

Respond with JSON: {"learnings": [...], "followUpQuestions": [...], "products": [...]}`

// PageContent pairs a fetched URL with its extracted text.
type PageContent struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Learner synthesizes learnings, follow-up questions and products from
// fetched page contents.
type Learner struct {
	Provider provider.Provider
	Model    string
	Logger   *log.Logger
}

func (l *Learner) Learn(ctx context.Context, pages []PageContent, questions []string, userMessage string) (Learnings, error) {
	if len(pages) == 0 {
		return Learnings{}, fmt.Errorf("no page contents to learn from")
	}

	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString("URL: ")
		sb.WriteString(p.URL)
		sb.WriteString("\n")
		sb.WriteString(p.Content)
		sb.WriteString("\n---\n")
	}

	prompt := fmt.Sprintf(learnPrompt, userMessage, llmformat.JSON(questions), sb.String())

	var out Learnings
	if err := l.Provider.GenerateObject(ctx, l.Model, prompt, 0, &out); err != nil {
		return Learnings{}, fmt.Errorf("learn call: %w", err)
	}
	l.Logger.Printf("learned %d findings, %d follow-ups, %d products from %d pages",
		len(out.Learnings), len(out.FollowUpQuestions), len(out.Products), len(pages))
	return out, nil
}
