package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/agent/telemetry"
	"github.com/sense-app/sense-ai-chat/internal/llmformat"
	"github.com/sense-app/sense-ai-chat/provider"
	"github.com/sense-app/sense-ai-chat/tools/web_search"
	searchmodels "github.com/sense-app/sense-ai-chat/tools/web_search/models"
)

const shopSynthesisPrompt = `You organize raw shopping listings for these search terms:
%s

Raw listings:
%s

Drop listings irrelevant to the search terms. Partition the remaining listings
into two groupings of the SAME underlying set:
- "productsGroup": canonical products offered by multiple stores, one entry per
  product with every store's listing, for price comparison.
- "storeGroup": remaining listings grouped by store, one entry per store.
A listing must appear in exactly one grouping, never both. If there are too
many listings, keep the most relevant and stop; partial results are fine.

Every listing needs name, a positive numeric price and currencyCode; carry over
url, imageUrl, storeName, delivery, offers, rating and ratingCount when present.

Respond with JSON:
{"summary": "<one paragraph>", "productsGroup": [{"productName": "...",
"products": [...]}], "storeGroup": [{"storeName": "...", "products": [...]}]}`

// ShopQuery is one product search term, optionally narrowed to stores
// the research step recommended.
type ShopQuery struct {
	Query  string   `json:"query"`
	Stores []string `json:"stores,omitempty"`
}

// ShopTool aggregates shopping-site listings for product search terms
// and partitions them by canonical product and by store.
type ShopTool struct {
	Searcher  web_search.Searcher
	Provider  provider.Provider
	Model     string
	MaxTokens int
	Logger    *log.Logger
	Telemetry *telemetry.Telemetry
}

type shopArgs struct {
	Thoughts string      `json:"thoughts,omitempty"`
	Products []ShopQuery `json:"products"`
}

func (t *ShopTool) Name() Action { return ActionShop }

func (t *ShopTool) Description() string {
	return actionDescriptions[ActionShop]
}

func (t *ShopTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thoughts": map[string]interface{}{"type": "string", "description": "Why these terms"},
			"products": map[string]interface{}{
				"type":        "array",
				"description": "Product search terms, optionally with candidate stores",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query":  map[string]interface{}{"type": "string", "description": "Product name, kind or category, with filters"},
						"stores": stringArray("Candidate store names"),
					},
					"required": []string{"query"},
				},
			},
		},
		"required": []string{"products"},
	}
}

func (t *ShopTool) Invoke(ctx context.Context, bank *KnowledgeBank, raw json.RawMessage, stream Stream) (string, error) {
	started := time.Now()
	var args shopArgs
	if err := provider.DecodeArguments(raw, &args); err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionShop), time.Since(started), err)
		return "", fmt.Errorf("shop arguments: %w", err)
	}
	if len(args.Products) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionShop), time.Since(started), nil)
		return "No product terms were provided; nothing to shop for.", nil
	}

	_ = stream.Annotate(Annotation{Type: "shop", Data: map[string]interface{}{
		"terms": terms(args.Products),
	}})

	var listings []searchmodels.ShoppingListing
	for _, p := range args.Products {
		q := p.Query
		if len(p.Stores) > 0 {
			q = q + " " + strings.Join(p.Stores, " ")
		}
		resp, err := t.Searcher.Shopping(ctx, q)
		t.Telemetry.RecordSearch("shopping", len(resp.Listings), err)
		if err != nil {
			// Best-effort batch, same as web search.
			t.Logger.Printf("shopping search failed for %q: %v", q, err)
			continue
		}
		listings = append(listings, resp.Listings...)
	}
	if len(listings) == 0 {
		t.Telemetry.RecordToolInvocation(string(ActionShop), time.Since(started), nil)
		return "No shopping listings were found for the given terms.", nil
	}

	results, err := t.synthesize(ctx, args.Products, listings)
	if err != nil {
		t.Telemetry.RecordToolInvocation(string(ActionShop), time.Since(started), err)
		return "", err
	}

	bank.AddProducts(results.Listings())
	bank.Apply(ActionShop)

	_ = stream.Data(map[string]interface{}{
		"type":            "shoppingResults",
		"shoppingResults": results,
	})
	_ = stream.Annotate(Annotation{Type: "shopResults", Data: map[string]interface{}{
		"productGroups": len(results.ProductsGroup),
		"storeGroups":   len(results.StoreGroup),
	}})
	t.Telemetry.RecordToolInvocation(string(ActionShop), time.Since(started), nil)

	return fmt.Sprintf("Shopping results organized.\n%s", llmformat.JSON(results)), nil
}

func (t *ShopTool) synthesize(ctx context.Context, queries []ShopQuery, listings []searchmodels.ShoppingListing) (ShoppingResults, error) {
	prompt := fmt.Sprintf(shopSynthesisPrompt, llmformat.JSON(queries), llmformat.JSON(listings))

	var out ShoppingResults
	if err := t.Provider.GenerateObject(ctx, t.Model, prompt, t.MaxTokens, &out); err != nil {
		// Malformed synthesis output surfaces as a typed schema error,
		// never as silently accepted data.
		return ShoppingResults{}, fmt.Errorf("shop synthesis: %w", err)
	}
	return out, nil
}

func terms(queries []ShopQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Query
	}
	return out
}
