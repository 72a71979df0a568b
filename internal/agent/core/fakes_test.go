package core

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"

	"github.com/sense-app/sense-ai-chat/provider"
	searchmodels "github.com/sense-app/sense-ai-chat/tools/web_search/models"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

type fakeProvider struct {
	chatFn     func(ctx context.Context, model string, messages []provider.Message) (string, error)
	toolsFn    func(ctx context.Context, model string, messages []provider.Message, tools []provider.ToolDef) (provider.Completion, error)
	generateFn func(ctx context.Context, model, prompt string, maxTokens int, out interface{}) error
}

func (f *fakeProvider) Chat(ctx context.Context, model string, messages []provider.Message) (string, error) {
	if f.chatFn == nil {
		return "", nil
	}
	return f.chatFn(ctx, model, messages)
}

func (f *fakeProvider) ChatWithTools(ctx context.Context, model string, messages []provider.Message, tools []provider.ToolDef) (provider.Completion, error) {
	if f.toolsFn == nil {
		return provider.Completion{}, nil
	}
	return f.toolsFn(ctx, model, messages, tools)
}

func (f *fakeProvider) GenerateObject(ctx context.Context, model, prompt string, maxTokens int, out interface{}) error {
	if f.generateFn == nil {
		return nil
	}
	return f.generateFn(ctx, model, prompt, maxTokens, out)
}

// generateJSON builds a generateFn that always decodes the given JSON.
func generateJSON(t *testing.T, raw string) func(context.Context, string, string, int, interface{}) error {
	t.Helper()
	return func(_ context.Context, _, _ string, _ int, out interface{}) error {
		return json.Unmarshal([]byte(raw), out)
	}
}

type fakeSearcher struct {
	searchFn   func(ctx context.Context, query string) (searchmodels.Response, error)
	shoppingFn func(ctx context.Context, query string) (searchmodels.ShoppingResponse, error)
	queries    []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (searchmodels.Response, error) {
	f.queries = append(f.queries, query)
	if f.searchFn == nil {
		return searchmodels.Response{Query: query}, nil
	}
	return f.searchFn(ctx, query)
}

func (f *fakeSearcher) Shopping(ctx context.Context, query string) (searchmodels.ShoppingResponse, error) {
	f.queries = append(f.queries, query)
	if f.shoppingFn == nil {
		return searchmodels.ShoppingResponse{Query: query}, nil
	}
	return f.shoppingFn(ctx, query)
}

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	return f.pages[url], nil
}

func mustArgs(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return raw
}
