package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sense-app/sense-ai-chat/provider"
	searchmodels "github.com/sense-app/sense-ai-chat/tools/web_search/models"
)

func TestReflectReplacesQuestionsAndWithdrawsItself(t *testing.T) {
	prov := &fakeProvider{generateFn: generateJSON(t, `{"thoughts":"t","uniqueQueries":["brands under $100"]}`)}
	tool := &ReflectTool{
		Dedup:  &Deduplicator{Provider: prov, Model: "small", Logger: testLogger()},
		Logger: testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	bank.AddQuestions([]string{"existing question"})
	rec := &Recorder{}

	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, reflectArgs{
		Questions: []string{"brands under $100", "existing question"},
	}), rec)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if len(bank.Questions) != 1 || bank.Questions[0] != "brands under $100" {
		t.Errorf("questions = %v, want deduplicated subset", bank.Questions)
	}
	if bank.State() != StateAwaitingSignal {
		t.Errorf("state = %v, want awaiting_signal", bank.State())
	}
	if len(rec.Annotations) == 0 || rec.Annotations[0].Type != "reflect" {
		t.Errorf("missing reflect annotation: %+v", rec.Annotations)
	}
}

func TestReflectDedupFailureFallsBack(t *testing.T) {
	prov := &fakeProvider{generateFn: func(context.Context, string, string, int, interface{}) error {
		return errors.New("model down")
	}}
	tool := &ReflectTool{
		Dedup:  &Deduplicator{Provider: prov, Model: "small", Logger: testLogger()},
		Logger: testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	bank.AddQuestions([]string{"existing"})

	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, reflectArgs{
		Questions: []string{"q1", "q2"},
	}), NopStream{})
	if err != nil {
		t.Fatalf("dedup failure must not abort the turn: %v", err)
	}
	if len(bank.Questions) != 2 {
		t.Errorf("fallback should keep all candidates, got %v", bank.Questions)
	}
}

func TestSearchAddsResultsAndRelatedQuestions(t *testing.T) {
	prov := &fakeProvider{generateFn: generateJSON(t, `{"thoughts":"strategy","queries":["\"running shoes\" site:runnersworld.com"]}`)}
	searcher := &fakeSearcher{searchFn: func(_ context.Context, q string) (searchmodels.Response, error) {
		return searchmodels.Response{
			Query: q,
			Organic: []searchmodels.Result{
				{Title: "Best shoes", URL: "https://a.example", Description: "top picks"},
			},
			Related: []string{"trail running shoes under $100"},
		}, nil
	}}

	tool := &SearchTool{
		Rewriter: &QueryRewriter{Provider: prov, Model: "small", Logger: testLogger()},
		Searcher: searcher,
		Logger:   testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	bank.Apply(ActionReflect) // narrow the set first so search restores it

	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, searchArgs{
		Queries: []string{"running shoes"},
	}), NopStream{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if len(bank.SearchResults) != 1 || bank.SearchResults[0].URL != "https://a.example" {
		t.Errorf("search results = %+v", bank.SearchResults)
	}
	if len(bank.Questions) != 1 || bank.Questions[0] != "trail running shoes under $100" {
		t.Errorf("related searches not harvested: %v", bank.Questions)
	}
	if bank.State() != StateAwaitingReflect {
		t.Errorf("state = %v, want full action set restored", bank.State())
	}
	if len(searcher.queries) != 1 || !strings.Contains(searcher.queries[0], "site:") {
		t.Errorf("rewritten query not used: %v", searcher.queries)
	}
}

func TestSearchFailingQueryDoesNotAbortBatch(t *testing.T) {
	prov := &fakeProvider{generateFn: generateJSON(t, `{"thoughts":"t","queries":["q1","q2"]}`)}
	searcher := &fakeSearcher{searchFn: func(_ context.Context, q string) (searchmodels.Response, error) {
		if q == "q1" {
			return searchmodels.Response{}, errors.New("gateway 500")
		}
		return searchmodels.Response{
			Organic: []searchmodels.Result{{Title: "ok", URL: "https://ok.example"}},
		}, nil
	}}

	tool := &SearchTool{
		Rewriter: &QueryRewriter{Provider: prov, Model: "small", Logger: testLogger()},
		Searcher: searcher,
		Logger:   testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, searchArgs{Queries: []string{"topic"}}), NopStream{})
	if err != nil {
		t.Fatalf("partial failure must not abort: %v", err)
	}
	if len(bank.SearchResults) != 1 {
		t.Errorf("surviving query contributed %d results, want 1", len(bank.SearchResults))
	}
}

func TestReadSynthesizesAndConsumesURLs(t *testing.T) {
	prov := &fakeProvider{generateFn: generateJSON(t, `{
		"learnings":["Pegasus 41 is well reviewed"],
		"followUpQuestions":["Pegasus 41 sale price"],
		"products":[{"name":"Pegasus 41","price":99.95,"currencyCode":"USD","storeName":"Nike"}]
	}`)}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example": "page about Pegasus 41",
		// b.example missing: fetch yields empty, filtered out
	}}

	tool := &ReadTool{
		Fetcher: fetcher,
		Learner: &Learner{Provider: prov, Model: "large", Logger: testLogger()},
		Logger:  testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	bank.AddSearchResults([]SearchResult{
		{Title: "a", URL: "https://a.example"},
		{Title: "b", URL: "https://b.example"},
		{Title: "c", URL: "https://c.example"},
	})

	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, readArgs{
		URLs: []string{"https://a.example", "https://b.example"},
	}), NopStream{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if len(bank.SearchResults) != 1 || bank.SearchResults[0].URL != "https://c.example" {
		t.Errorf("read urls not consumed: %+v", bank.SearchResults)
	}
	if len(bank.Learnings) != 1 {
		t.Errorf("learnings = %v", bank.Learnings)
	}
	if len(bank.Products) != 1 || bank.Products[0].CurrencyCode != "USD" {
		t.Errorf("products = %+v", bank.Products)
	}
	if len(bank.Questions) != 1 {
		t.Errorf("follow-up questions = %v", bank.Questions)
	}
}

func TestShopGroupsListings(t *testing.T) {
	prov := &fakeProvider{generateFn: generateJSON(t, `{
		"summary":"Two stores carry the Pegasus 41.",
		"productsGroup":[{"productName":"Pegasus 41","products":[
			{"name":"Pegasus 41","price":99.95,"currencyCode":"USD","storeName":"Nike"},
			{"name":"Pegasus 41","price":94.99,"currencyCode":"USD","storeName":"Zappos"}
		]}],
		"storeGroup":[{"storeName":"REI","products":[
			{"name":"Trail Glove","price":79.99,"currencyCode":"USD","storeName":"REI"}
		]}]
	}`)}
	searcher := &fakeSearcher{shoppingFn: func(_ context.Context, q string) (searchmodels.ShoppingResponse, error) {
		return searchmodels.ShoppingResponse{
			Query: q,
			Listings: []searchmodels.ShoppingListing{
				{Title: "Pegasus 41", Source: "Nike", Price: "$99.95"},
			},
		}, nil
	}}

	tool := &ShopTool{
		Searcher: searcher,
		Provider: prov,
		Model:    "large",
		Logger:   testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	rec := &Recorder{}
	_, err := tool.Invoke(context.Background(), bank, mustArgs(t, shopArgs{
		Products: []ShopQuery{{Query: "running shoes under $100"}},
	}), rec)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if len(bank.Products) != 3 {
		t.Errorf("bank products = %d, want all grouped listings", len(bank.Products))
	}
	for _, p := range bank.Products {
		if p.Price <= 0 || p.CurrencyCode == "" {
			t.Errorf("product %+v missing price or currency", p)
		}
	}
	if len(rec.Payloads) != 1 {
		t.Errorf("shopping results not streamed as data: %+v", rec.Payloads)
	}
}

func TestShopSynthesisFailureSurfaces(t *testing.T) {
	prov := &fakeProvider{generateFn: func(context.Context, string, string, int, interface{}) error {
		return errors.New("schema validation failed")
	}}
	searcher := &fakeSearcher{shoppingFn: func(_ context.Context, q string) (searchmodels.ShoppingResponse, error) {
		return searchmodels.ShoppingResponse{
			Listings: []searchmodels.ShoppingListing{{Title: "x", Price: "$1"}},
		}, nil
	}}

	tool := &ShopTool{Searcher: searcher, Provider: prov, Model: "large", Logger: testLogger()}

	_, err := tool.Invoke(context.Background(), NewKnowledgeBank(nil), mustArgs(t, shopArgs{
		Products: []ShopQuery{{Query: "anything"}},
	}), NopStream{})
	if err == nil {
		t.Fatal("malformed synthesis output must surface an error")
	}
}

func TestResearchStopsAtStepBudget(t *testing.T) {
	calls := 0
	prov := &fakeProvider{
		toolsFn: func(_ context.Context, _ string, _ []provider.Message, _ []provider.ToolDef) (provider.Completion, error) {
			calls++
			// Never finalizes: every step asks for another nested search.
			return provider.Completion{ToolCalls: []provider.ToolCall{{
				ID:        "c1",
				Name:      "search",
				Arguments: mustArgs(t, map[string]interface{}{"queries": []string{"trail shoes"}}),
			}}}, nil
		},
		generateFn: generateJSON(t, `{"thoughts":"t","products":[{"name":"Peg Trail","filters":"under $100","reasoning":"fits","stores":[{"name":"Nike","reason":"direct"}]}]}`),
	}
	searcher := &fakeSearcher{searchFn: func(_ context.Context, q string) (searchmodels.Response, error) {
		return searchmodels.Response{Query: q, Organic: []searchmodels.Result{
			{Title: "review", URL: "https://r.example/" + q},
		}}, nil
	}}

	tool := &ResearchTool{
		Provider: prov,
		Model:    "reasoning",
		Searcher: searcher,
		Fetcher:  &fakeFetcher{},
		MaxSteps: 3,
		Logger:   testLogger(),
	}

	bank := NewKnowledgeBank(nil)
	out, err := tool.Invoke(context.Background(), bank, mustArgs(t, map[string]interface{}{
		"thoughts": "compare trail shoes",
		"queries":  []string{"trail shoes"},
		"intent":   "trail running shoes under $100",
	}), NopStream{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if calls != 3 {
		t.Errorf("nested loop ran %d steps, want 3", calls)
	}
	if !strings.Contains(out, "Peg Trail") || !strings.Contains(out, "Nike") {
		t.Errorf("synthesized candidates missing from result:\n%s", out)
	}
}

func TestResearchDoesNotMutateBank(t *testing.T) {
	prov := &fakeProvider{
		toolsFn: func(_ context.Context, _ string, _ []provider.Message, _ []provider.ToolDef) (provider.Completion, error) {
			return provider.Completion{ToolCalls: []provider.ToolCall{{
				ID:        "c1",
				Name:      "read",
				Arguments: mustArgs(t, map[string]interface{}{"urls": []string{"https://p.example/specs"}}),
			}}}, nil
		},
		generateFn: generateJSON(t, `{"thoughts":"t","products":[{"name":"Peg Trail","reasoning":"fits","stores":[{"name":"Nike","reason":"direct"}]}]}`),
	}

	tool := &ResearchTool{
		Provider: prov,
		Model:    "reasoning",
		Searcher: &fakeSearcher{},
		Fetcher:  &fakeFetcher{pages: map[string]string{"https://p.example/specs": "specs text"}},
		MaxSteps: 2,
		Logger:   testLogger(),
	}

	bank := NewKnowledgeBank([]provider.Message{{Role: "user", Content: "trail shoes"}})
	bank.AddQuestions([]string{"which brands"})
	bank.AddSearchResults([]SearchResult{{Title: "a", URL: "https://a.example"}})
	before := bank.Prompt()
	stateBefore := bank.State()

	if _, err := tool.Invoke(context.Background(), bank, mustArgs(t, map[string]interface{}{
		"thoughts": "dig deeper",
		"queries":  []string{"trail shoes"},
	}), NopStream{}); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if got := bank.Prompt(); got != before {
		t.Errorf("bank changed during research:\nbefore:\n%s\nafter:\n%s", before, got)
	}
	if bank.State() != stateBefore {
		t.Errorf("bank state changed: %v -> %v", stateBefore, bank.State())
	}
}
