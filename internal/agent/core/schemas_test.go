package core

import "testing"

func TestProductValidate(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{"valid", Product{Name: "Pegasus 41", Price: 99.95, CurrencyCode: "USD"}, false},
		{"missing name", Product{Price: 10, CurrencyCode: "USD"}, true},
		{"zero price", Product{Name: "x", CurrencyCode: "USD"}, true},
		{"negative price", Product{Name: "x", Price: -5, CurrencyCode: "USD"}, true},
		{"missing currency", Product{Name: "x", Price: 10}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.product.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestShoppingResultsGroupingsAreDisjoint(t *testing.T) {
	shared := Product{Name: "Pegasus 41", Price: 99.95, CurrencyCode: "USD", StoreName: "Nike"}

	valid := ShoppingResults{
		Summary: "ok",
		ProductsGroup: []ProductGroup{
			{ProductName: "Pegasus 41", Products: []Product{shared}},
		},
		StoreGroup: []StoreGroup{
			{StoreName: "REI", Products: []Product{
				{Name: "Trail Glove", Price: 79.99, CurrencyCode: "USD", StoreName: "REI"},
			}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("disjoint groupings rejected: %v", err)
	}

	overlapping := valid
	overlapping.StoreGroup = append(overlapping.StoreGroup, StoreGroup{
		StoreName: "Nike", Products: []Product{shared},
	})
	if err := overlapping.Validate(); err == nil {
		t.Fatal("product in both groupings must be rejected")
	}
}

func TestShoppingResultsListingsFlattensBothGroups(t *testing.T) {
	s := ShoppingResults{
		ProductsGroup: []ProductGroup{{ProductName: "a", Products: []Product{
			{Name: "a", Price: 1, CurrencyCode: "USD"},
			{Name: "a'", Price: 2, CurrencyCode: "USD"},
		}}},
		StoreGroup: []StoreGroup{{StoreName: "s", Products: []Product{
			{Name: "b", Price: 3, CurrencyCode: "USD"},
		}}},
	}
	if got := len(s.Listings()); got != 3 {
		t.Errorf("Listings() = %d products, want 3", got)
	}
}

func TestResearchResultValidate(t *testing.T) {
	if err := (ResearchResult{}).Validate(); err == nil {
		t.Error("empty research result should fail validation")
	}
	ok := ResearchResult{Products: []ResearchProduct{{Name: "Pegasus 41", Reasoning: "well reviewed"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid research result rejected: %v", err)
	}
}

func TestSearchQueriesValidate(t *testing.T) {
	if err := (SearchQueries{Thoughts: "t"}).Validate(); err == nil {
		t.Error("empty query list should fail validation")
	}
	if err := (SearchQueries{Queries: []string{"ok"}}).Validate(); err != nil {
		t.Errorf("valid queries rejected: %v", err)
	}
}
