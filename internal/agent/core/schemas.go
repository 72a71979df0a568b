package core

import (
	"fmt"
	"strings"
)

// Product is a structured product record accumulated in the knowledge
// bank and returned to the client. Price and currency are mandatory;
// everything else is best-effort metadata the synthesis step could pull
// from the page or listing.
type Product struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	CurrencyCode string  `json:"currencyCode"`
	URL          string  `json:"url,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	StoreName    string  `json:"storeName,omitempty"`
	Delivery     string  `json:"delivery,omitempty"`
	Offers       string  `json:"offers,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	RatingCount  int     `json:"ratingCount,omitempty"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is empty")
	}
	if p.Price <= 0 {
		return fmt.Errorf("product %q has non-positive price %v", p.Name, p.Price)
	}
	if strings.TrimSpace(p.CurrencyCode) == "" {
		return fmt.Errorf("product %q has no currency code", p.Name)
	}
	return nil
}

// key identifies a product instance for grouping-overlap checks.
func (p Product) key() string {
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" +
		strings.ToLower(strings.TrimSpace(p.StoreName)) + "|" + p.URL
}

// SearchQueries is the query rewriter's structured output for one topic:
// a short strategy note plus a handful of operator-qualified queries.
type SearchQueries struct {
	Thoughts string   `json:"thoughts"`
	Queries  []string `json:"queries"`
}

func (s SearchQueries) Validate() error {
	if len(s.Queries) == 0 {
		return fmt.Errorf("rewriter returned no queries")
	}
	for i, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("rewriter query %d is empty", i)
		}
	}
	return nil
}

// DedupResult is the deduplicator's structured output: the subset of
// candidate questions that survived, plus the reasoning trace.
type DedupResult struct {
	Thoughts      string   `json:"thoughts"`
	UniqueQueries []string `json:"uniqueQueries"`
}

func (d DedupResult) Validate() error {
	for i, q := range d.UniqueQueries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("dedup result query %d is empty", i)
		}
	}
	return nil
}

// Learnings is the read synthesis output: findings extracted from page
// contents, follow-up questions, and any products discovered on the way.
type Learnings struct {
	Learnings         []string  `json:"learnings"`
	FollowUpQuestions []string  `json:"followUpQuestions"`
	Products          []Product `json:"products"`
}

func (l Learnings) Validate() error {
	for _, p := range l.Products {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CandidateStore is a store recommended for a candidate product during
// research.
type CandidateStore struct {
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// ResearchProduct is one ranked candidate from the research sub-loop.
type ResearchProduct struct {
	Name      string           `json:"name"`
	Filters   string           `json:"filters,omitempty"`
	Reasoning string           `json:"reasoning"`
	Stores    []CandidateStore `json:"stores"`
}

// ResearchResult is the research tool's final synthesis.
type ResearchResult struct {
	Thoughts string            `json:"thoughts"`
	Products []ResearchProduct `json:"products"`
}

func (r ResearchResult) Validate() error {
	if len(r.Products) == 0 {
		return fmt.Errorf("research produced no candidate products")
	}
	for i, p := range r.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("research product %d has no name", i)
		}
	}
	return nil
}

// ProductGroup collects every store's listing of one canonical product,
// for cross-store price comparison.
type ProductGroup struct {
	ProductName string    `json:"productName"`
	Products    []Product `json:"products"`
}

// StoreGroup collects every product a single store offers.
type StoreGroup struct {
	StoreName string    `json:"storeName"`
	Products  []Product `json:"products"`
}

// ShoppingResults is the shop synthesis output: the same underlying
// listings partitioned two ways. A listing belongs to exactly one of
// the two groupings, never both.
type ShoppingResults struct {
	Summary       string         `json:"summary"`
	ProductsGroup []ProductGroup `json:"productsGroup"`
	StoreGroup    []StoreGroup   `json:"storeGroup"`
}

func (s ShoppingResults) Validate() error {
	inProductGroup := map[string]bool{}
	for _, g := range s.ProductsGroup {
		if strings.TrimSpace(g.ProductName) == "" {
			return fmt.Errorf("product group has no name")
		}
		for _, p := range g.Products {
			if err := p.Validate(); err != nil {
				return err
			}
			inProductGroup[p.key()] = true
		}
	}
	for _, g := range s.StoreGroup {
		if strings.TrimSpace(g.StoreName) == "" {
			return fmt.Errorf("store group has no name")
		}
		for _, p := range g.Products {
			if err := p.Validate(); err != nil {
				return err
			}
			if inProductGroup[p.key()] {
				return fmt.Errorf("product %q appears in both groupings", p.Name)
			}
		}
	}
	return nil
}

// Listings flattens both groupings into one product list.
func (s ShoppingResults) Listings() []Product {
	var out []Product
	for _, g := range s.ProductsGroup {
		out = append(out, g.Products...)
	}
	for _, g := range s.StoreGroup {
		out = append(out, g.Products...)
	}
	return out
}
