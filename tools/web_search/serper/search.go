package serper

import (
	"context"
	"fmt"
	"strings"

	"github.com/sense-app/sense-ai-chat/internal/helpers"
	"github.com/sense-app/sense-ai-chat/internal/httpx"
	"github.com/sense-app/sense-ai-chat/tools/web_search/models"
)

const (
	searchURL   = "https://google.serper.dev/search"
	shoppingURL = "https://google.serper.dev/shopping"
)

// Search is the Serper-backed search gateway.
// https://serper.dev/ docs
type Search struct {
	APIKey      string
	CountryCode string
	City        string
	Num         int
	HTTP        *httpx.Client
}

func (s *Search) payload(q string) map[string]any {
	p := map[string]any{
		"q":   q,
		"num": s.Num,
		"tbs": "qdr:y", // favor listings from the last year
	}
	if s.CountryCode != "" {
		p["gl"] = strings.ToLower(s.CountryCode)
	}
	if s.City != "" {
		p["location"] = s.City
	}
	return p
}

func (s *Search) headers() map[string]string {
	return map[string]string{
		"X-API-KEY":    s.APIKey,
		"Content-Type": "application/json",
	}
}

// Search runs one general web search.
func (s *Search) Search(ctx context.Context, q string) (models.Response, error) {
	var raw map[string]any
	if err := s.HTTP.DoJSON(ctx, "POST", searchURL, s.headers(), s.payload(q), &raw); err != nil {
		return models.Response{}, fmt.Errorf("serper search %q: %w", q, err)
	}

	out := models.Response{Query: q, Raw: raw}
	if items, ok := raw["organic"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out.Organic = append(out.Organic, models.Result{
				Title:       helpers.SanitizeText(str(m["title"])),
				URL:         str(m["link"]),
				Description: helpers.SanitizeText(str(m["snippet"])),
				Icon:        str(m["favicon"]),
			})
		}
	}
	if items, ok := raw["relatedSearches"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if q := str(m["query"]); q != "" {
				out.Related = append(out.Related, q)
			}
		}
	}
	return out, nil
}

// Shopping runs one shopping-type search.
func (s *Search) Shopping(ctx context.Context, q string) (models.ShoppingResponse, error) {
	var raw map[string]any
	if err := s.HTTP.DoJSON(ctx, "POST", shoppingURL, s.headers(), s.payload(q), &raw); err != nil {
		return models.ShoppingResponse{}, fmt.Errorf("serper shopping %q: %w", q, err)
	}

	out := models.ShoppingResponse{Query: q, Raw: raw}
	if items, ok := raw["shopping"].([]any); ok {
		for i, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out.Listings = append(out.Listings, models.ShoppingListing{
				Title:       helpers.SanitizeText(str(m["title"])),
				Source:      str(m["source"]),
				Link:        str(m["link"]),
				Price:       str(m["price"]),
				Delivery:    str(m["delivery"]),
				ImageURL:    str(m["imageUrl"]),
				Rating:      num(m["rating"]),
				RatingCount: int(num(m["ratingCount"])),
				Offers:      str(m["offers"]),
				Position:    i + 1,
			})
		}
	}
	return out, nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}
