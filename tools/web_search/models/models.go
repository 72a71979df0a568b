package models

// Result is one normalized organic search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Response is the outcome of one general web search.
type Response struct {
	Query   string         `json:"query"`
	Organic []Result       `json:"organic"`
	Related []string       `json:"related"`
	Raw     map[string]any `json:"raw,omitempty"` // provider-native payload, kept for prompt folding
}

// ShoppingListing is one raw shopping hit from the provider.
type ShoppingListing struct {
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Link        string  `json:"link"`
	Price       string  `json:"price"`
	Delivery    string  `json:"delivery,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"ratingCount,omitempty"`
	Offers      string  `json:"offers,omitempty"`
	Position    int     `json:"position,omitempty"`
}

// ShoppingResponse is the outcome of one shopping-type search.
type ShoppingResponse struct {
	Query    string            `json:"query"`
	Listings []ShoppingListing `json:"listings"`
	Raw      map[string]any    `json:"raw,omitempty"`
}
