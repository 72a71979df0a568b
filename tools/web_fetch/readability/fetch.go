// Package readability fetches raw HTML over HTTP and extracts the main
// article text. It skips pages behind heavy client-side rendering; the
// jina fetcher handles those better.
package readability

import (
	"context"
	"net/url"
	"strings"

	goreadability "github.com/go-shiori/go-readability"

	"github.com/sense-app/sense-ai-chat/internal/httpx"
)

type Fetch struct {
	MaxChars int
	HTTP     *httpx.Client
}

func (f *Fetch) Fetch(ctx context.Context, pageURL string) (string, error) {
	html, err := f.HTTP.DoText(ctx, "GET", pageURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; sense-ai-chat/1.0)",
	})
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := goreadability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		// Extraction failure is not a transport failure; the caller
		// records an empty page and moves on.
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return text, nil
}
