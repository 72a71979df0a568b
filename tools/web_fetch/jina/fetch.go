// Package jina fetches page content through the Jina reader proxy,
// which returns pages already reduced to LLM-friendly markdown.
package jina

import (
	"context"

	"github.com/sense-app/sense-ai-chat/internal/httpx"
)

const readerURL = "https://r.jina.ai/"

type Fetch struct {
	APIKey   string
	MaxChars int
	HTTP     *httpx.Client
}

func (f *Fetch) Fetch(ctx context.Context, url string) (string, error) {
	headers := map[string]string{
		"X-Return-Format": "markdown",
	}
	if f.APIKey != "" {
		headers["Authorization"] = "Bearer " + f.APIKey
	}

	body, err := f.HTTP.DoText(ctx, "GET", readerURL+url, headers)
	if err != nil {
		return "", err
	}
	if f.MaxChars > 0 && len(body) > f.MaxChars {
		body = body[:f.MaxChars]
	}
	return body, nil
}
