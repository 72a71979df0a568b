package web_search

import (
	"context"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/httpx"
	"github.com/sense-app/sense-ai-chat/tools/web_search/models"
	"github.com/sense-app/sense-ai-chat/tools/web_search/serper"
)

// Searcher is the external search gateway: general web search and
// shopping-type search against a third-party provider.
type Searcher interface {
	Search(ctx context.Context, q string) (models.Response, error)
	Shopping(ctx context.Context, q string) (models.ShoppingResponse, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// Options carries provider-independent search parameters.
type Options struct {
	CountryCode string
	City        string
	MaxResults  int
	Timeout     time.Duration
}

func NewSearcher(provider Provider, apiKey string, opts Options) (Searcher, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	switch provider {
	case SerperProvider:
		return &serper.Search{
			APIKey:      apiKey,
			CountryCode: opts.CountryCode,
			City:        opts.City,
			Num:         opts.MaxResults,
			HTTP:        httpx.NewClient(opts.Timeout, 2, 300*time.Millisecond),
		}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
