package web_fetch

import (
	"context"
	"time"

	"github.com/sense-app/sense-ai-chat/internal/httpx"
	"github.com/sense-app/sense-ai-chat/tools/web_fetch/jina"
	"github.com/sense-app/sense-ai-chat/tools/web_fetch/readability"
)

const (
	DefaultTimeout  = 30 * time.Second
	MaxCharsDefault = 20000
)

// Fetcher returns extracted page text for a URL. Implementations report
// transport failures as errors; callers treat a failed fetch as an empty
// page rather than aborting a batch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type FetcherType string

const (
	JinaFetcherType        FetcherType = "jina"
	ReadabilityFetcherType FetcherType = "readability"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func NewFetcher(fetcherType FetcherType, apiKey string, timeout time.Duration, maxChars int) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case JinaFetcherType:
		return &jina.Fetch{
			APIKey:   apiKey,
			MaxChars: maxChars,
			HTTP:     httpx.NewClient(timeout, 1, 500*time.Millisecond),
		}, nil
	case ReadabilityFetcherType:
		return &readability.Fetch{
			MaxChars: maxChars,
			HTTP:     httpx.NewClient(timeout, 1, 500*time.Millisecond),
		}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
