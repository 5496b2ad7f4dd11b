package finnhub

import (
	"context"
	"fmt"
	"time"

	"NewsPull/internal/domain/models"
	drepo "NewsPull/internal/domain/repository"
	"NewsPull/internal/service/ratelimit"
	xhttp "NewsPull/pkg/http"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client implements a news Provider backed by the Finnhub company-news API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	rate    float64
	burst   float64
}

// New creates a Finnhub news provider.
func New(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, rate, burst float64) drepo.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rate <= 0 {
		rate = 0.5
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: limiter,
		rate:    rate,
		burst:   burst,
	}
}

func (c *Client) Name() string { return "finnhub" }

type fhArticle struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"` // unix seconds
	Source   string `json:"source"`
	Category string `json:"category"`
}

// Fetch retrieves company news for symbol. Finnhub windows are day-granular,
// so the response may spill slightly past [from, to]; downstream dedup
// absorbs the overlap.
func (c *Client) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]models.ProviderRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.Name(), c.burst, c.rate); err != nil {
			return nil, err
		}
	}

	var articles []fhArticle
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/company-news",
		QueryParams: map[string][]string{
			"symbol": {models.NormalizeSymbol(symbol)},
			"from":   {from.UTC().Format("2006-01-02")},
			"to":     {to.UTC().Format("2006-01-02")},
			"token":  {c.apiKey},
		},
	}, &articles)
	if err != nil {
		return nil, fmt.Errorf("finnhub company-news: %w", err)
	}

	records := make([]models.ProviderRecord, 0, len(articles))
	for _, a := range articles {
		records = append(records, models.ProviderRecord{
			ExternalID:  fmt.Sprintf("%d", a.ID),
			Title:       a.Headline,
			Summary:     a.Summary,
			URL:         a.URL,
			PublishedAt: time.Unix(a.Datetime, 0).UTC(),
			Publisher:   a.Source,
		})
	}
	return records, nil
}
