package polygon

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"NewsPull/internal/domain/models"
	drepo "NewsPull/internal/domain/repository"
	"NewsPull/internal/service/ratelimit"
	xhttp "NewsPull/pkg/http"
)

const (
	defaultBaseURL = "https://api.polygon.io"
	pageLimit      = 50
)

// Client implements a news Provider backed by the Polygon ticker-news API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	rate    float64
	burst   float64
}

// New creates a Polygon news provider.
func New(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, rate, burst float64) drepo.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rate <= 0 {
		rate = 0.2
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

func (c *Client) Name() string { return "polygon" }

type pgPublisher struct {
	Name string `json:"name"`
}

type pgArticle struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	ArticleURL   string      `json:"article_url"`
	PublishedUTC time.Time   `json:"published_utc"`
	Publisher    pgPublisher `json:"publisher"`
}

type pgResponse struct {
	Results []pgArticle `json:"results"`
	Status  string      `json:"status"`
}

// Fetch retrieves ticker news published inside [from, to].
func (c *Client) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]models.ProviderRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.Name(), c.burst, c.rate); err != nil {
			return nil, err
		}
	}

	var resp pgResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v2/reference/news",
		QueryParams: map[string][]string{
			"ticker":            {models.NormalizeSymbol(symbol)},
			"published_utc.gte": {from.UTC().Format(time.RFC3339)},
			"published_utc.lte": {to.UTC().Format(time.RFC3339)},
			"limit":             {strconv.Itoa(pageLimit)},
			"order":             {"desc"},
			"apiKey":            {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("polygon ticker-news: %w", err)
	}

	records := make([]models.ProviderRecord, 0, len(resp.Results))
	for _, a := range resp.Results {
		records = append(records, models.ProviderRecord{
			ExternalID:  a.ID,
			Title:       a.Title,
			Summary:     a.Description,
			URL:         a.ArticleURL,
			PublishedAt: a.PublishedUTC.UTC(),
			Publisher:   a.Publisher.Name,
		})
	}
	return records, nil
}
