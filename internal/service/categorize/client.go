package categorize

import (
	"context"
	"fmt"
	"time"

	"NewsPull/internal/domain/models"
	dservice "NewsPull/internal/domain/service"
	xhttp "NewsPull/pkg/http"
)

// Client labels staged articles by calling an external categorization
// service over HTTP JSON.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// New builds a categorizer client with the given base URL and timeout.
func New(baseURL string, timeout time.Duration) dservice.Categorizer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type categorizeRequest struct {
	Symbol  string `json:"symbol"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

type categorizeResponse struct {
	Category string `json:"category"`
}

// Categorize posts the article to /categorize and returns the label.
func (c *Client) Categorize(ctx context.Context, item models.RawNewsItem) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("categorize client not configured")
	}
	var resp categorizeResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/categorize",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: categorizeRequest{
			Symbol:  item.Symbol,
			Title:   item.Title,
			Summary: item.Summary,
			URL:     item.URL,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("categorize %s: %w", item.URL, err)
	}
	return resp.Category, nil
}

// NoopCategorizer labels nothing; used when categorization is disabled.
type NoopCategorizer struct{}

func (NoopCategorizer) Categorize(ctx context.Context, item models.RawNewsItem) (string, error) {
	return "", nil
}
