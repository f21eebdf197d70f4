package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultFeedURL is the free price feed endpoint.
	DefaultFeedURL = "https://api.coingecko.com/api/v3"
	// ProFeedURL is the paid endpoint variant, selected when an API key is set.
	ProFeedURL = "https://pro-api.coingecko.com/api/v3"

	apiKeyHeader = "x-cg-pro-api-key"
)

// FeedClient talks to the external price feed HTTP API. The zero API key is
// valid: it keeps the free endpoint and sends no auth header.
type FeedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// FeedOption customizes a FeedClient.
type FeedOption func(*FeedClient)

// WithAPIKey switches to the paid endpoint and authenticates requests.
func WithAPIKey(key string) FeedOption {
	return func(f *FeedClient) {
		if key != "" {
			f.apiKey = key
			f.baseURL = ProFeedURL
		}
	}
}

// WithBaseURL overrides the feed endpoint, mainly for tests.
func WithBaseURL(base string) FeedOption {
	return func(f *FeedClient) {
		f.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) FeedOption {
	return func(f *FeedClient) {
		f.httpClient = client
	}
}

// NewFeedClient creates a price feed client.
func NewFeedClient(opts ...FeedOption) *FeedClient {
	f := &FeedClient{
		baseURL:    DefaultFeedURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchUSDPrices fetches the USD price for one or more price-feed ids in a
// single call. The response maps id to price; ids the feed does not know
// are simply absent.
func (f *FeedClient) FetchUSDPrices(ctx context.Context, ids ...string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		f.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set(apiKeyHeader, f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	// Wire shape: { "<id>": { "usd": <number> } }
	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed price feed response: %w", err)
	}

	prices := make(map[string]float64, len(payload))
	for id, currencies := range payload {
		usd, ok := currencies["usd"]
		if !ok {
			continue
		}
		prices[id] = usd
	}
	return prices, nil
}

// FetchUSDPrice fetches a single id's USD price.
func (f *FeedClient) FetchUSDPrice(ctx context.Context, id string) (float64, error) {
	prices, err := f.FetchUSDPrices(ctx, id)
	if err != nil {
		return 0, err
	}
	price, ok := prices[id]
	if !ok {
		return 0, fmt.Errorf("price feed response missing id %q", id)
	}
	return price, nil
}
