package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	currencyPath      = "/api/v1/currency/"
	currencyRatePath  = "/api/v1/currency_rate/"
	currencyGroupPath = "/api/v1/currency_group/"
	apiDocsPath       = "/api/redoc"
)

// APIClient talks to the currency api. It is built once at startup and
// handed to whatever needs it; it holds no per-request state, so one
// instance serves every request concurrently.
type APIClient struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewAPIClient returns a client rooted at baseURL. A nil httpClient means
// a plain http.Client: no timeout, no retries, cancellation by context.
func NewAPIClient(baseURL string, httpClient *http.Client) (*APIClient, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &APIClient{baseURL: u, httpClient: httpClient}, nil
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	return u, nil
}

// BaseURL is the configured api root without a trailing slash.
func (c *APIClient) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// DocsURL points at the api's rendered documentation.
func (c *APIClient) DocsURL() string {
	return c.BaseURL() + apiDocsPath
}

func (c *APIClient) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String()
}

// Do performs one request against the api with the visitor's credentials
// and returns the body along with the credentials as the api left them.
// Transport errors and non-2xx statuses both come back wrapped in ErrFetch.
func (c *APIClient) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, creds APICredentials) ([]byte, APICredentials, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, creds, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	creds.attach(req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, creds, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer res.Body.Close()

	updated := creds.merge(res)

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, updated, fmt.Errorf("%w: reading body: %w", ErrFetch, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, updated, fmt.Errorf("%w: %w: %s %s returned %d", ErrFetch, ErrUnexpectedStatus, method, req.URL.Path, res.StatusCode)
	}

	return data, updated, nil
}

func includeFlag(name string, include bool) url.Values {
	flag := "0"
	if include {
		flag = "1"
	}
	return url.Values{name: []string{flag}}
}

// decodePayload unmarshals a json body, treating a bare null as malformed
// since every endpoint promises a value.
func decodePayload(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %w: empty or null body", ErrFetch, ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %w: %v", ErrFetch, ErrMalformedPayload, err)
	}
	return nil
}

// ListCurrencies fetches the currency collection, with embedded rate
// history when includeRates is set.
func (c *APIClient) ListCurrencies(ctx context.Context, creds APICredentials, includeRates bool) ([]Currency, APICredentials, error) {
	data, updated, err := c.Do(ctx, http.MethodGet, currencyPath, includeFlag("include_currency_rates", includeRates), nil, creds)
	if err != nil {
		return nil, updated, err
	}

	var currencies []Currency
	if err := decodePayload(data, &currencies); err != nil {
		return nil, updated, err
	}
	if err := validateCurrencies(currencies); err != nil {
		return nil, updated, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return currencies, updated, nil
}

// GetCurrency fetches a single currency by id.
func (c *APIClient) GetCurrency(ctx context.Context, creds APICredentials, currencyId int64, includeRates bool) (Currency, APICredentials, error) {
	path := fmt.Sprintf("%s%d", currencyPath, currencyId)
	data, updated, err := c.Do(ctx, http.MethodGet, path, includeFlag("include_currency_rates", includeRates), nil, creds)
	if err != nil {
		return Currency{}, updated, err
	}

	var currency Currency
	if err := decodePayload(data, &currency); err != nil {
		return Currency{}, updated, err
	}
	if err := validateCurrencies([]Currency{currency}); err != nil {
		return Currency{}, updated, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return currency, updated, nil
}

// ListCurrencyRates fetches every rate record regardless of currency.
func (c *APIClient) ListCurrencyRates(ctx context.Context, creds APICredentials) ([]CurrencyRate, APICredentials, error) {
	data, updated, err := c.Do(ctx, http.MethodGet, currencyRatePath, nil, nil, creds)
	if err != nil {
		return nil, updated, err
	}

	var rates []CurrencyRate
	if err := decodePayload(data, &rates); err != nil {
		return nil, updated, err
	}
	for _, rate := range rates {
		if err := rate.validate(); err != nil {
			return nil, updated, fmt.Errorf("%w: %w: %v", ErrFetch, ErrMalformedPayload, err)
		}
	}
	return rates, updated, nil
}

// ListCurrencyGroups fetches the currency groups, each with its
// currencies embedded.
func (c *APIClient) ListCurrencyGroups(ctx context.Context, creds APICredentials) ([]CurrencyGroup, APICredentials, error) {
	data, updated, err := c.Do(ctx, http.MethodGet, currencyGroupPath, includeFlag("include_currencies", true), nil, creds)
	if err != nil {
		return nil, updated, err
	}

	var groups []CurrencyGroup
	if err := decodePayload(data, &groups); err != nil {
		return nil, updated, err
	}
	for _, group := range groups {
		if err := validateCurrencies(group.Currencies); err != nil {
			return nil, updated, fmt.Errorf("%w: group %d: %w", ErrFetch, group.CurrencyGroupId, err)
		}
	}
	return groups, updated, nil
}
