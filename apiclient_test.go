package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewAPIClient("", nil)
	assert.ErrorIs(t, err, ErrMissingBaseURL)

	for _, raw := range []string{"localhost:8000", "/api", "ftp://example.com", "http://"} {
		_, err := NewAPIClient(raw, nil)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}

func TestDocsURL(t *testing.T) {
	client, err := NewAPIClient("https://rates.example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://rates.example.com/api/redoc", client.DocsURL())

	client, err = NewAPIClient("https://example.com/currency", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/currency/api/redoc", client.DocsURL())
}

func TestListCurrenciesRequest(t *testing.T) {
	var gotPath, gotQuery, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		io.WriteString(w, exampleCurrencies)
	}))
	defer srv.Close()

	client, err := NewAPIClient(srv.URL+"/prefix/", nil)
	require.NoError(t, err)

	currencies, _, err := client.ListCurrencies(context.Background(), APICredentials{}, true)
	require.NoError(t, err)

	assert.Equal(t, "/prefix/api/v1/currency/", gotPath)
	assert.Equal(t, "include_currency_rates=1", gotQuery)
	assert.Equal(t, "application/json", gotAccept)

	require.Len(t, currencies, 1)
	usd := currencies[0]
	assert.Equal(t, int64(1), usd.CurrencyId)
	assert.Equal(t, 840, usd.NumCode)
	assert.Equal(t, "USD", usd.CharCode)
	require.Len(t, usd.CurrencyRates, 1)
	assert.Equal(t, "90.5", usd.CurrencyRates[0].Value.String())
	assert.Equal(t, "90.5", usd.CurrencyRates[0].VunitRate.String())

	_, _, err = client.ListCurrencies(context.Background(), APICredentials{}, false)
	require.NoError(t, err)
	assert.Equal(t, "include_currency_rates=0", gotQuery)
}

func TestCredentialsRoundTrip(t *testing.T) {
	var gotSession, gotCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err == nil {
			gotSession = c.Value
		}
		gotCSRF = r.Header.Get(csrfHeaderName)
		http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "fresh-token"})
		http.SetCookie(w, &http.Cookie{Name: "stale", Value: "", MaxAge: -1})
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	client, err := NewAPIClient(srv.URL, nil)
	require.NoError(t, err)

	creds := APICredentials{"sessionid": "s1", csrfCookieName: "old-token", "stale": "x"}
	_, updated, err := client.ListCurrencies(context.Background(), creds, true)
	require.NoError(t, err)

	assert.Equal(t, "s1", gotSession)
	assert.Empty(t, gotCSRF, "safe methods carry no csrf header")
	assert.Equal(t, APICredentials{"sessionid": "s1", csrfCookieName: "fresh-token"}, updated)
	assert.Equal(t, "old-token", creds[csrfCookieName], "caller's credentials are not mutated")

	_, _, err = client.Do(context.Background(), http.MethodPost, currencyPath, nil, strings.NewReader("{}"), updated)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", gotCSRF)
}

func TestCSRFHeaderAbsentWithoutToken(t *testing.T) {
	var hadHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header[http.CanonicalHeaderKey(csrfHeaderName)]
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	client, err := NewAPIClient(srv.URL, nil)
	require.NoError(t, err)

	_, _, err = client.Do(context.Background(), http.MethodDelete, currencyPath+"1", nil, nil, APICredentials{})
	require.NoError(t, err)
	assert.False(t, hadHeader)
}

func TestListCurrenciesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cause  error
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`, ErrUnexpectedStatus},
		{"forbidden", http.StatusForbidden, `[]`, ErrUnexpectedStatus},
		{"not json", http.StatusOK, `<html>`, ErrMalformedPayload},
		{"wrong shape", http.StatusOK, `{"id":1}`, ErrMalformedPayload},
		{"null body", http.StatusOK, `null`, ErrMalformedPayload},
		{"duplicate ids", http.StatusOK, `[{"id":1,"currency_rates":null},{"id":1,"currency_rates":null}]`, ErrMalformedPayload},
		{"foreign rate", http.StatusOK, `[{"id":1,"currency_rates":[{"id":5,"currency_id":2,"nominal":1,"value":1,"vunit_rate":1,"modified_at":"2024-01-01T00:00:00Z"}]}]`, ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeCurrencyAPI(t, tt.status, tt.body)
			client, err := NewAPIClient(srv.URL, nil)
			require.NoError(t, err)

			currencies, creds, err := client.ListCurrencies(context.Background(), APICredentials{}, true)
			assert.Nil(t, currencies)
			assert.NotNil(t, creds)
			assert.ErrorIs(t, err, ErrFetch)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestTransportErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewAPIClient(url, nil)
	require.NoError(t, err)

	_, _, err = client.ListCurrencies(context.Background(), APICredentials{}, true)
	assert.ErrorIs(t, err, ErrFetch)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestReadEndpoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		switch r.URL.Path {
		case "/api/v1/currency/7":
			io.WriteString(w, `{"id":7,"num_code":978,"char_code":"EUR","name":"Euro","created_at":"2024-01-01T00:00:00Z","currency_rates":null}`)
		case currencyRatePath:
			io.WriteString(w, `[{"id":1,"currency_id":7,"nominal":1,"value":"98.1","vunit_rate":"98.1","modified_at":"2024-06-01T00:00:00Z"}]`)
		case currencyGroupPath:
			io.WriteString(w, `[{"id":3,"name":"Majors","created_at":"2024-01-01T00:00:00Z","currencies":[{"id":7,"name":"Euro","currency_rates":null}]}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewAPIClient(srv.URL, nil)
	require.NoError(t, err)
	ctx := context.Background()

	euro, _, err := client.GetCurrency(ctx, APICredentials{}, 7, false)
	require.NoError(t, err)
	assert.Equal(t, "Euro", euro.Name)
	assert.Nil(t, euro.CurrencyRates)

	rates, _, err := client.ListCurrencyRates(ctx, APICredentials{})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "98.1", rates[0].Value.String())

	groups, _, err := client.ListCurrencyGroups(ctx, APICredentials{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Majors", groups[0].Name)
	require.Len(t, groups[0].Currencies, 1)

	assert.Equal(t, []string{
		"/api/v1/currency/7?include_currency_rates=0",
		"/api/v1/currency_rate/",
		"/api/v1/currency_group/?include_currencies=1",
	}, paths)

	_, _, err = client.GetCurrency(ctx, APICredentials{}, 99, true)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
