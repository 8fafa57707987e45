package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const exampleCurrencies = `[{"id":1,"num_code":840,"char_code":"USD","name":"US Dollar","created_at":"2024-01-01T00:00:00Z",
"currency_rates":[{"id":10,"currency_id":1,"nominal":1,"value":90.5,"vunit_rate":90.5,"modified_at":"2024-06-01T00:00:00Z"}]}]`

// syncBuffer lets the fetch goroutine and the test share a log buffer
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func countErrorEntries(logs string) int {
	return strings.Count(logs, `"level":"error"`)
}

type recordedSink struct {
	mu      sync.Mutex
	reports map[string][]byte
}

func (s *recordedSink) StoreReport(ctx context.Context, key string, report []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reports == nil {
		s.reports = make(map[string][]byte)
	}
	s.reports[key] = report
	return nil
}

func testConfig(apiURL string) *Config {
	return &Config{
		APIBaseURL:          apiURL,
		HTTPPort:            3001,
		DefaultLocale:       "en-US",
		DisplayTimezone:     time.UTC,
		TemplateDir:         "templates",
		StaticDir:           "static",
		ChartAssetsHost:     defaultChartAssetsHost,
		CookieAuthKey:       []byte(strings.Repeat("a", 64)),
		CookieEncryptionKey: []byte(strings.Repeat("b", 32)),
		CookieSecure:        false,
	}
}

func newTestDeps(t *testing.T, cfg *Config, logs io.Writer) *Dependencies {
	t.Helper()

	apiClient, err := NewAPIClient(cfg.APIBaseURL, nil)
	require.NoError(t, err)
	templates, err := loadTemplates(cfg.TemplateDir)
	require.NoError(t, err)
	chartTemplate, err := parseChartTemplate(cfg.TemplateDir)
	require.NoError(t, err)
	store, err := setupSessionsStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	elementIDs, err := newElementIDs(cfg.ElementIDKey)
	require.NoError(t, err)

	logger := zerolog.New(logs).With().Timestamp().Logger()

	return &Dependencies{
		config:        cfg,
		apiClient:     apiClient,
		templates:     templates,
		chartTemplate: chartTemplate,
		bufpool:       bpool.NewBufferPool(4),
		cookieStore:   store,
		elementIDs:    elementIDs,
		metrics:       newMetrics(),
		reportSink:    &recordedSink{},
		description:   renderDescription(apiClient.DocsURL()),
		logger:        &logger,
	}
}

// fakeCurrencyAPI serves body for the currency list endpoint
func fakeCurrencyAPI(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != currencyPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
