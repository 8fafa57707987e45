package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CurrencyFetcher is the one api call the list view needs.
type CurrencyFetcher interface {
	ListCurrencies(ctx context.Context, creds APICredentials, includeRates bool) ([]Currency, APICredentials, error)
}

type ListState int

const (
	ListInitial ListState = iota
	ListLoading
	ListLoaded
	ListFailed
)

func (s ListState) String() string {
	switch s {
	case ListInitial:
		return "initial"
	case ListLoading:
		return "loading"
	case ListLoaded:
		return "loaded"
	case ListFailed:
		return "failed"
	}
	return "unknown"
}

// ListSnapshot is a consistent copy of a CurrencyList's view state.
type ListSnapshot struct {
	State       ListState
	Currencies  []Currency
	Err         error
	Credentials APICredentials
}

// CurrencyList is the view state behind one rendering of the currency
// list. Mount starts the single fetch, Unmount tears it down; anything the
// fetch produces after Unmount is dropped.
type CurrencyList struct {
	fetcher CurrencyFetcher
	logger  zerolog.Logger
	metrics *Metrics

	mountOnce sync.Once
	done      chan struct{}

	mu         sync.Mutex
	state      ListState
	currencies []Currency
	err        error
	creds      APICredentials
	cancel     context.CancelFunc
	unmounted  bool
}

func NewCurrencyList(fetcher CurrencyFetcher, creds APICredentials, logger zerolog.Logger, metrics *Metrics) *CurrencyList {
	if creds == nil {
		creds = APICredentials{}
	}
	return &CurrencyList{
		fetcher:    fetcher,
		logger:     logger,
		metrics:    metrics,
		done:       make(chan struct{}),
		state:      ListInitial,
		currencies: []Currency{},
		creds:      creds,
	}
}

// Mount starts the fetch bound to ctx. Only the first call does anything.
func (l *CurrencyList) Mount(ctx context.Context) {
	l.mountOnce.Do(func() {
		taskCtx, cancel := context.WithCancel(ctx)

		l.mu.Lock()
		l.cancel = cancel
		l.state = ListLoading
		creds := l.creds.clone()
		l.mu.Unlock()

		go l.load(taskCtx, creds)
	})
}

func (l *CurrencyList) load(ctx context.Context, creds APICredentials) {
	defer close(l.done)

	start := time.Now()
	currencies, updated, err := l.fetcher.ListCurrencies(ctx, creds, true)
	l.metrics.observeFetch(time.Since(start).Seconds(), err)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unmounted {
		l.logger.Debug().Err(err).Msg("discarding currency fetch after unmount")
		return
	}
	if updated != nil {
		l.creds = updated
	}
	if err != nil {
		l.state = ListFailed
		l.err = err
		l.logger.Error().Err(err).Msg("failed to fetch currencies")
		return
	}

	if currencies == nil {
		currencies = []Currency{}
	}
	l.currencies = currencies
	l.err = nil
	l.state = ListLoaded
}

// Unmount cancels an in-flight fetch. It is safe to call more than once
// and before Mount.
func (l *CurrencyList) Unmount() {
	l.mu.Lock()
	l.unmounted = true
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// never mounted: nothing will close done
	l.mountOnce.Do(func() { close(l.done) })
}

// Wait blocks until the fetch has settled or ctx ends.
func (l *CurrencyList) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *CurrencyList) Snapshot() ListSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListSnapshot{
		State:       l.state,
		Currencies:  l.currencies,
		Err:         l.err,
		Credentials: l.creds.clone(),
	}
}
