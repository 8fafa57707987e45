package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/savaki/dynastore"

	"github.com/weirdtangent/myaws"
)

const (
	sessionName   = "SID"
	sessionMaxAge = 24 * 60 * 60

	shutdownGrace = 10 * time.Second
)

// Dependencies is built once in main and shared by every request. Nothing
// in it changes after startup.
type Dependencies struct {
	config        *Config
	apiClient     *APIClient
	templates     *template.Template
	chartTemplate *template.Template
	bufpool       *bpool.BufferPool
	cookieStore   sessions.Store
	elementIDs    *ElementIDs
	metrics       *Metrics
	reportSink    ReportSink
	description   template.HTML
	logger        *zerolog.Logger
}

func setupLogging() context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	// alter the caller() return to only include the last directory
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		parts := strings.Split(file, "/")
		if len(parts) > 1 {
			return strings.Join(parts[len(parts)-2:], "/") + ":" + strconv.Itoa(line)
		}
		return file + ":" + strconv.Itoa(line)
	}
	pgmPath := strings.Split(os.Args[0], `/`)
	logTag := "currencyview"
	if len(pgmPath) > 1 {
		logTag = pgmPath[len(pgmPath)-1]
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	log := log.With().Str("@tag", logTag).Caller().Logger()
	ctx := log.WithContext(context.Background())

	return ctx
}

func loadTemplates(templateDir string) (*template.Template, error) {
	tmpl, err := template.New("").ParseGlob(filepath.Join(templateDir, "*.gohtml"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates in %s: %w", templateDir, err)
	}
	return tmpl, nil
}

func setupSessionsStore(ctx context.Context, cfg *Config, awssess *session.Session) (sessions.Store, error) {
	switch len(cfg.CookieEncryptionKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("COOKIE_ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", len(cfg.CookieEncryptionKey))
	}

	var hashKey = cfg.CookieAuthKey
	var blockKey = cfg.CookieEncryptionKey
	var secureCookie = securecookie.New(hashKey, blockKey)

	if cfg.SessionTable == "" || awssess == nil {
		store := &sessions.CookieStore{
			Codecs: []securecookie.Codec{secureCookie},
			Options: &sessions.Options{
				Path:     "/",
				Domain:   cfg.CookieDomain,
				Secure:   cfg.CookieSecure,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			},
		}
		store.MaxAge(sessionMaxAge)
		zerolog.Ctx(ctx).Info().Msg("using cookie session store")
		return store, nil
	}

	awsConfig, err := myaws.AWSConfig(cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s configuration: %w", cfg.AWSRegion, err)
	}

	ddb, err := myaws.DDBConnect(awssess)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DDB: %w", err)
	}

	options := []dynastore.Option{
		dynastore.AWSConfig(awsConfig),
		dynastore.DynamoDB(ddb),
		dynastore.TableName(cfg.SessionTable),
		dynastore.HTTPOnly(),
		dynastore.Path("/"),
		dynastore.MaxAge(sessionMaxAge),
		dynastore.Codecs(secureCookie),
	}
	if cfg.CookieSecure {
		options = append(options, dynastore.Secure())
	}
	if cfg.CookieDomain != "" {
		options = append(options, dynastore.Domain(cfg.CookieDomain))
	}

	store, err := dynastore.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to setup session management: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("table", cfg.SessionTable).Msg("using dynamodb session store")
	return store, nil
}

func newRouter(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	staticDir := deps.config.StaticDir
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	router.HandleFunc("/ping", pingHandler()).Methods("GET")
	router.HandleFunc("/internal/cspviolations", JSONReportHandler(deps)).Methods("POST")
	router.Handle("/metrics", deps.metrics.handler()).Methods("GET")

	router.HandleFunc("/", homeHandler(deps)).Methods("GET")

	router.NotFoundHandler = notFoundHandler(deps)
	router.Use(withMetrics(deps))

	return router
}

// newHandler wraps the router in the middleware chain
func newHandler(deps *Dependencies) http.Handler {
	router := newRouter(deps)

	chainedMux1 := withSession(deps.cookieStore, router) // deepest level, last to run
	chainedMux2 := withAddHeader(deps, chainedMux1)
	chainedMux3 := withLogging(deps, chainedMux2) // outer level, first to run

	return chainedMux3
}

func startHTTPServer(ctx context.Context, deps *Dependencies) error {
	server := &http.Server{
		Handler:      newHandler(deps),
		Addr:         ":" + strconv.Itoa(deps.config.HTTPPort),
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Int("port", deps.config.HTTPPort).Msg("started serving requests")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("stopped serving requests")
	return nil
}
