package main

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

// statusRecorder remembers the status code a handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware ---------------------------------------------------------

type Logger struct {
	deps    *Dependencies
	handler http.Handler
}

func (l *Logger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := time.Now()

	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	sublog := l.deps.logger.With().Str("request-id", requestID).Logger()
	ctx := sublog.WithContext(r.Context())
	ctx = context.WithValue(ctx, ContextKey("request_id"), requestID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	l.handler.ServeHTTP(rec, r.WithContext(ctx))

	sublog.Info().
		Stringer("url", r.URL).
		Int("status_code", rec.status).
		Int64("response_time", time.Since(t).Nanoseconds()).
		Msg("")
}

func withLogging(deps *Dependencies, h http.Handler) *Logger {
	return &Logger{deps, h}
}

// Header middleware ----------------------------------------------------------

type AddHeader struct {
	csp     string
	handler http.Handler
}

func (ah *AddHeader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")
	r = r.WithContext(context.WithValue(r.Context(), ContextKey("nonce"), nonce))

	header := w.Header()
	header.Set("Content-Security-Policy", strings.ReplaceAll(ah.csp, "{nonce}", nonce))
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "DENY")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")

	ah.handler.ServeHTTP(w, r)
}

func withAddHeader(deps *Dependencies, h http.Handler) *AddHeader {
	return &AddHeader{contentSecurityPolicy(deps.config.ChartAssetsHost), h}
}

// contentSecurityPolicy allows scripts from ourselves, the chart asset
// host, and inline scripts carrying the request's nonce.
func contentSecurityPolicy(assetsHost string) string {
	scriptSrc := []string{"'self'", "'nonce-{nonce}'"}
	if u, err := url.Parse(assetsHost); err == nil && u.Scheme != "" && u.Host != "" {
		scriptSrc = append(scriptSrc, u.Scheme+"://"+u.Host)
	}

	return strings.Join([]string{
		"default-src 'self'",
		"script-src " + strings.Join(scriptSrc, " "),
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"object-src 'none'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
		"report-uri /internal/cspviolations",
	}, "; ")
}

func nonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(ContextKey("nonce")).(string)
	return nonce
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKey("request_id")).(string)
	return id
}

// Session management middleware ----------------------------------------------

type Session struct {
	store   sessions.Store
	handler http.Handler
}

func (s *Session) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		// undecodable cookie (rotated keys, tampering): carry on with the fresh session Get returned
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to decode session, starting a new one")
	}
	if session != nil {
		r = r.WithContext(context.WithValue(r.Context(), ContextKey("session"), session))
	}

	s.handler.ServeHTTP(w, r)
}

func withSession(store sessions.Store, h http.Handler) *Session {
	return &Session{store, h}
}

// getSession returns the visitor's session. Handlers that change it must
// Save it before writing the response body.
func getSession(r *http.Request) (*sessions.Session, error) {
	session, ok := r.Context().Value(ContextKey("session")).(*sessions.Session)
	if !ok || session == nil {
		return nil, errFailedToGetSessionFromContext
	}
	return session, nil
}

// Metrics middleware ---------------------------------------------------------

func withMetrics(deps *Dependencies) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unknown"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			deps.metrics.observeRequest(route, rec.status)
		})
	}
}
