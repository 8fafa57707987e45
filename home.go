package main

import (
	"fmt"
	"html/template"
	"maps"
	"net/http"

	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

const descriptionMarkdown = "This is a simple application to display currency data fetched from an API. Click [here](%s) to view the API."

// renderDescription turns the page blurb into sanitized html once at
// startup; the docs link opens in a new tab.
func renderDescription(docsURL string) template.HTML {
	md := []byte(fmt.Sprintf(descriptionMarkdown, docsURL))
	unsafe := markdown.ToHTML(md, nil, nil)

	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return template.HTML(policy.SanitizeBytes(unsafe))
}

func homeHandler(deps *Dependencies) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sublog := *zerolog.Ctx(ctx)

		creds := APICredentials{}
		session, err := getSession(r)
		if err != nil {
			sublog.Warn().Err(err).Msg("rendering without api credentials")
		} else {
			creds = credentialsFromSession(session.Values)
		}

		list := NewCurrencyList(deps.apiClient, creds, sublog, deps.metrics)
		list.Mount(ctx)
		defer list.Unmount()

		if err := list.Wait(ctx); err != nil {
			sublog.Info().Err(err).Msg("visitor left before currencies arrived")
			return
		}
		snapshot := list.Snapshot()

		// the session cookie has to go out before the body does
		if session != nil && !maps.Equal(creds, snapshot.Credentials) {
			storeCredentialsInSession(session.Values, snapshot.Credentials)
			if err := session.Save(r, w); err != nil {
				sublog.Error().Err(err).Msg("failed to save session")
			}
		}

		messages := make([]Message, 0)
		if snapshot.State == ListFailed && deps.config.ShowFetchErrors {
			messages = append(messages, Message{"Currency data could not be loaded right now.", "danger"})
		}

		locale := matchLocale(r.Header.Get("Accept-Language"), deps.config.DefaultLocale)

		webdata := make(map[string]interface{})
		webdata["description"] = deps.description
		webdata["locale"] = locale.Tag.String()
		webdata["currencies"] = buildWebCurrencies(deps, sublog, snapshot.Currencies, locale, nonceFromContext(ctx))

		renderTemplate(w, r, deps, sublog, "home", http.StatusOK, webdata, messages)
	})
}

// notFoundHandler renders the page shell with nothing routed into it.
func notFoundHandler(deps *Dependencies) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sublog := *zerolog.Ctx(r.Context())
		deps.metrics.observeRequest("notfound", http.StatusNotFound)
		renderTemplate(w, r, deps, sublog, "notfound", http.StatusNotFound, nil, nil)
	})
}
