package main

import (
	"net/http"

	"github.com/rs/zerolog"
)

// renderTemplate executes tmplname into a pooled buffer before writing
// anything, so a template error can still become a clean 500.
func renderTemplate(w http.ResponseWriter, r *http.Request, deps *Dependencies, sublog zerolog.Logger, tmplname string, status int, webdata map[string]interface{}, messages []Message) error {
	tmpl := deps.templates

	if webdata == nil {
		webdata = make(map[string]interface{})
	}
	if messages == nil {
		messages = []Message{}
	}
	webdata["config"] = map[string]interface{}{
		"template_name":     tmplname,
		"chart_assets_host": deps.config.ChartAssetsHost,
	}
	webdata["messages"] = messages
	webdata["nonce"] = nonceFromContext(r.Context())
	webdata["request_id"] = requestIDFromContext(r.Context())

	buf := deps.bufpool.Get()
	defer deps.bufpool.Put(buf)

	err := tmpl.ExecuteTemplate(buf, tmplname, webdata)
	if err != nil {
		sublog.Error().Err(err).Str("template", tmplname).Msg("failed to execute template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
	return nil
}
