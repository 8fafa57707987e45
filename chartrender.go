package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"path/filepath"

	chartrender "github.com/go-echarts/go-echarts/v2/render"
	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog"
)

const chartTemplateName = "_chart"

func parseChartTemplate(templateDir string) (*template.Template, error) {
	return template.
		New(chartTemplateName).
		Funcs(template.FuncMap{
			"safeJS": func(s interface{}) template.JS {
				return template.JS(fmt.Sprint(s))
			},
		}).
		ParseFiles(filepath.Join(templateDir, "charts", "_chart.gohtml"))
}

// snippetRenderer renders only the chart's div and init script, not a
// whole html page, so charts can be dropped into our own templates.
type snippetRenderer struct {
	c      interface{}
	tpl    *template.Template
	nonce  string
	before []func()
}

// chartOptions is satisfied by every go-echarts chart.
type chartOptions interface {
	JSON() map[string]interface{}
}

func newSnippetRenderer(tpl *template.Template, c interface{}, nonce string, before ...func()) chartrender.Renderer {
	return &snippetRenderer{c: c, tpl: tpl, nonce: nonce, before: before}
}

func (r *snippetRenderer) Render(w io.Writer) error {
	for _, fn := range r.before {
		fn()
	}

	oc, ok := r.c.(chartOptions)
	if !ok {
		return fmt.Errorf("%T has no chart options", r.c)
	}
	// json.Marshal escapes <, > and & so api strings cannot close the script
	option, err := json.Marshal(oc.JSON())
	if err != nil {
		return err
	}

	return r.tpl.ExecuteTemplate(w, chartTemplateName, map[string]interface{}{
		"chart":  r.c,
		"option": template.JS(option),
		"nonce":  r.nonce,
	})
}

func renderToHtml(bufpool *bpool.BufferPool, sublog zerolog.Logger, r chartrender.Renderer) template.HTML {
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	if err := r.Render(buf); err != nil {
		sublog.Error().Err(err).Msg("failed to render chart")
		return ""
	}

	return template.HTML(buf.String())
}
