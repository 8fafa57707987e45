package main

import (
	"html/template"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/rs/zerolog"
)

// rateHistoryChart draws the currency's rates in payload order. Currencies
// without rates get no chart.
func rateHistoryChart(deps *Dependencies, sublog zerolog.Logger, currency Currency, elementID string, locale displayLocale, nonce string) template.HTML {
	rates := currency.CurrencyRates
	if len(rates) == 0 || deps.chartTemplate == nil {
		return ""
	}

	x_axis := make([]string, 0, len(rates))
	valueData := make([]opts.LineData, 0, len(rates))
	vunitData := make([]opts.LineData, 0, len(rates))
	for _, rate := range rates {
		x_axis = append(x_axis, formatTimestamp(rate.ModifiedAt, locale, deps.config.DisplayTimezone))
		valueData = append(valueData, opts.LineData{Value: rate.Value.InexactFloat64()})
		vunitData = append(vunitData, opts.LineData{Value: rate.VunitRate.InexactFloat64()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:      "700px",
			Height:     "300px",
			Theme:      types.ThemeVintage,
			AssetsHost: deps.config.ChartAssetsHost,
			ChartID:    "chart" + elementID,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    currency.Name + " (" + currency.CharCode + ")",
			Subtitle: "Rate history",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Data:   []string{"Value", "VUnit Rate"},
			Orient: "horizontal",
			Left:   "right",
			Top:    "top",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate: 30,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{}),
	)

	line.SetXAxis(x_axis).
		AddSeries("Value", valueData).
		AddSeries("VUnit Rate", vunitData)

	renderer := newSnippetRenderer(deps.chartTemplate, line, nonce, line.Validate)
	return renderToHtml(deps.bufpool, sublog, renderer)
}
