package main

import (
	"html/template"

	"github.com/rs/zerolog"
)

// WebCurrency is a Currency made ready for the templates: timestamps are
// already locale formatted and numbers are already text.
type WebCurrency struct {
	ElementID string
	Name      string
	NumCode   int
	CharCode  string
	CreatedAt string
	Rates     []WebCurrencyRate
	Chart     template.HTML
}

type WebCurrencyRate struct {
	ElementID  string
	Nominal    int64
	Value      string
	VunitRate  string
	ModifiedAt string
}

func buildWebCurrencies(deps *Dependencies, sublog zerolog.Logger, currencies []Currency, locale displayLocale, nonce string) []WebCurrency {
	tz := deps.config.DisplayTimezone
	webcurrencies := make([]WebCurrency, 0, len(currencies))

	for _, currency := range currencies {
		elementID := deps.elementIDs.encode(currency.CurrencyId)

		// nil rates (not requested) render no rate blocks
		var rates []WebCurrencyRate
		for _, rate := range currency.CurrencyRates {
			rates = append(rates, WebCurrencyRate{
				ElementID:  deps.elementIDs.encode(rate.CurrencyRateId),
				Nominal:    rate.Nominal,
				Value:      rate.Value.String(),
				VunitRate:  rate.VunitRate.String(),
				ModifiedAt: formatTimestamp(rate.ModifiedAt, locale, tz),
			})
		}

		webcurrencies = append(webcurrencies, WebCurrency{
			ElementID: elementID,
			Name:      currency.Name,
			NumCode:   currency.NumCode,
			CharCode:  currency.CharCode,
			CreatedAt: formatTimestamp(currency.CreatedAt, locale, tz),
			Rates:     rates,
			Chart:     rateHistoryChart(deps, sublog, currency, elementID, locale, nonce),
		})
	}

	return webcurrencies
}
