package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Currency is one monetary unit as the currency api returns it.
// CurrencyRates is nil when rates were not requested.
type Currency struct {
	CurrencyId      int64          `json:"id"`
	CurrencyGroupId int64          `json:"currency_group_id,omitempty"`
	NumCode         int            `json:"num_code"`
	CharCode        string         `json:"char_code"`
	Name            string         `json:"name"`
	CreatedAt       string         `json:"created_at"`
	CurrencyRates   []CurrencyRate `json:"currency_rates"`
}

// CurrencyRate is one exchange-rate record of a currency. CurrencyId only
// identifies the owner; it is never used to reach back into it.
type CurrencyRate struct {
	CurrencyRateId int64           `json:"id"`
	CurrencyId     int64           `json:"currency_id"`
	Nominal        int64           `json:"nominal" validate:"gte=0"`
	Value          decimal.Decimal `json:"value"`
	VunitRate      decimal.Decimal `json:"vunit_rate"`
	ModifiedAt     string          `json:"modified_at" validate:"timestamp"`
}

// CurrencyGroup is the grouping record of the original api.
type CurrencyGroup struct {
	CurrencyGroupId int64      `json:"id"`
	Name            string     `json:"name"`
	CreatedAt       string     `json:"created_at"`
	Currencies      []Currency `json:"currencies"`
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := parseTimestamp(fl.Field().String(), nil)
		return err == nil
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register timestamp validation: %v", err))
	}
	return v
}

func (r CurrencyRate) validate() error {
	if err := payloadValidator.Struct(r); err != nil {
		return err
	}
	if r.Value.IsNegative() {
		return fmt.Errorf("rate %d has negative value %s", r.CurrencyRateId, r.Value)
	}
	if r.VunitRate.IsNegative() {
		return fmt.Errorf("rate %d has negative vunit_rate %s", r.CurrencyRateId, r.VunitRate)
	}
	return nil
}

func (c Currency) validate() error {
	for _, rate := range c.CurrencyRates {
		if err := rate.validate(); err != nil {
			return fmt.Errorf("currency %d: %w", c.CurrencyId, err)
		}
		if rate.CurrencyId != c.CurrencyId {
			return fmt.Errorf("currency %d: rate %d references currency %d", c.CurrencyId, rate.CurrencyRateId, rate.CurrencyId)
		}
	}
	return nil
}

// validateCurrencies checks the invariants of one api response and wraps
// any violation in ErrMalformedPayload.
func validateCurrencies(currencies []Currency) error {
	seen := make(map[int64]struct{}, len(currencies))
	for _, currency := range currencies {
		if _, ok := seen[currency.CurrencyId]; ok {
			return fmt.Errorf("%w: duplicate currency id %d", ErrMalformedPayload, currency.CurrencyId)
		}
		seen[currency.CurrencyId] = struct{}{}

		if err := currency.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	return nil
}
