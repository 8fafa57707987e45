package main

import "errors"

var (
	ErrFetch            = errors.New("failed to fetch from currency api")
	ErrUnexpectedStatus = errors.New("unexpected http status from currency api")
	ErrMalformedPayload = errors.New("malformed payload from currency api")

	ErrMissingBaseURL = errors.New("CURRENCY_API_URL is not set")
	ErrInvalidBaseURL = errors.New("CURRENCY_API_URL must be an absolute http(s) url")

	errFailedToGetSessionFromContext = errors.New("failed to get session from context")
)
