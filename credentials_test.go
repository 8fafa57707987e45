package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialsSessionHelpers(t *testing.T) {
	values := map[interface{}]interface{}{}

	creds := credentialsFromSession(values)
	assert.NotNil(t, creds)
	assert.Empty(t, creds)

	storeCredentialsInSession(values, APICredentials{"sessionid": "s1"})
	creds = credentialsFromSession(values)
	assert.Equal(t, APICredentials{"sessionid": "s1"}, creds)

	creds["sessionid"] = "changed"
	assert.Equal(t, "s1", credentialsFromSession(values)["sessionid"], "session copy is isolated")

	values[sessionCredentialsKey] = "garbage"
	assert.Empty(t, credentialsFromSession(values))
}

func TestIsSafeMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		assert.True(t, isSafeMethod(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.False(t, isSafeMethod(m), m)
	}
}
