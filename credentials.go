package main

import (
	"encoding/gob"
	"net/http"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"

	sessionCredentialsKey = "api_credentials"
)

func init() {
	// session values are gob encoded
	gob.Register(map[string]string{})
}

// APICredentials are the cookies the currency api has handed to one
// visitor, keyed by cookie name. They ride along on every api request.
type APICredentials map[string]string

func (c APICredentials) clone() APICredentials {
	dup := make(APICredentials, len(c))
	for name, value := range c {
		dup[name] = value
	}
	return dup
}

// attach adds every credential to req as a cookie and, for
// state-changing methods, copies the csrf token into its header.
func (c APICredentials) attach(req *http.Request) {
	for name, value := range c {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if !isSafeMethod(req.Method) {
		if token, ok := c[csrfCookieName]; ok && token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}
}

// merge returns a copy of c updated with the Set-Cookie headers of res.
func (c APICredentials) merge(res *http.Response) APICredentials {
	updated := c.clone()
	for _, cookie := range res.Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(updated, cookie.Name)
			continue
		}
		updated[cookie.Name] = cookie.Value
	}
	return updated
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// credentialsFromSession never returns nil.
func credentialsFromSession(values map[interface{}]interface{}) APICredentials {
	if stored, ok := values[sessionCredentialsKey].(map[string]string); ok {
		return APICredentials(stored).clone()
	}
	return APICredentials{}
}

func storeCredentialsInSession(values map[interface{}]interface{}, creds APICredentials) {
	values[sessionCredentialsKey] = map[string]string(creds.clone())
}
