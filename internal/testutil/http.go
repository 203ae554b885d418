package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// HTTPTestHelper executes requests against a handler in-process.
type HTTPTestHelper struct {
	Handler http.Handler
}

func NewHTTPTestHelper(handler http.Handler) *HTTPTestHelper {
	return &HTTPTestHelper{Handler: handler}
}

func (h *HTTPTestHelper) newRequest(method, path string, body interface{}) *http.Request {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			panic(err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MakeRequest executes a request with an optional JSON body and returns
// the recorded response.
func (h *HTTPTestHelper) MakeRequest(method, path string, body interface{}) *httptest.ResponseRecorder {
	req := h.newRequest(method, path, body)
	rr := httptest.NewRecorder()
	h.Handler.ServeHTTP(rr, req)
	return rr
}

// MakeAuthedRequest executes a request carrying a bearer token, for
// handlers behind the auth middleware.
func (h *HTTPTestHelper) MakeAuthedRequest(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	req := h.newRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.Handler.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON unmarshals a recorded response body into target, failing
// the test on malformed JSON.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}
