/*
	This file contains functions useful for testing the server in other packages.
	Unfortunately, due to the way Go handles compilation of *_test.go files,
	these functions cannot be in server_test.go since they will be unavailable
	to test files in external packages.  So these functions are exported and
	contain the "Test" keyword.
*/

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// OpenTest initializes the server with an in-memory store and default settings.
func OpenTest() error {
	tc = tomlConfig{}
	tc.Server.HTTPAddress = DefaultWebAddress
	tc.Server.MaxBodySize = DefaultMaxBodySize
	tc.Server.Workers = 4
	tc.Cache.Size = 4
	return Initialize()
}

// CloseTest shuts down the test server and forgets its configuration.
func CloseTest() {
	Shutdown()
	tc = tomlConfig{}
	authorizedUsers = nil
}

// TestHTTPResponse returns a response from a test run of the server.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	ServeSingleHTTP(resp, req)
	return resp
}

// TestHTTPResponseFromRequest serves a prepared request, e.g., one with custom headers.
func TestHTTPResponseFromRequest(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	ServeSingleHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure any response has
// status OK.
func TestHTTP(t *testing.T, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with the given error status code and returns
// the response body.
func TestBadHTTP(t *testing.T, method, urlStr string, payload io.Reader, status int) []byte {
	resp := TestHTTPResponse(t, method, urlStr, payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d to %s on %q, got %d instead: %s\n", status, method, urlStr, resp.Code, resp.Body.String())
	}
	return resp.Body.Bytes()
}
