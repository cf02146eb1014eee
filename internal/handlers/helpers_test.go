package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

// decodeResponse unmarshals a JSON body into v and fails the test on error.
func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON response, got content type %q (body %q)", ct, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body %q)", status, rr.Code, rr.Body.String())
	}

	var response ErrorResponse
	decodeResponse(t, rr, &response)
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}
