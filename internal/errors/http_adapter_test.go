package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation", ValidationError("bad input"), http.StatusBadRequest},
		{"config", ConfigRequired("host.token"), http.StatusBadRequest},
		{"auth", HostAuthError(fmt.Errorf("401")), http.StatusUnauthorized},
		{"not found", NotFoundError("no such repository"), http.StatusNotFound},
		{"host", HostError("fetch", fmt.Errorf("502")), http.StatusBadGateway},
		{"pipeline", StageFailed("validating", fmt.Errorf("boom")), http.StatusUnprocessableEntity},
		{"daemon", DaemonError("not running"), http.StatusServiceUnavailable},
		{"store", StoreError("upsert", fmt.Errorf("locked")), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("anything"), http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(test.err); got != test.expected {
				t.Errorf("StatusCodeFor() = %d, want %d", got, test.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	rec := httptest.NewRecorder()
	err := ValidationError("invalid HTTP method").WithContext("method", "PUT")
	adapter.WriteErrorResponse(rec, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}

	var payload HTTPErrorResponse
	if derr := json.Unmarshal(rec.Body.Bytes(), &payload); derr != nil {
		t.Fatalf("decode body: %v", derr)
	}
	if payload.Error != "invalid HTTP method" {
		t.Errorf("error = %q, want %q", payload.Error, "invalid HTTP method")
	}
	if payload.Code != string(CategoryValidation) {
		t.Errorf("code = %q, want %q", payload.Code, CategoryValidation)
	}
	if payload.Details["method"] != "PUT" {
		t.Errorf("details[method] = %v, want PUT", payload.Details["method"])
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse_PlainError(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)

	rec := httptest.NewRecorder()
	adapter.WriteErrorResponse(rec, fmt.Errorf("disk full"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var payload HTTPErrorResponse
	if derr := json.Unmarshal(rec.Body.Bytes(), &payload); derr != nil {
		t.Fatalf("decode body: %v", derr)
	}
	if payload.Error != "disk full" {
		t.Errorf("error = %q, want %q", payload.Error, "disk full")
	}
}
