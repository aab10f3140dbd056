package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func TestDoSendsDefaultHeaders(t *testing.T) {
	var gotUser, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(UserIDHeader)
		gotType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithUserID("user-42"))
	resp, err := c.POST(context.Background(), "/x", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotUser != "user-42" {
		t.Errorf("Expected identity header user-42, got %q", gotUser)
	}
	if gotType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotType)
	}

	var body struct{ OK bool }
	if err := resp.ParseJSON(&body); err != nil || !body.OK {
		t.Errorf("Expected parsed body ok=true, got %+v (err=%v)", body, err)
	}
}

func TestDoReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad basket"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.GET(context.Background(), "/y")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", se.StatusCode)
	}
	if string(se.Body) != `{"error":"bad basket"}` {
		t.Errorf("Expected body preserved, got %s", se.Body)
	}
}

func TestDoWithRetryRecoversFromServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	req := NewRequest(http.MethodGet, "/z").WithContext(context.Background())
	if _, err := c.DoWithRetry(req, fastRetry()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	req := NewRequest(http.MethodGet, "/z").WithContext(context.Background())
	if _, err := c.DoWithRetry(req, fastRetry()); err == nil {
		t.Fatal("Expected error for 422 response")
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
}

func TestRetryable(t *testing.T) {
	cases := map[error]bool{
		&StatusError{StatusCode: 500}: true,
		&StatusError{StatusCode: 429}: true,
		&StatusError{StatusCode: 404}: false,
		context.Canceled:              false,
		errors.New("connection reset"): true,
	}
	for err, want := range cases {
		if got := Retryable(err); got != want {
			t.Errorf("Retryable(%v): expected %v, got %v", err, want, got)
		}
	}
}
