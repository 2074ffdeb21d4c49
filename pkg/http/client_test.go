package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	expected := &ClientConfig{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UserAgent:    "feed-recorder/1.0",
		Headers:      make(map[string]string),
	}

	if !reflect.DeepEqual(config, expected) {
		t.Errorf("DefaultConfig() = %+v, expected %+v", config, expected)
	}
}

func TestNewClientWithNilConfigUsesDefaults(t *testing.T) {
	client := NewClient(nil)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if !reflect.DeepEqual(client.config, DefaultConfig()) {
		t.Error("NewClient(nil) should use default config")
	}
}

func TestGetWithContextSetsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	resp.Body.Close()

	if ua := gotUA.Load(); ua != "feed-recorder/1.0" {
		t.Errorf("User-Agent = %q, expected %q", ua, "feed-recorder/1.0")
	}
}

func TestGetWithContextRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	client := NewClient(config)

	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, expected %d", resp.StatusCode, http.StatusOK)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server called %d times, expected 3", n)
	}
}

func TestGetWithContextDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	client := NewClient(config)

	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	resp.Body.Close()

	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, expected 1", n)
	}
}

func TestGetWithContextHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.RetryBackoff = time.Minute // Would block without cancellation
	client := NewClient(config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetWithContext(ctx, server.URL); err == nil {
		t.Error("GetWithContext() with cancelled context should return an error")
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{0, false},
	}

	for _, tt := range tests {
		if got := IsRetryableStatusCode(tt.statusCode); got != tt.expected {
			t.Errorf("IsRetryableStatusCode(%d) = %v, expected %v", tt.statusCode, got, tt.expected)
		}
	}
}
