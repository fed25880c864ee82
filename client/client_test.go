package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListBypassesHTTPCaches(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Application{})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.ListApplications(context.Background(), Query{Text: "acme", Status: StatusApplied}); err != nil {
		t.Fatalf("list: %v", err)
	}

	query := gotRequest.URL.Query()
	if query.Get("q") != "acme" || query.Get("status") != "applied" {
		t.Fatalf("unexpected query: %v", query)
	}
	if query.Get("_t") == "" {
		t.Fatal("list must carry a cache-busting token")
	}
	if gotRequest.Header.Get("Cache-Control") == "" {
		t.Fatal("list must be marked non-cacheable")
	}
}

func TestSessionCookiePersistsAcrossCalls(t *testing.T) {
	const token = "sess-123"
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: token, Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "a@example.com"})
	})
	var gotToken string
	mux.HandleFunc("/apps", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session"); err == nil {
			gotToken = cookie.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Application{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Login(context.Background(), "a@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.ListApplications(context.Background(), Query{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotToken != token {
		t.Fatalf("expected session cookie on follow-up request, got %q", gotToken)
	}
}

func TestServerErrorsDecodeToAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "company and role are required"})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.CreateApplication(context.Background(), Fields{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "company and role are required" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestTransportFailureIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.ListApplications(context.Background(), Query{})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatal("transport failures must not look like server errors")
	}
}

func TestMeReturnsNilWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":null}`))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}
