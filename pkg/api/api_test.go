// pkg/api/api_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Enrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/enrich" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}

		var req EnrichRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Product{Title: "Widget", Price: "9.99", Currency: "EUR"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("tok"))
	product, err := c.Enrich(context.Background(), "https://amazon.pt/dp/B0")
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if product.Title != "Widget" || product.Degraded() {
		t.Errorf("got %+v", product)
	}
}

func TestClient_EnrichRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(ErrorResponse{Code: ErrCodeUntrustedDomain, Message: "nope"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Enrich(context.Background(), "https://blog.example.org")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), ErrCodeUntrustedDomain) {
		t.Errorf("error = %v, want code in message", err)
	}
}

func TestProduct_Degraded(t *testing.T) {
	if (&Product{}).Degraded() {
		t.Error("clean product reported degraded")
	}
	if !(&Product{Error: "Timeout"}).Degraded() {
		t.Error("errored product not reported degraded")
	}
}
