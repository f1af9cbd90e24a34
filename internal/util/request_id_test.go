package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDKeepsCallerProvidedID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Request-Id", "cart-trace-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "cart-trace-42" {
		t.Fatalf("context request id = %q, want caller's", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "cart-trace-42" {
		t.Fatalf("response request id = %q, want caller's", got)
	}
}

func TestWithRequestIDMintsDistinctIDs(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	seen := make(map[string]struct{})
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get("X-Request-Id")
		if id == "" {
			t.Fatal("expected a minted request id")
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct ids, got %d", len(seen))
	}
}
