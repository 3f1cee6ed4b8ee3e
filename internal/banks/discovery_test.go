package banks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDiscoveryResolverFindsDepositPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"paths": {
				"/health": {"get": {}},
				"/account/deposit": {"patch": {}},
				"/deposit/": {"post": {}}
			}
		}`))
	}))
	defer server.Close()

	resolver := NewDiscoveryResolver(2 * time.Second)
	path, method := resolver.ResolveDepositEndpoint(context.Background(), server.URL)

	// Paths are probed in sorted order, so /account/deposit wins.
	if path != "/account/deposit" {
		t.Fatalf("expected /account/deposit, got %s", path)
	}
	if method != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", method)
	}
}

func TestDiscoveryResolverFallsBackWhenSchemaMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resolver := NewDiscoveryResolver(2 * time.Second)
	path, method := resolver.ResolveDepositEndpoint(context.Background(), server.URL)

	if path != DefaultDepositPath || method != DefaultDepositMethod {
		t.Fatalf("expected default endpoint on schema miss, got %s %s", method, path)
	}
}

func TestDiscoveryResolverFallsBackWhenNoDepositPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paths": {"/withdraw": {"post": {}}}}`))
	}))
	defer server.Close()

	resolver := NewDiscoveryResolver(2 * time.Second)
	path, method := resolver.ResolveDepositEndpoint(context.Background(), server.URL)

	if path != DefaultDepositPath || method != DefaultDepositMethod {
		t.Fatalf("expected default endpoint when schema exposes no deposit path, got %s %s", method, path)
	}
}

func TestDiscoveryResolverFallsBackWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	resolver := NewDiscoveryResolver(500 * time.Millisecond)
	path, method := resolver.ResolveDepositEndpoint(context.Background(), server.URL)

	if path != DefaultDepositPath || method != DefaultDepositMethod {
		t.Fatalf("expected default endpoint when partner is unreachable, got %s %s", method, path)
	}
}

func TestStaticResolver(t *testing.T) {
	resolver := NewStaticResolver()
	path, method := resolver.ResolveDepositEndpoint(context.Background(), "http://example.test")
	if path != DefaultDepositPath || method != DefaultDepositMethod {
		t.Fatalf("expected the default endpoint, got %s %s", method, path)
	}
}
