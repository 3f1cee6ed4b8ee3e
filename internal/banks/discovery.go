package banks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Default deposit endpoint used when discovery is disabled or fails.
const (
	DefaultDepositPath   = "/deposit"
	DefaultDepositMethod = http.MethodPost
)

// EndpointResolver resolves the deposit endpoint of a partner bank. The
// orchestrator consults it only for banks whose transfer method is "auto".
type EndpointResolver interface {
	ResolveDepositEndpoint(ctx context.Context, baseURL string) (path string, method string)
}

// StaticResolver always returns a fixed endpoint. It is the default resolver.
type StaticResolver struct {
	Path   string
	Method string
}

// NewStaticResolver returns a resolver fixed on the default deposit endpoint.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{Path: DefaultDepositPath, Method: DefaultDepositMethod}
}

func (r *StaticResolver) ResolveDepositEndpoint(ctx context.Context, baseURL string) (string, string) {
	return r.Path, r.Method
}

// DiscoveryResolver probes a partner's published OpenAPI document for a path
// containing "deposit" that accepts POST, PATCH or PUT. Discovery is a
// best-effort heuristic, not a guarantee: any failure falls back to the
// static default endpoint.
type DiscoveryResolver struct {
	HTTPClient *http.Client
	SchemaPath string
}

// NewDiscoveryResolver creates a resolver that probes <base>/openapi.json.
func NewDiscoveryResolver(timeout time.Duration) *DiscoveryResolver {
	return &DiscoveryResolver{
		HTTPClient: &http.Client{Timeout: timeout},
		SchemaPath: "/openapi.json",
	}
}

func (r *DiscoveryResolver) ResolveDepositEndpoint(ctx context.Context, baseURL string) (string, string) {
	path, method, err := r.discover(ctx, baseURL)
	if err != nil {
		log.Printf("level=warn component=bank_directory msg=\"deposit endpoint discovery failed; using default\" base_url=%s err=%v", baseURL, err)
		return DefaultDepositPath, DefaultDepositMethod
	}
	return path, method
}

func (r *DiscoveryResolver) discover(ctx context.Context, baseURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+r.SchemaPath, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", &schemaStatusError{status: resp.StatusCode}
	}

	var schema struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		return "", "", err
	}

	// Deterministic iteration: probe paths in sorted order.
	paths := make([]string, 0, len(schema.Paths))
	for p := range schema.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if !strings.Contains(strings.ToLower(p), "deposit") {
			continue
		}
		for _, method := range []string{http.MethodPost, http.MethodPatch, http.MethodPut} {
			if _, ok := schema.Paths[p][strings.ToLower(method)]; ok {
				return p, method, nil
			}
		}
	}
	return "", "", errNoDepositPath
}

type schemaStatusError struct {
	status int
}

func (e *schemaStatusError) Error() string {
	return fmt.Sprintf("schema request returned status %d", e.status)
}

var errNoDepositPath = errors.New("no deposit path in schema")
