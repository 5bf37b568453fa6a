package swagger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	var doc struct {
		OpenAPI string                               `yaml:"openapi"`
		Paths   map[string]map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(openAPISpec, &doc); err != nil {
		t.Fatalf("openapi.yaml does not parse: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Fatalf("unexpected openapi version %q", doc.OpenAPI)
	}

	routes := map[string][]string{
		"/api/v1/calculate":           {"post"},
		"/api/v1/history":             {"get", "post", "delete"},
		"/api/v1/history/{id}":        {"delete"},
		"/api/v1/history/summary":     {"get"},
		"/api/v1/history/prefill":     {"get"},
		"/api/v1/history/export.xlsx": {"get"},
		"/api/v1/history/export.pdf":  {"get"},
		"/api/v1/tariffs":             {"get", "put"},
		"/healthz":                    {"get"},
		"/readyz":                     {"get"},
		"/livez":                      {"get"},
		"/metrics":                    {"get"},
	}
	for path, methods := range routes {
		ops, ok := doc.Paths[path]
		if !ok {
			t.Errorf("path %s not documented", path)
			continue
		}
		for _, m := range methods {
			if _, ok := ops[m]; !ok {
				t.Errorf("%s %s not documented", strings.ToUpper(m), path)
			}
		}
	}
}

func TestHandler(t *testing.T) {
	h := Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/x-yaml" {
		t.Fatalf("openapi.yaml: got %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/docs/openapi.yaml") {
		t.Fatalf("index: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rr.Code)
	}
}
