// Package swaggerkit serves the swagger UI and a spec decorated with the error envelope
package swaggerkit

import (
	"encoding/json"
	"net/http"
	"strings"

	httpSwagger "github.com/swaggo/http-swagger"

	phttp "arledger/internal/platform/net/http"
)

// Mount serves /api/docs when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/api/docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/api/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/api/docs/doc.json", serveDoc(rawDoc))
	r.Handle("/api/docs/*", httpSwagger.Handler(httpSwagger.URL("/api/docs/doc.json")))
}

func serveDoc(raw func() string) phttp.Handler {
	return func(w http.ResponseWriter, _ *http.Request) {
		var spec map[string]any
		if err := json.Unmarshal([]byte(raw()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}
		decorate(spec, "/api/v1")
		w.Header().Set("Cache-Control", "no-store")
		phttp.JSON(w, http.StatusOK, spec)
	}
}

// defaults are the error responses every operation can produce
var defaults = map[string]string{
	"400": "Bad Request",
	"401": "Unauthorized",
	"500": "Internal Server Error",
}

// decorate lifts the spec to OAS 3.0.3, which the UI renders, and documents the error envelope
func decorate(spec map[string]any, base string) {
	if v, _ := spec["openapi"].(string); !strings.HasPrefix(v, "3.0") {
		spec["openapi"] = "3.0.3"
	}
	delete(spec, "swagger")
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": base}}
	}

	schemas := child(child(spec, "components"), "schemas")
	if _, ok := schemas["ErrorResponse"]; !ok {
		str := map[string]any{"type": "string"}
		num := map[string]any{"type": "integer"}
		schemas["ErrorResponse"] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status_code": num, "status": str, "code": num, "error": str, "request_id": str,
			},
			"required": []any{"status_code", "status"},
		}
	}

	paths, _ := spec["paths"].(map[string]any)
	for _, p := range paths {
		ops, _ := p.(map[string]any)
		for _, o := range ops {
			op, ok := o.(map[string]any)
			if !ok {
				continue
			}
			responses := child(op, "responses")
			for code, desc := range defaults {
				if _, ok := responses[code]; ok {
					continue
				}
				responses[code] = map[string]any{
					"description": desc,
					"content": map[string]any{"application/json": map[string]any{
						"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
					}},
				}
			}
		}
	}
}

// child returns m[key] as a map, creating it when missing
func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}
