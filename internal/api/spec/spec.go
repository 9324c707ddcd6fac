package spec

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"net/http"
)

//go:embed openapi.yaml
var openapiFS embed.FS

// OpenAPIHandler serves the embedded OpenAPI specification. The document is
// read once at startup; the ETag lets the swagger UI revalidate it cheaply.
func OpenAPIHandler() http.HandlerFunc {
	content, err := openapiFS.ReadFile("openapi.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded openapi spec unreadable: %v", err))
	}
	etag := fmt.Sprintf(`"%x"`, sha256.Sum256(content))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}
