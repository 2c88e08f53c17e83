package handler

import (
	"fmt"
	"net/http"

	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

const SpecPath = "/docs/openapi.yaml"

type DocsHandler struct {
	spec []byte
	page []byte
}

func NewDocsHandler(spec []byte) *DocsHandler {
	return &DocsHandler{
		spec: spec,
		page: []byte(fmt.Sprintf(swaggerPage, SpecPath)),
	}
}

func (h *DocsHandler) Spec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(h.spec); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write openapi document", "error", err)
	}
}

func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.page); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write docs page", "error", err)
	}
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Bank Cards API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = () => SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui", deepLinking: true });
  </script>
</body>
</html>`
