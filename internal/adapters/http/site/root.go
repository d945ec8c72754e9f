// Package site serves the embedded ranking page.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the ranking page to r: the page itself at / and its
// assets under /site/.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	files := http.FileServer(FS())
	r.Get("/", NewRootHandler(files).HandleRoot)
	r.Handle("/site/*", http.StripPrefix("/site", files))
}

// RootHandler serves the page at the site root.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a root handler over the embedded files.
func NewRootHandler(files http.Handler) *RootHandler {
	return &RootHandler{files: files}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
