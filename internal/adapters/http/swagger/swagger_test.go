package swagger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a router with the docs registered", t, func() {
		r := chi.NewRouter()
		Register(r)

		convey.Convey("When requesting /openapi.yaml", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.Convey("Then the embedded document should be served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
			})
		})

		convey.Convey("When requesting /api-docs", func() {
			req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.Convey("Then the ReDoc page should point at the document", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
			})
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded OpenAPI document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)
		convey.So(err, convey.ShouldBeNil)
		paths, _ := doc["paths"].(map[string]any)

		convey.Convey("Then every API route should be documented", func() {
			convey.So(doc["openapi"], convey.ShouldStartWith, "3.")
			routes := map[string][]string{
				"/players":               {"post"},
				"/players/{id}":          {"get"},
				"/players/{id}/stats":    {"get"},
				"/players/{id}/partners": {"get"},
				"/players/{id}/matches":  {"get"},
				"/head-to-head":          {"get"},
				"/matches":               {"post"},
				"/matches/{id}":          {"get"},
				"/ranking":               {"get"},
				"/recompute":             {"post"},
				"/categories":            {"get"},
				"/stats":                 {"get"},
				"/healthz":               {"get"},
			}
			for path, methods := range routes {
				ops, ok := paths[path].(map[string]any)
				convey.So(ok, convey.ShouldBeTrue)
				for _, m := range methods {
					convey.So(ops, convey.ShouldContainKey, m)
				}
			}
		})
	})
}

func TestRegisterWithNilRouter(t *testing.T) {
	convey.Convey("Given a nil router", t, func() {
		convey.So(func() { Register(nil) }, convey.ShouldPanic)
	})
}
