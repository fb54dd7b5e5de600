package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gastroview/model-service/internal/api/middleware"
)

// NewRouter wires the HTTP routes.
func NewRouter(
	detection *DetectionTaskHandler,
	classification *ClassificationTaskHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/detection-tasks", func(r chi.Router) {
			r.Post("/", detection.Create)
			r.Post("/batch", detection.CreateBatch)
			r.Get("/", detection.List)
		})

		r.Route("/classification-tasks", func(r chi.Router) {
			r.Post("/", classification.Create)
			r.Post("/batch", classification.CreateBatch)
			r.Get("/", classification.List)
		})

		r.Get("/images/{imageID}/classification-results", classification.ListResultsOfImage)

		r.Route("/classification-types", func(r chi.Router) {
			r.Get("/", classification.ListTypes)
			r.Get("/{typeID}", classification.GetType)
		})
	})

	return r
}
