package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/application"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/links", handler.createLink)
			r.Get("/links", handler.listLinks)
			r.Get("/links/{id}", handler.getLink)
			r.Post("/links/{id}/funding", handler.reportFunding)
			r.Post("/links/{id}/claim", handler.claimLink)
			r.Post("/links/{id}/claim/resolve", handler.resolveClaim)
			r.Post("/links/{id}/reopen", handler.reopenLink)
		})
	})
	return r
}
