package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the API router. timeout bounds each request's context.
func (h *Handler) Routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.RequestLogger)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Route("/advertisements", func(r chi.Router) {
				r.Post("/", h.CreateAdvertisementHandler)
				r.Get("/", h.ListAdvertisementsHandler)
				r.Route("/{adId}", func(r chi.Router) {
					r.Get("/", h.GetAdvertisementHandler)
					r.Patch("/", h.UpdateAdvertisementHandler)
					r.Post("/assign", h.AssignHandler)
					r.Post("/mark_done", h.MarkDoneHandler)
					r.Post("/confirm_done", h.ConfirmDoneHandler)
					r.Post("/cancel", h.CancelHandler)
					r.Post("/bids", h.CreateBidHandler)
					r.Get("/bids", h.GetBidsForAdvertisementHandler)
					r.Post("/comments", h.CreateCommentHandler)
				})
			})

			r.Get("/bids/my", h.GetMyBidsHandler)
			r.Get("/comments", h.ListCommentsHandler)

			r.Route("/contractors", func(r chi.Router) {
				r.Get("/", h.ListContractorsHandler)
				r.Get("/schedule", h.ScheduleHandler)
				r.Get("/{contractorId}/profile", h.ContractorProfileHandler)
			})
		})
	})
	return r
}
