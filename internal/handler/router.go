package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/item", h.GetItem)
	r.Get("/items", h.GetItems)

	r.Post("/register-user", h.RegisterUser)
	r.Post("/login-user", h.LoginUser)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Optional)

		r.Get("/item-reviews", h.GetItemReviews)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require)

		r.Post("/review", h.PostReview)
		r.Patch("/review", h.PatchReview)
		r.Delete("/review", h.DeleteReview)

		r.Post("/order", h.PostOrder)
		r.Get("/order", h.GetOrder)
		r.Get("/orders", h.GetOrders)
		r.Get("/statuses", h.GetStatuses)

		r.Get("/user", h.GetUser)
		r.Patch("/user-data", h.PatchUserData)
		r.Patch("/user-password", h.PatchUserPassword)
		r.Delete("/user", h.DeleteUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
