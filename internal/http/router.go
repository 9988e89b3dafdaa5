package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Checkout       *CheckoutHandler
	Products       *ProductHandler
	Env            string
	BaseURL        string
	RequestTimeout time.Duration
}

type CheckResponse struct {
	Message string `json:"message"`
	Env     string `json:"env"`
	BaseURL string `json:"base_url"`
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/check", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, CheckResponse{Message: "ok", Env: cfg.Env, BaseURL: cfg.BaseURL})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/checkout/config", cfg.Checkout.Config)
		if cfg.Products != nil {
			r.Get("/products", cfg.Products.Get)
		}
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.Checkout.CreateOrder)
			r.Get("/{orderID}", cfg.Checkout.GetOrder)
			r.Post("/{orderID}", cfg.Checkout.GetOrder)
			r.Post("/{orderID}/capture", cfg.Checkout.CaptureOrder)
			r.Patch("/{orderID}/shipping", cfg.Checkout.UpdateShipping)
		})
	})

	return otelhttp.NewHandler(r, "googlepay-http")
}
