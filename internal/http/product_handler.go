package http

import (
	"context"
	"net/http"
	"time"

	"github.com/xxomega77xx/googlepay/internal/catalog"
	"github.com/xxomega77xx/googlepay/internal/pricing"
)

type ProductLister interface {
	Products(ctx context.Context) ([]*catalog.Product, error)
}

type ProductHandler struct {
	catalog ProductLister
	timeout time.Duration
}

func NewProductHandler(catalog ProductLister, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductResponse struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.catalog.Products(ctx)
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = ProductResponse{
			SKU:         p.SKU,
			Name:        p.Name,
			Description: p.Description,
			Price:       pricing.Format(p.Price),
			Currency:    p.Currency,
		}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}
