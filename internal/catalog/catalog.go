// Package catalog is the authoritative source of product prices.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

type Catalog interface {
	Products(ctx context.Context) ([]*Product, error)
	Product(ctx context.Context, sku string) (*Product, error)
	Price(ctx context.Context, sku string) (decimal.Decimal, error)
}

// MemoryCatalog implements Catalog over a fixed product list.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*Product
}

func NewMemoryCatalog(products ...Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]*Product, len(products))}
	for i := range products {
		p := products[i]
		if p.ID == 0 {
			p.ID = int64(i + 1)
		}
		c.products[p.SKU] = &p
	}
	return c
}

func (c *MemoryCatalog) Products(_ context.Context) ([]*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Product, 0, len(c.products))
	for _, p := range c.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) Product(_ context.Context, sku string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[sku]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *MemoryCatalog) Price(ctx context.Context, sku string) (decimal.Decimal, error) {
	p, err := c.Product(ctx, sku)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}
