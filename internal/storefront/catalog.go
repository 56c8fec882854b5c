package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/R3E-Network/storefront_layer/internal/service"
)

// Product is a catalog product.
type Product struct {
	ID          int64             `json:"id"`
	SKU         string            `json:"sku"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug,omitempty"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency,omitempty"`
	BrandID     int64             `json:"brandId,omitempty"`
	CategoryIDs []int64           `json:"categoryIds,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items    []Product `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// Brand is a product brand.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// ProductListParams filters a product listing.
type ProductListParams struct {
	Page       int
	PageSize   int
	CategoryID int64
	BrandID    int64
}

func (p ProductListParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.CategoryID != 0 {
		v.Set("categoryId", strconv.FormatInt(p.CategoryID, 10))
	}
	if p.BrandID != 0 {
		v.Set("brandId", strconv.FormatInt(p.BrandID, 10))
	}
	return v
}

// CatalogService reads products and brands from the catalog backend.
type CatalogService struct {
	service.Base
}

// ListProducts returns one page of products.
func (s *CatalogService) ListProducts(ctx context.Context, params ProductListParams) (*ProductPage, error) {
	raw, err := s.Call(ctx, "/products", params.values(), http.MethodGet)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	page, err := service.Decode[ProductPage](raw, service.ShapeData)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &page, nil
}

// GetProduct returns one product.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*Product, error) {
	raw, err := s.Call(ctx, fmt.Sprintf("/products/%d", id), nil, http.MethodGet)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	product, err := service.Decode[Product](raw, service.ShapeData)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &product, nil
}

// ListBrandsSafe returns the brand list, or nil when it cannot be fetched.
func (s *CatalogService) ListBrandsSafe(ctx context.Context) []Brand {
	raw := s.CallSafe(ctx, "/brands", nil, http.MethodGet)
	if raw == nil {
		return nil
	}
	brands, err := service.Decode[[]Brand](raw, service.ShapeList)
	if err != nil {
		return nil
	}
	return brands
}
