package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/R3E-Network/storefront_layer/internal/service"
)

// Order is a placed order.
type Order struct {
	ID        int64      `json:"id"`
	Number    string     `json:"number"`
	Status    string     `json:"status"`
	Total     float64    `json:"total"`
	Currency  string     `json:"currency,omitempty"`
	Items     []CartItem `json:"items,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// OrderListParams filters an order listing.
type OrderListParams struct {
	Page   int
	Status string
}

// OrderService reads orders of the session user's company.
type OrderService struct {
	service.Base
}

// ListCompanyOrders lists the orders of the current company. It fails before
// any request when the session carries no company id.
func (s *OrderService) ListCompanyOrders(ctx context.Context, params OrderListParams) ([]Order, error) {
	rc := s.Context(ctx)
	companyID, err := rc.RequireCompanyID()
	if err != nil {
		return nil, fmt.Errorf("list company orders: %w", err)
	}

	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}

	raw, err := s.CallWith(ctx, fmt.Sprintf("/companies/%d/orders", companyID), query, service.CallOptions{})
	if err != nil {
		return nil, fmt.Errorf("list company orders: %w", err)
	}
	orders, err := service.Decode[[]Order](raw, service.ShapeData)
	if err != nil {
		return nil, fmt.Errorf("list company orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*Order, error) {
	raw, err := s.Call(ctx, fmt.Sprintf("/orders/%d", id), nil, http.MethodGet)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	order, err := service.Decode[Order](raw, service.ShapeData)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}
