package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/R3E-Network/storefront_layer/internal/service"
)

// CartItem is one line of the cart.
type CartItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"productId"`
	VariantID int64   `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// CartContents is the session user's cart.
type CartContents struct {
	ID       int64      `json:"id"`
	Items    []CartItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Currency string     `json:"currency,omitempty"`
}

// AddItemInput is the payload of AddItem.
type AddItemInput struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId,omitempty"`
	Quantity  int   `json:"quantity"`
}

// CartService manages the cart of the session user. The cart is addressed
// through the session, never by id.
type CartService struct {
	service.Base
}

// GetCart returns the current cart.
func (s *CartService) GetCart(ctx context.Context) (*CartContents, error) {
	return s.cartCall(ctx, "get cart", "/cart", nil, http.MethodGet)
}

// AddItem adds a product to the cart and returns the updated cart.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (*CartContents, error) {
	if in.ProductID == 0 {
		return nil, fmt.Errorf("add cart item: product id is required")
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("add cart item: quantity must be positive, got %d", in.Quantity)
	}
	return s.cartCall(ctx, "add cart item", "/cart/items", in, http.MethodPost)
}

// RemoveItem removes one line from the cart and returns the updated cart.
func (s *CartService) RemoveItem(ctx context.Context, itemID int64) (*CartContents, error) {
	return s.cartCall(ctx, "remove cart item", fmt.Sprintf("/cart/items/%d", itemID), nil, http.MethodDelete)
}

func (s *CartService) cartCall(ctx context.Context, op, endpoint string, data interface{}, method string) (*CartContents, error) {
	raw, err := s.Call(ctx, endpoint, data, method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cart, err := service.Decode[CartContents](raw, service.ShapeData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cart, nil
}
