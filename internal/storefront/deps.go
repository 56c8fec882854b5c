// Package storefront holds the concrete backend services. Each one formats an
// endpoint and payload and calls one of the service.Base primitives; every
// cross-cutting concern lives below it.
package storefront

import (
	"github.com/R3E-Network/storefront_layer/internal/config"
	"github.com/R3E-Network/storefront_layer/internal/identity"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/service"
)

// Deps are the shared collaborators the service accessors build from.
type Deps struct {
	// Clients maps backend names (config.Backend*) to their client.
	Clients  map[string]service.Doer
	Provider identity.ContextProvider
	Search   config.SearchConfig
	Logger   *logging.Logger
}

func (d Deps) base(name, backend string) service.Base {
	return d.baseWith(name, backend, d.Provider)
}

func (d Deps) baseWith(name, backend string, provider identity.ContextProvider) service.Base {
	var client service.Doer
	if c, ok := d.Clients[backend]; ok {
		client = c
	}
	return service.NewBase(service.BaseConfig{
		Name:          name,
		DefaultClient: client,
		Provider:      provider,
		Logger:        d.Logger,
	})
}

// Catalog returns the catalog service singleton held by reg.
func Catalog(reg *service.Registry, deps Deps) *CatalogService {
	return service.Instance(reg, func() *CatalogService {
		return &CatalogService{Base: deps.base("catalog", config.BackendCatalog)}
	})
}

// Cart returns the cart service singleton held by reg.
func Cart(reg *service.Registry, deps Deps) *CartService {
	return service.Instance(reg, func() *CartService {
		return &CartService{Base: deps.base("cart", config.BackendCommerce)}
	})
}

// Orders returns the order service singleton held by reg.
func Orders(reg *service.Registry, deps Deps) *OrderService {
	return service.Instance(reg, func() *OrderService {
		return &OrderService{Base: deps.base("orders", config.BackendCommerce)}
	})
}

// Preferences returns the preference service singleton held by reg.
func Preferences(reg *service.Registry, deps Deps) *PreferenceService {
	return service.Instance(reg, func() *PreferenceService {
		return &PreferenceService{Base: deps.base("preferences", config.BackendPreferences)}
	})
}

// Auth returns the auth service singleton held by reg.
func Auth(reg *service.Registry, deps Deps) *AuthService {
	return service.Instance(reg, func() *AuthService {
		return &AuthService{Base: deps.base("auth", config.BackendAuth)}
	})
}

// Search returns the search service singleton held by reg.
func Search(reg *service.Registry, deps Deps) *SearchService {
	return service.Instance(reg, func() *SearchService {
		return newSearchService(deps)
	})
}
