// Package app is the composition root of the storefront layer.
//
// # Architecture Role
//
// The app package builds the shared state once and hands it to everything
// above it. It is NOT a business logic layer: backend calls belong in
// internal/storefront, cross-cutting behaviour in internal/transport and
// internal/service.
//
// # Wiring
//
//	config.Config
//	    │
//	    ├── credentials.Store      memory | cookie (shared jar) | redis
//	    ├── identity.Resolver      RequestContext from the store
//	    ├── transport.Factory      one Client per backend, auth interceptor installed
//	    │       └── HTTPRefresher  POST {auth}/auth/refresh on 401
//	    └── service.Registry       one instance per concrete service type
//	            └── storefront.*   Catalog, Cart, Orders, Preferences, Search, Auth
//
// # Usage
//
//	cfg, err := config.Load("storefront.yaml", ".env")
//	if err != nil { ... }
//	application, err := app.New(cfg)
//	if err != nil { ... }
//	defer application.Close()
//
//	facets, err := application.Search().Facets(ctx, filter)
package app
