package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/R3E-Network/storefront_layer/internal/config"
	"github.com/R3E-Network/storefront_layer/internal/credentials"
	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/identity"
	"github.com/R3E-Network/storefront_layer/internal/search"
	"github.com/R3E-Network/storefront_layer/internal/search/facets"
	"github.com/R3E-Network/storefront_layer/internal/service"
)

// SearchRequest is a product search.
type SearchRequest struct {
	Text     string
	Filter   search.BoolQuery
	Page     int
	PageSize int
	Sort     []search.Clause
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Total    int64     `json:"total"`
	Products []Product `json:"products"`
}

// SearchService queries the search backend. It resolves the elastic code
// claim, which the generic resolver does not extract, to select the index.
type SearchService struct {
	service.Base

	cfg      config.SearchConfig
	shape    search.ResponseShape
	shapeErr error
	facets   *facets.Engine
}

func newSearchService(deps Deps) *SearchService {
	cfg := deps.Search
	if cfg.Path == "" {
		cfg.Path = config.DefaultSearchPath
	}
	if cfg.Index == "" {
		cfg.Index = config.DefaultIndex
	}

	shape, err := search.ParseResponseShape(cfg.ResponseEnvelope)

	s := &SearchService{
		Base:     deps.baseWith("search", config.BackendSearch, elasticProvider(deps.Provider)),
		cfg:      cfg,
		shape:    shape,
		shapeErr: err,
	}
	s.facets = facets.NewEngine(s, facets.Config{
		BucketCap:   cfg.BucketCap,
		Concurrency: cfg.Concurrency,
		RatePerSec:  cfg.RatePerSec,
		Logger:      deps.Logger,
	})
	return s
}

// elasticProvider decorates inner with the elastic code claim.
func elasticProvider(inner identity.ContextProvider) identity.ContextProvider {
	if inner == nil {
		inner = identity.Static(identity.RequestContext{})
	}
	return identity.ProviderFunc(func(ctx context.Context) identity.RequestContext {
		rc := inner.Resolve(ctx)
		if claims := credentials.DecodeClaims(rc.AccessToken); claims != nil {
			rc.ElasticCode = claims.ElasticCode
		}
		return rc
	})
}

// Index returns the index the session searches.
func (s *SearchService) Index(ctx context.Context) string {
	return s.indexFor(s.Context(ctx))
}

func (s *SearchService) indexFor(rc identity.RequestContext) string {
	if rc.ElasticCode != "" && strings.Contains(s.cfg.IndexPattern, "%s") {
		return fmt.Sprintf(s.cfg.IndexPattern, rc.ElasticCode)
	}
	return s.cfg.Index
}

// Execute posts q in a search envelope and parses the response. It makes
// SearchService a facets.Executor.
func (s *SearchService) Execute(ctx context.Context, q *search.Query) (*search.Response, error) {
	if s.shapeErr != nil {
		return nil, apierrors.Request("search", s.shapeErr)
	}
	body, err := search.NewEnvelope(s.Index(ctx), q).Encode()
	if err != nil {
		return nil, fmt.Errorf("encode search envelope: %w", err)
	}

	raw, err := s.CallWith(ctx, s.cfg.Path, json.RawMessage(body), service.CallOptions{Method: http.MethodPost})
	if err != nil {
		return nil, err
	}
	return search.ParseResponse(raw, s.shape)
}

// Search runs a paged product search.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 24
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	scope := req.Filter.Clone()
	if text := strings.TrimSpace(req.Text); text != "" {
		scope.Must = append(scope.Must, search.Match("name", text))
	}

	resp, err := s.Execute(ctx, &search.Query{
		Bool: scope,
		Size: pageSize,
		From: (page - 1) * pageSize,
		Sort: req.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	products, err := search.Sources[Product](resp)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return &SearchResult{Total: resp.Total, Products: products}, nil
}

// Facets aggregates the facet data for the catalog scope of filter.
func (s *SearchService) Facets(ctx context.Context, filter search.BoolQuery) (*facets.Result, error) {
	return s.facets.Aggregate(ctx, filter)
}
