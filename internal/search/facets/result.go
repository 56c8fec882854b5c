package facets

import (
	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
)

// Value is one facet value and its document count.
type Value struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Facet is one named facet with its values in backend order.
type Facet struct {
	Name   string  `json:"name"`
	Values []Value `json:"values"`
}

// FamilyResult holds the facets of one dynamic family in discovery order.
type FamilyResult struct {
	Key    string  `json:"key"`
	Facets []Facet `json:"facets"`
}

// Facet returns the values of the named facet.
func (f FamilyResult) Facet(name string) ([]Value, bool) {
	for _, facet := range f.Facets {
		if facet.Name == name {
			return facet.Values, true
		}
	}
	return nil, false
}

// Result is a merged aggregation. A non-empty Failures still counts as success.
type Result struct {
	Static   []Facet                  `json:"static"`
	Families []FamilyResult           `json:"families"`
	Failures []apierrors.FacetFailure `json:"-"`
}

// Family returns the named family.
func (r *Result) Family(key string) (FamilyResult, bool) {
	for _, f := range r.Families {
		if f.Key == key {
			return f, true
		}
	}
	return FamilyResult{}, false
}

// StaticFacet returns the values of a static facet such as brands.
func (r *Result) StaticFacet(key string) ([]Value, bool) {
	for _, f := range r.Static {
		if f.Name == key {
			return f.Values, true
		}
	}
	return nil, false
}

// Map flattens the dynamic families to family -> name -> values.
func (r *Result) Map() map[string]map[string][]Value {
	out := make(map[string]map[string][]Value, len(r.Families))
	for _, f := range r.Families {
		names := make(map[string][]Value, len(f.Facets))
		for _, facet := range f.Facets {
			names[facet.Name] = facet.Values
		}
		out[f.Key] = names
	}
	return out
}

// PartialFailure returns an *errors.AggregationPartialFailure when any value
// lookup was dropped, nil otherwise.
func (r *Result) PartialFailure() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &apierrors.AggregationPartialFailure{Failures: append([]apierrors.FacetFailure(nil), r.Failures...)}
}
