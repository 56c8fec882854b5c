// Package search composes queries in the search backend's dialect and parses
// its responses.
package search

import (
	json "github.com/goccy/go-json"
)

// QueryTypeSearch is the only query type the envelope carries.
const QueryTypeSearch = "search"

// Clause is one leaf or compound query clause, e.g. {"term": {"brand.id": 3}}.
type Clause map[string]interface{}

// Term matches an exact value.
func Term(field string, value interface{}) Clause {
	return Clause{"term": map[string]interface{}{field: value}}
}

// Terms matches any of values.
func Terms(field string, values ...interface{}) Clause {
	if values == nil {
		values = []interface{}{}
	}
	return Clause{"terms": map[string]interface{}{field: values}}
}

// Match runs a full-text match.
func Match(field, text string) Clause {
	return Clause{"match": map[string]interface{}{field: text}}
}

// Bounds are the optional limits of a Range clause.
type Bounds struct {
	Gte interface{} `json:"gte,omitempty"`
	Gt  interface{} `json:"gt,omitempty"`
	Lte interface{} `json:"lte,omitempty"`
	Lt  interface{} `json:"lt,omitempty"`
}

// Range restricts field to bounds.
func Range(field string, bounds Bounds) Clause {
	return Clause{"range": map[string]interface{}{field: bounds}}
}

// Exists requires field to be present.
func Exists(field string) Clause {
	return Clause{"exists": map[string]interface{}{"field": field}}
}

// Nested scopes inner to a nested document path.
func Nested(path string, inner Clause) Clause {
	return Clause{"nested": map[string]interface{}{"path": path, "query": inner}}
}

// Bool groups clauses into a compound clause usable inside another BoolQuery.
func Bool(q BoolQuery) Clause {
	return Clause{"bool": q.clauses()}
}

// BoolQuery holds the must / filter / must_not lists.
type BoolQuery struct {
	Must    []Clause
	Filter  []Clause
	MustNot []Clause
}

func (b BoolQuery) clauses() map[string][]Clause {
	return map[string][]Clause{
		"must":     nonNil(b.Must),
		"filter":   nonNil(b.Filter),
		"must_not": nonNil(b.MustNot),
	}
}

// Clone returns a copy whose slices can be appended to independently.
func (b BoolQuery) Clone() BoolQuery {
	return BoolQuery{
		Must:    append([]Clause(nil), b.Must...),
		Filter:  append([]Clause(nil), b.Filter...),
		MustNot: append([]Clause(nil), b.MustNot...),
	}
}

func nonNil(c []Clause) []Clause {
	if c == nil {
		return []Clause{}
	}
	return c
}

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort orders by field.
func Sort(field string, order SortOrder) Clause {
	return Clause{field: map[string]interface{}{"order": order}}
}

// Aggregation is one named aggregation body.
type Aggregation map[string]interface{}

// TermsAgg buckets documents by the distinct values of field.
func TermsAgg(field string, size int) Aggregation {
	return Aggregation{"terms": map[string]interface{}{"field": field, "size": size}}
}

// WithSub nests sub-aggregations under a.
func (a Aggregation) WithSub(subs map[string]Aggregation) Aggregation {
	out := make(Aggregation, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out["aggs"] = subs
	return out
}

// Query is the body of a search envelope.
type Query struct {
	Bool BoolQuery
	Size int
	From int
	Sort []Clause
	Aggs map[string]Aggregation
}

// WithAggs returns a size-0 copy of q carrying aggs in place of q's own.
func (q Query) WithAggs(aggs map[string]Aggregation) *Query {
	return &Query{
		Bool: q.Bool.Clone(),
		Size: 0,
		Sort: nil,
		Aggs: aggs,
	}
}

type queryJSON struct {
	Query struct {
		Bool map[string][]Clause `json:"bool"`
	} `json:"query"`
	Size int                    `json:"size"`
	From int                    `json:"from,omitempty"`
	Sort []Clause               `json:"sort,omitempty"`
	Aggs map[string]Aggregation `json:"aggs,omitempty"`
}

// MarshalJSON renders {query:{bool:{must,filter,must_not}}, size, from, sort, aggs}.
func (q Query) MarshalJSON() ([]byte, error) {
	var out queryJSON
	out.Query.Bool = q.Bool.clauses()
	out.Size = q.Size
	out.From = q.From
	out.Sort = q.Sort
	out.Aggs = q.Aggs
	return json.Marshal(out)
}

// Envelope is the request body posted to the search backend.
type Envelope struct {
	Index     string `json:"index"`
	QueryType string `json:"queryType"`
	Body      *Query `json:"body"`
}

// NewEnvelope wraps q for index.
func NewEnvelope(index string, q *Query) Envelope {
	if q == nil {
		q = &Query{}
	}
	return Envelope{Index: index, QueryType: QueryTypeSearch, Body: q}
}

// Encode serializes the envelope.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
