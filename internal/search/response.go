package search

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
)

// Hit is one matched document.
type Hit struct {
	ID     string          `json:"id"`
	Index  string          `json:"index"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

// Bucket is one terms-aggregation bucket. Sub holds nested bucket lists keyed
// by sub-aggregation name.
type Bucket struct {
	Key      string              `json:"key"`
	DocCount int64               `json:"doc_count"`
	Sub      map[string][]Bucket `json:"sub,omitempty"`
}

// Response is a parsed search backend response.
type Response struct {
	Total int64
	Hits  []Hit

	aggs gjson.Result
}

// ResponseShape is the declared top-level form of a search host's responses.
type ResponseShape int

const (
	// BareResponse carries hits and aggregations at the root.
	BareResponse ResponseShape = iota
	// DataResponse nests them under "data".
	DataResponse
)

// ParseResponseShape maps a configured envelope name onto a ResponseShape.
// The empty name is BareResponse.
func ParseResponseShape(name string) (ResponseShape, error) {
	switch name {
	case "", "bare":
		return BareResponse, nil
	case "data":
		return DataResponse, nil
	default:
		return 0, fmt.Errorf("unknown search response envelope %q", name)
	}
}

func (s ResponseShape) String() string {
	if s == DataResponse {
		return "data envelope"
	}
	return "bare"
}

// ParseResponse reads hits and aggregations from a response declared to have
// the given shape. A body that does not match is a decode error.
func ParseResponse(body []byte, shape ResponseShape) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.Decode("search response is not valid JSON", nil)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, apierrors.Decode("search response is not an object", nil)
	}
	if shape == DataResponse {
		root = root.Get("data")
		if !root.IsObject() {
			return nil, apierrors.Decode("search response has no data envelope", nil)
		}
	}
	if !root.Get("hits").Exists() && !root.Get("aggregations").Exists() {
		return nil, apierrors.Decode(fmt.Sprintf("%s search response has neither hits nor aggregations", shape), nil)
	}

	resp := &Response{aggs: root.Get("aggregations")}

	total := root.Get("hits.total")
	if total.IsObject() {
		total = total.Get("value")
	}
	resp.Total = total.Int()

	for _, h := range root.Get("hits.hits").Array() {
		source := h.Get("_source")
		hit := Hit{
			ID:    h.Get("_id").String(),
			Index: h.Get("_index").String(),
			Score: h.Get("_score").Float(),
		}
		if source.Exists() {
			hit.Source = json.RawMessage(source.Raw)
		}
		resp.Hits = append(resp.Hits, hit)
	}
	return resp, nil
}

// HasAggregations reports whether the response carries an aggregations object.
func (r *Response) HasAggregations() bool {
	return r.aggs.IsObject()
}

// AggregationNames lists the top-level aggregation names in response order.
func (r *Response) AggregationNames() []string {
	var names []string
	r.aggs.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names
}

// Buckets returns the buckets of the named aggregation in backend order.
// ok is false when the aggregation is absent or has no bucket list.
func (r *Response) Buckets(name string) ([]Bucket, bool) {
	agg := r.aggs.Get(gjson.Escape(name))
	if !agg.Exists() {
		return nil, false
	}
	return parseBuckets(agg)
}

// Sources unmarshals every hit's _source into a slice of T.
func Sources[T any](r *Response) ([]T, error) {
	out := make([]T, 0, len(r.Hits))
	for i, h := range r.Hits {
		var v T
		if len(h.Source) == 0 {
			out = append(out, v)
			continue
		}
		if err := json.Unmarshal(h.Source, &v); err != nil {
			return nil, apierrors.Decode(fmt.Sprintf("decode hit %d", i), err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBuckets(agg gjson.Result) ([]Bucket, bool) {
	raw := agg.Get("buckets")
	if !raw.IsArray() {
		return nil, false
	}

	list := raw.Array()
	buckets := make([]Bucket, 0, len(list))
	for _, b := range list {
		bucket := Bucket{
			Key:      b.Get("key").String(),
			DocCount: b.Get("doc_count").Int(),
		}
		b.ForEach(func(key, value gjson.Result) bool {
			if !value.IsObject() {
				return true
			}
			if sub, ok := parseBuckets(value); ok {
				if bucket.Sub == nil {
					bucket.Sub = make(map[string][]Bucket)
				}
				bucket.Sub[key.String()] = sub
			}
			return true
		})
		buckets = append(buckets, bucket)
	}
	return buckets, true
}
