package facets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/metrics"
	"github.com/R3E-Network/storefront_layer/internal/search"
)

// fakeBackend answers discovery and value queries from canned JSON keyed by
// the aggregated field.
type fakeBackend struct {
	mu        sync.Mutex
	discovery string
	discErr   error
	values    map[string]string
	fail      map[string]error
	queries   []*search.Query

	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (f *fakeBackend) Execute(ctx context.Context, q *search.Query) (*search.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if _, ok := q.Aggs[valuesAgg]; !ok {
		if f.discErr != nil {
			return nil, f.discErr
		}
		return search.ParseResponse([]byte(f.discovery), search.BareResponse)
	}

	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	field := aggField(q.Aggs[valuesAgg])
	if err, ok := f.fail[field]; ok {
		return nil, err
	}
	body, ok := f.values[field]
	if !ok {
		body = `{"aggregations":{"values":{"buckets":[]}}}`
	}
	return search.ParseResponse([]byte(body), search.BareResponse)
}

func aggField(agg search.Aggregation) string {
	terms, _ := agg["terms"].(map[string]interface{})
	field, _ := terms["field"].(string)
	return field
}

func buckets(pairs ...interface{}) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, fmt.Sprintf(`{"key":%q,"doc_count":%d}`, pairs[i], pairs[i+1]))
	}
	return `{"buckets":[` + strings.Join(parts, ",") + `]}`
}

func valuesBody(pairs ...interface{}) string {
	return `{"aggregations":{"values":` + buckets(pairs...) + `}}`
}

var variantOnly = Config{
	Families: []Family{{Key: "variantAttributes", NameField: "variantAttributeNames.keyword", ValueField: "variantAttributes.%s.keyword"}},
	Static:   []StaticFacet{},
	Logger:   logging.Discard(),
}

func TestAggregate_DropsFailedFacet(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("color", 8, "size", 6) + `}}`,
		values: map[string]string{
			"variantAttributes.color.keyword": valuesBody("red", 5),
		},
		fail: map[string]error{
			"variantAttributes.size.keyword": apierrors.Network(errors.New("connection reset")),
		},
	}

	failed := metrics.FacetSubqueries.WithLabelValues("variantAttributes", metrics.Outcome(false))
	failedBefore := testutil.ToFloat64(failed)
	result, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err, "a failed value query does not fail the aggregation")

	assert.Equal(t, map[string]map[string][]Value{
		"variantAttributes": {"color": {{Value: "red", Count: 5}}},
	}, result.Map())

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "size", result.Failures[0].Name)
	assert.True(t, apierrors.IsKind(result.Failures[0], apierrors.KindNetwork))

	var partial *apierrors.AggregationPartialFailure
	require.ErrorAs(t, result.PartialFailure(), &partial)
	assert.Len(t, partial.Failures, 1)
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestAggregate_DiscoveryFailureFailsCall(t *testing.T) {
	backend := &fakeBackend{discErr: apierrors.Network(errors.New("dial tcp: connection refused"))}

	result, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apierrors.IsKind(err, apierrors.KindNetwork))
	assert.Len(t, backend.queries, 1, "no value queries without names")
}

func TestAggregate_MalformedDiscoveryFailsCall(t *testing.T) {
	tests := []struct {
		name      string
		discovery string
	}{
		{"no aggregations", `{"hits":{"total":0,"hits":[]}}`},
		{"aggregations not an object", `{"aggregations":[]}`},
		{"family without buckets", `{"aggregations":{"family_variantAttributes":"oops"}}`},
		{"family missing", `{"aggregations":{"family_other":` + buckets("color", 1) + `}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{discovery: tt.discovery}

			result, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apierrors.IsKind(err, apierrors.KindDecode))
			assert.Len(t, backend.queries, 1, "no value queries after a bad discovery")
		})
	}
}

func TestAggregate_MissingStaticFailsCall(t *testing.T) {
	backend := &fakeBackend{discovery: `{"aggregations":{"family_variantAttributes":` + buckets("color", 1) + `}}`}

	cfg := variantOnly
	cfg.Static = []StaticFacet{{Key: "brands", Field: "brand.name.keyword"}}
	_, err := NewEngine(backend, cfg).Aggregate(context.Background(), search.BoolQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "static_brands")
}

func TestAggregate_QueriesCarryBaseFilter(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("color", 3) + `}}`,
		values:    map[string]string{"variantAttributes.color.keyword": valuesBody("red", 3)},
	}
	filter := search.BoolQuery{
		Must:    []search.Clause{search.Term("categories.id", 12)},
		MustNot: []search.Clause{search.Term("status", "archived")},
	}

	_, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, backend.queries, 2)
	for _, q := range backend.queries {
		assert.Equal(t, 0, q.Size)
		assert.Equal(t, filter.Must, q.Bool.Must)
		assert.Equal(t, filter.MustNot, q.Bool.MustNot)
		for _, agg := range q.Aggs {
			terms := agg["terms"].(map[string]interface{})
			assert.Equal(t, DefaultBucketCap, terms["size"])
		}
	}
	assert.Equal(t, "variantAttributeNames.keyword", aggField(backend.queries[0].Aggs["family_variantAttributes"]))
	assert.Equal(t, "variantAttributes.color.keyword", aggField(backend.queries[1].Aggs[valuesAgg]))
}

func TestAggregate_PreservesOrder(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{
			"family_variantAttributes":` + buckets("size", 9, "color", 4) + `,
			"family_specifications":` + buckets("material", 7) + `,
			"static_brands":` + buckets("Acme", 11, "Globex", 2) + `
		}}`,
		values: map[string]string{
			"variantAttributes.size.keyword":  valuesBody("M", 6, "L", 2, "S", 1),
			"variantAttributes.color.keyword": valuesBody("red", 4),
			"specifications.material.keyword": valuesBody("steel", 7),
		},
	}

	result, err := NewEngine(backend, Config{
		Static: []StaticFacet{{Key: "brands", Field: "brand.name.keyword"}},
		Logger: logging.Discard(),
	}).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)
	assert.NoError(t, result.PartialFailure())

	require.Len(t, result.Families, 2)
	assert.Equal(t, "variantAttributes", result.Families[0].Key)
	assert.Equal(t, "specifications", result.Families[1].Key)

	variants := result.Families[0]
	require.Len(t, variants.Facets, 2)
	assert.Equal(t, "size", variants.Facets[0].Name)
	assert.Equal(t, "color", variants.Facets[1].Name)
	assert.Equal(t, []Value{{"M", 6}, {"L", 2}, {"S", 1}}, variants.Facets[0].Values)

	brands, ok := result.StaticFacet("brands")
	require.True(t, ok)
	assert.Equal(t, []Value{{"Acme", 11}, {"Globex", 2}}, brands)

	material, ok := result.Families[1].Facet("material")
	require.True(t, ok)
	assert.Equal(t, []Value{{"steel", 7}}, material)
}

func TestAggregate_NoNamesDiscovered(t *testing.T) {
	backend := &fakeBackend{discovery: `{"aggregations":{"family_variantAttributes":{"buckets":[]}}}`}

	result, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)
	assert.Empty(t, result.Families)
	assert.Len(t, backend.queries, 1)
}

func TestAggregate_MissingValueBuckets(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("color", 1) + `}}`,
		values:    map[string]string{"variantAttributes.color.keyword": `{"hits":{"total":0}}`},
	}

	result, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.True(t, apierrors.IsKind(result.Failures[0], apierrors.KindDecode))
}

func TestAggregate_ConcurrencyCap(t *testing.T) {
	names := make([]interface{}, 0, 24)
	values := map[string]string{}
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("attr%02d", i)
		names = append(names, name, 12-i)
		values["variantAttributes."+name+".keyword"] = valuesBody("v", i+1)
	}
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets(names...) + `}}`,
		values:    values,
		fail:      map[string]error{"variantAttributes.attr05.keyword": errors.New("boom")},
		delay:     10 * time.Millisecond,
	}

	cfg := variantOnly
	cfg.Concurrency = 3
	result, err := NewEngine(backend, cfg).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&backend.maxSeen), int32(3))

	family, ok := result.Family("variantAttributes")
	require.True(t, ok)
	require.Len(t, family.Facets, 11)
	for i, facet := range family.Facets {
		want := i
		if i >= 5 {
			want = i + 1
		}
		assert.Equal(t, fmt.Sprintf("attr%02d", want), facet.Name, "discovery order kept under concurrency")
	}
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "attr05", result.Failures[0].Name)
}

func TestAggregate_SequentialByDefault(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("a", 1, "b", 1, "c", 1) + `}}`,
		delay:     time.Millisecond,
	}

	_, err := NewEngine(backend, variantOnly).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.maxSeen))
}

func TestAggregate_Cancelled(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("a", 1, "b", 1) + `}}`,
		delay:     time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewEngine(backend, variantOnly).Aggregate(ctx, search.BoolQuery{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAggregate_RateLimited(t *testing.T) {
	backend := &fakeBackend{
		discovery: `{"aggregations":{"family_variantAttributes":` + buckets("a", 1, "b", 1, "c", 1) + `}}`,
	}

	cfg := variantOnly
	cfg.RatePerSec = 20
	start := time.Now()
	result, err := NewEngine(backend, cfg).Aggregate(context.Background(), search.BoolQuery{})
	require.NoError(t, err)
	assert.Len(t, result.Families[0].Facets, 3)
	// Burst of one: the second and third lookups each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
