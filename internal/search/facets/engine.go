// Package facets assembles faceted-filter data from a search backend that only
// answers one dynamic level of terms aggregation per request.
//
// Aggregate runs three phases. Discovery asks for the names present in each
// dynamic family (plus the static families' values) in a single size-0 query.
// The value phase issues one query per discovered name, scoped to the same base
// filter. Merge assembles family -> name -> ordered values in discovery order.
// A discovery failure fails the call; a failed value query only drops that name.
package facets

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/metrics"
	"github.com/R3E-Network/storefront_layer/internal/search"
)

// DefaultBucketCap bounds every terms aggregation the engine requests.
const DefaultBucketCap = 10000

const (
	familyAggPrefix = "family_"
	staticAggPrefix = "static_"
	valuesAgg       = "values"
)

// Executor runs one search query.
type Executor interface {
	Execute(ctx context.Context, q *search.Query) (*search.Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, q *search.Query) (*search.Response, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, q *search.Query) (*search.Response, error) {
	return f(ctx, q)
}

// Family is a dynamic facet family: its names are discovered first, then
// each name's values are looked up in ValueField, a pattern with one %s.
type Family struct {
	Key        string
	NameField  string
	ValueField string
}

// StaticFacet is a facet whose field is known up front, so its values come
// straight from the discovery response.
type StaticFacet struct {
	Key   string
	Field string
}

// DefaultFamilies are the variant-attribute and specification families.
func DefaultFamilies() []Family {
	return []Family{
		{Key: "variantAttributes", NameField: "variantAttributeNames.keyword", ValueField: "variantAttributes.%s.keyword"},
		{Key: "specifications", NameField: "specificationKeys.keyword", ValueField: "specifications.%s.keyword"},
	}
}

// DefaultStatic are the brand and category facets.
func DefaultStatic() []StaticFacet {
	return []StaticFacet{
		{Key: "brands", Field: "brand.name.keyword"},
		{Key: "categories", Field: "categories.name.keyword"},
	}
}

// Config configures an Engine.
type Config struct {
	Families  []Family
	Static    []StaticFacet
	BucketCap int
	// Concurrency caps in-flight value queries; 1 or less runs them in order.
	Concurrency int
	// RatePerSec paces value queries; 0 disables pacing.
	RatePerSec float64
	Logger     *logging.Logger
}

// Engine runs facet aggregations against one Executor.
type Engine struct {
	exec    Executor
	cfg     Config
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewEngine creates an engine. Nil families and static facets fall back to
// the defaults; pass empty slices to disable them.
func NewEngine(exec Executor, cfg Config) *Engine {
	if cfg.Families == nil {
		cfg.Families = DefaultFamilies()
	}
	if cfg.Static == nil {
		cfg.Static = DefaultStatic()
	}
	if cfg.BucketCap <= 0 {
		cfg.BucketCap = DefaultBucketCap
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &Engine{exec: exec, cfg: cfg, limiter: limiter, logger: logger}
}

// valueTask is one value-phase sub-query and its result slot.
type valueTask struct {
	family *Family
	name   string
	values []Value
	err    error
}

// Aggregate computes the facets for the catalog scope described by filter.
func (e *Engine) Aggregate(ctx context.Context, filter search.BoolQuery) (*Result, error) {
	base := search.Query{Bool: filter}

	discovery, err := e.exec.Execute(ctx, base.WithAggs(e.discoveryAggs()))
	if err != nil {
		return nil, fmt.Errorf("facet discovery: %w", err)
	}

	if !discovery.HasAggregations() {
		return nil, apierrors.Decode("facet discovery: response has no aggregations", nil)
	}

	result := &Result{}
	for _, s := range e.cfg.Static {
		buckets, ok := discovery.Buckets(staticAggPrefix + s.Key)
		if !ok {
			return nil, missingBuckets(staticAggPrefix + s.Key)
		}
		result.Static = append(result.Static, Facet{Name: s.Key, Values: toValues(buckets)})
	}

	var tasks []*valueTask
	for i := range e.cfg.Families {
		family := &e.cfg.Families[i]
		buckets, ok := discovery.Buckets(familyAggPrefix + family.Key)
		if !ok {
			return nil, missingBuckets(familyAggPrefix + family.Key)
		}
		for _, b := range buckets {
			if b.Key == "" {
				continue
			}
			tasks = append(tasks, &valueTask{family: family, name: b.Key})
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"static":      len(result.Static),
		"facet_names": len(tasks),
		"concurrency": e.cfg.Concurrency,
	}).Debug("facet discovery complete")

	if err := e.runValuePhase(ctx, base, tasks); err != nil {
		return nil, err
	}

	e.merge(ctx, result, tasks)
	return result, nil
}

func (e *Engine) discoveryAggs() map[string]search.Aggregation {
	aggs := make(map[string]search.Aggregation, len(e.cfg.Families)+len(e.cfg.Static))
	for _, f := range e.cfg.Families {
		aggs[familyAggPrefix+f.Key] = search.TermsAgg(f.NameField, e.cfg.BucketCap)
	}
	for _, s := range e.cfg.Static {
		aggs[staticAggPrefix+s.Key] = search.TermsAgg(s.Field, e.cfg.BucketCap)
	}
	return aggs
}

func (e *Engine) runValuePhase(ctx context.Context, base search.Query, tasks []*valueTask) error {
	if e.cfg.Concurrency <= 1 {
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.lookup(ctx, base, task)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			e.lookup(gctx, base, task)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// lookup fills task.values or task.err. It never fails the phase.
func (e *Engine) lookup(ctx context.Context, base search.Query, task *valueTask) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			task.err = err
			return
		}
	}

	field := fmt.Sprintf(task.family.ValueField, task.name)
	resp, err := e.exec.Execute(ctx, base.WithAggs(map[string]search.Aggregation{
		valuesAgg: search.TermsAgg(field, e.cfg.BucketCap),
	}))
	if err != nil {
		task.err = err
		return
	}

	buckets, ok := resp.Buckets(valuesAgg)
	if !ok {
		task.err = apierrors.Decode(fmt.Sprintf("response has no %q buckets for %s", valuesAgg, field), nil)
		return
	}
	task.values = toValues(buckets)
}

func (e *Engine) merge(ctx context.Context, result *Result, tasks []*valueTask) {
	index := make(map[string]int)
	for _, task := range tasks {
		key := task.family.Key
		i, seen := index[key]
		if !seen {
			i = len(result.Families)
			index[key] = i
			result.Families = append(result.Families, FamilyResult{Key: key})
		}

		if task.err != nil {
			metrics.RecordSubquery(key, false)
			result.Failures = append(result.Failures, apierrors.FacetFailure{
				Family: key,
				Name:   task.name,
				Err:    task.err,
			})
			e.logger.WithContext(ctx).WithError(task.err).WithFields(map[string]interface{}{
				"family": key,
				"facet":  task.name,
			}).Warn("facet value lookup failed; omitting facet")
			continue
		}

		metrics.RecordSubquery(key, true)
		result.Families[i].Facets = append(result.Families[i].Facets, Facet{Name: task.name, Values: task.values})
	}
}

// missingBuckets reports a requested discovery aggregation that did not come
// back as a bucket list.
func missingBuckets(name string) error {
	return apierrors.Decode(fmt.Sprintf("facet discovery: aggregation %q has no bucket list", name), nil)
}

func toValues(buckets []search.Bucket) []Value {
	values := make([]Value, 0, len(buckets))
	for _, b := range buckets {
		values = append(values, Value{Value: b.Key, Count: b.DocCount})
	}
	return values
}
