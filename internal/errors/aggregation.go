package errors

import (
	"fmt"
	"strings"
)

// FacetFailure records one value-phase sub-query that was dropped.
type FacetFailure struct {
	Family string
	Name   string
	Err    error
}

func (f FacetFailure) Error() string {
	return fmt.Sprintf("facet %s/%s: %v", f.Family, f.Name, f.Err)
}

func (f FacetFailure) Unwrap() error {
	return f.Err
}

// AggregationPartialFailure reports that one or more facet value lookups
// failed while the aggregation as a whole still produced a result.
type AggregationPartialFailure struct {
	Failures []FacetFailure
}

func (e *AggregationPartialFailure) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Family+"/"+f.Name)
	}
	return fmt.Sprintf("aggregation partially failed: %d facet(s) omitted [%s]",
		len(e.Failures), strings.Join(names, ", "))
}

// Unwrap exposes the individual sub-query errors to errors.Is / errors.As.
func (e *AggregationPartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
