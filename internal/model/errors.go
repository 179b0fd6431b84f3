package model

import "fmt"

// SchemaError indicates the trip dataset lacks the minimum viable schema:
// either a duration column or both start and end timestamp columns.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "schema error: " + e.Reason
}

// QueryError indicates the tabular engine rejected or failed a query.
type QueryError struct {
	Query  string
	Reason string
}

func (e *QueryError) Error() string {
	return "query error: " + e.Reason
}

// FetchError indicates the pricing page could not be retrieved.
type FetchError struct {
	URL    string
	Status int
	Reason string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch error: %s (status %d)", e.Reason, e.Status)
	}
	return "fetch error: " + e.Reason
}

// CalculationError indicates the restricted arithmetic evaluator rejected
// an expression. Arithmetic is load-bearing for totals, so this is fatal.
type CalculationError struct {
	Expression string
	Reason     string
}

func (e *CalculationError) Error() string {
	return "calculation error: " + e.Reason
}
