package harness

import (
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

// QueryResult is the outcome of one query on one backend.
type QueryResult struct {
	Name    string         `json:"name"`
	Native  string         `json:"native"`
	Pushed  bool           `json:"pushed"`
	Exact   bool           `json:"exact"`
	Columns []string       `json:"columns"`
	Rows    [][]ir.IRValue `json:"rows"`
}

// BackendResult is the outcome of a scenario on one backend.
type BackendResult struct {
	Backend     string         `json:"backend"`
	Fingerprint string         `json:"fingerprint"`
	Schema      *schema.Schema `json:"-"`
	Queries     []QueryResult  `json:"queries"`
}

// Query looks up a query result by name.
func (b *BackendResult) Query(name string) (QueryResult, bool) {
	for _, q := range b.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QueryResult{}, false
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every expectation and assertion held on every backend.
	Pass bool `json:"pass"`

	// Backends holds one result per backend, in run order.
	Backends []*BackendResult `json:"backends"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Backend looks up the result of one backend.
func (r *Result) Backend(name string) (*BackendResult, bool) {
	for _, b := range r.Backends {
		if b.Backend == name {
			return b, true
		}
	}
	return nil, false
}
