package importer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pbaille/workhours/internal/normalize"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidValue = errors.New("invalid value")
)

// FieldError is a validation failure on a single row field
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RowError records why a row was rejected. Row is the 1-based position of
// the row in the input.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// Outcome summarizes one import call
type Outcome struct {
	SuccessCount       int        `json:"success_count"`
	DuplicateCount     int        `json:"duplicate_count"`
	ErrorCount         int        `json:"error_count"`
	UnresolvedCount    int        `json:"unresolved_count"`
	MissingClientNames []string   `json:"missing_client_names"`
	RowErrors          []RowError `json:"row_errors,omitempty"`
	Incomplete         bool       `json:"incomplete,omitempty"`

	missing map[string]string
}

func newOutcome() *Outcome {
	return &Outcome{
		MissingClientNames: []string{},
		missing:            make(map[string]string),
	}
}

func (o *Outcome) rowError(row int, err error) {
	o.ErrorCount++
	o.RowErrors = append(o.RowErrors, RowError{Row: row, Err: err.Error()})
}

// missingClient remembers an unresolved client under its first spelling
func (o *Outcome) missingClient(name string) {
	o.UnresolvedCount++
	key := normalize.Normalize(name)
	if key == "" {
		return
	}
	if _, seen := o.missing[key]; !seen {
		o.missing[key] = normalize.Collapse(name)
	}
}

// finish freezes the missing client set into a sorted slice
func (o *Outcome) finish() *Outcome {
	names := make([]string, 0, len(o.missing))
	for _, n := range o.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	o.MissingClientNames = names
	return o
}
