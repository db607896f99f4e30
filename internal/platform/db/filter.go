package db

import (
	"fmt"
	"strings"
)

// Filter accumulates WHERE predicates with positional arguments. Predicates
// carry a single %d verb that is replaced by the argument's placeholder
// index, e.g. f.Add("patient_id = $%d", id).
type Filter struct {
	clauses []string
	args    []any
}

// Add appends a predicate bound to one argument.
func (f *Filter) Add(predicate string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(predicate, len(f.args)))
}

// AddRaw appends a predicate without arguments.
func (f *Filter) AddRaw(predicate string) {
	f.clauses = append(f.clauses, predicate)
}

// Where renders " WHERE a AND b", or "" when there are no predicates.
func (f *Filter) Where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// Args returns the bound arguments.
func (f *Filter) Args() []any {
	return f.args
}

// Page renders a LIMIT/OFFSET suffix and returns the arguments extended
// with limit and offset.
func (f *Filter) Page(limit, offset int) (string, []any) {
	n := len(f.args)
	args := append(append([]any{}, f.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}
