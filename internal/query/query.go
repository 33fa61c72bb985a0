// Package query filters collection snapshots with expr-lang predicates such
// as `published && "go" in tags`. Each item is evaluated with its JSON
// fields as variables.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ErrNotCollection is returned when the filtered document is not a JSON
// array.
var ErrNotCollection = errors.New("query: document is not a collection")

// Predicate is a compiled boolean expression over one item.
type Predicate struct {
	source  string
	program *exprvm.Program
}

// Compile parses expression. Unknown identifiers evaluate to nil so a
// predicate can reference fields that only some items carry.
func Compile(expression string) (*Predicate, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("query: expression must not be empty")
	}
	program, err := exprlang.Compile(expression, exprlang.AsBool(), exprlang.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("query: compile %q: %w", expression, err)
	}
	return &Predicate{source: expression, program: program}, nil
}

// String returns the source expression.
func (p *Predicate) String() string { return p.source }

// Match evaluates the predicate against item.
func (p *Predicate) Match(item map[string]any) (bool, error) {
	out, err := exprlang.Run(p.program, item)
	if err != nil {
		return false, fmt.Errorf("query: evaluate %q: %w", p.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Filter returns the items of raw, a JSON array of objects, that satisfy the
// predicate. Order is preserved.
func (p *Predicate) Filter(raw []byte) ([]byte, error) {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCollection, err)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		ok, err := p.Match(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return json.Marshal(out)
}

// Filter compiles expression and applies it to raw.
func Filter(raw []byte, expression string) ([]byte, error) {
	p, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return p.Filter(raw)
}
