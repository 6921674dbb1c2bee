package query

import (
	"cmp"
	"context"
	"fmt"

	"github.com/ssargent/replaykit/pkg/entity"
)

// SimpleQueryEngine filters the entities of a snapshot by scanning them
type SimpleQueryEngine struct{}

// NewSimpleQueryEngine creates a new query engine
func NewSimpleQueryEngine() *SimpleQueryEngine {
	return &SimpleQueryEngine{}
}

// ExecuteQuery returns the entities matching every query. Entities lacking
// a queried field do not match.
func (qe *SimpleQueryEngine) ExecuteQuery(ctx context.Context, snap *entity.Snapshot, queries []FieldQuery, extractor FieldExtractor) (QueryIterator, error) {
	for i := range queries {
		if err := queries[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid query: %w", err)
		}
	}
	return qe.scan(ctx, snap, queries, extractor)
}

// ExecuteRangeQuery executes a range query between two field conditions
func (qe *SimpleQueryEngine) ExecuteRangeQuery(ctx context.Context, snap *entity.Snapshot, startQuery, endQuery FieldQuery, extractor FieldExtractor) (QueryIterator, error) {
	if err := startQuery.Validate(); err != nil {
		return nil, fmt.Errorf("invalid start query: %w", err)
	}
	if err := endQuery.Validate(); err != nil {
		return nil, fmt.Errorf("invalid end query: %w", err)
	}

	// Ensure both queries are for the same field
	if startQuery.Field != endQuery.Field {
		return nil, fmt.Errorf("range query fields must match: %s != %s", startQuery.Field, endQuery.Field)
	}

	return qe.scan(ctx, snap, []FieldQuery{startQuery, endQuery}, extractor)
}

func (qe *SimpleQueryEngine) scan(ctx context.Context, snap *entity.Snapshot, queries []FieldQuery, extractor FieldExtractor) (QueryIterator, error) {
	if extractor == nil {
		extractor = &StateFieldExtractor{}
	}

	var results []QueryResult
	for i, st := range snap.Entities {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ok, err := matches(st, queries, extractor)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, QueryResult{State: st})
		}
	}
	return &simpleIterator{results: results}, nil
}

func matches(st entity.State, queries []FieldQuery, extractor FieldExtractor) (bool, error) {
	for _, q := range queries {
		got, err := extractor.Extract(st, q.Field)
		if err != nil {
			// Skip entities without the field
			return false, nil
		}
		ok, err := compare(got, q.Operator, q.Value)
		if err != nil {
			return false, fmt.Errorf("field %s: %w", q.Field, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compare applies op to a and b. Numbers compare numerically, strings
// lexically, booleans only for (in)equality.
func compare(a interface{}, op string, b interface{}) (bool, error) {
	var c int
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, fmt.Errorf("cannot compare number with %T", b)
		}
		c = cmp.Compare(av, bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			bv = fmt.Sprint(b)
		}
		c = cmp.Compare(av, bv)
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return false, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch op {
		case "=":
			return av == bv, nil
		case "!=":
			return av != bv, nil
		}
		return false, fmt.Errorf("operator %s not supported for bool", op)
	default:
		return false, fmt.Errorf("unsupported value type %T", a)
	}

	switch op {
	case "=":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	}
	return false, fmt.Errorf("unsupported operator: %s", op)
}

// simpleIterator implements QueryIterator for basic result streaming
type simpleIterator struct {
	results []QueryResult
	index   int
}

func (it *simpleIterator) Next() bool {
	if it.index < len(it.results) {
		it.index++
		return true
	}
	return false
}

func (it *simpleIterator) Result() QueryResult {
	if it.index > 0 && it.index <= len(it.results) {
		return it.results[it.index-1]
	}
	return QueryResult{}
}

func (it *simpleIterator) Close() error {
	return nil
}
