package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
)

// FieldExtractor defines how to extract field values from entity states
type FieldExtractor interface {
	Extract(st entity.State, field string) (interface{}, error)
}

// StateFieldExtractor reads entity metadata and field slots addressed by
// their path. Metadata fields are index, serial, class, class_id and
// visible; any other name must be a path such as "5/2".
type StateFieldExtractor struct{}

// Extract implements FieldExtractor for entity states
func (e *StateFieldExtractor) Extract(st entity.State, field string) (interface{}, error) {
	switch field {
	case "index":
		return float64(st.Index), nil
	case "serial":
		return float64(st.Serial), nil
	case "class":
		return st.Class, nil
	case "class_id":
		return float64(st.ClassID), nil
	case "visible":
		return st.Visible, nil
	}

	fp, err := ParsePath(field)
	if err != nil {
		return nil, err
	}
	for _, f := range st.Fields {
		if f.Path.Equal(fp) {
			return plain(f.Value), nil
		}
	}
	return nil, fmt.Errorf("field '%s' not found in entity %d", field, st.Index)
}

// plain converts a field value into the types compare understands.
func plain(v fieldvalue.Value) interface{} {
	switch v.Kind() {
	case fieldvalue.KindBool:
		return v.AsBool()
	case fieldvalue.KindInt32, fieldvalue.KindInt64:
		return float64(v.AsInt())
	case fieldvalue.KindUint32, fieldvalue.KindUint64, fieldvalue.KindEnum, fieldvalue.KindHandle:
		return float64(v.AsUint())
	case fieldvalue.KindFloat32:
		return float64(v.AsFloat())
	case fieldvalue.KindString:
		return v.AsString()
	}
	return v.String()
}

// ParsePath parses the slash separated form printed by FieldPath.String.
func ParsePath(s string) (fieldpath.FieldPath, error) {
	parts := strings.Split(s, "/")
	idx := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return fieldpath.FieldPath{}, fmt.Errorf("invalid field path %q", s)
		}
		idx[i] = n
	}
	if len(idx) > fieldpath.MaxDepth {
		return fieldpath.FieldPath{}, fmt.Errorf("field path %q deeper than %d", s, fieldpath.MaxDepth)
	}
	return fieldpath.New(idx...), nil
}

// FieldQuery represents a single field-based query condition
type FieldQuery struct {
	Field    string      // Field to query (e.g., "class", "1", "5/2")
	Operator string      // Comparison operator: "=", "!=", ">", "<", ">=", "<="
	Value    interface{} // Value to compare against
}

var validOps = map[string]bool{
	"=": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
}

// Validate checks if the query is properly formed
func (q *FieldQuery) Validate() error {
	if q.Field == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if q.Operator == "" {
		return fmt.Errorf("operator cannot be empty")
	}
	if !validOps[q.Operator] {
		return fmt.Errorf("invalid operator: %s", q.Operator)
	}
	return nil
}

// ParseFieldQuery parses conditions such as "class=CUnit" or "0>=50".
// Values that parse as numbers or booleans compare as such.
func ParseFieldQuery(expr string) (FieldQuery, error) {
	for _, op := range []string{">=", "<=", "!=", "=", ">", "<"} {
		i := strings.Index(expr, op)
		if i < 0 {
			continue
		}
		q := FieldQuery{
			Field:    strings.TrimSpace(expr[:i]),
			Operator: op,
			Value:    parseValue(strings.TrimSpace(expr[i+len(op):])),
		}
		return q, q.Validate()
	}
	return FieldQuery{}, fmt.Errorf("no operator in query %q", expr)
}

func parseValue(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}

// QueryResult represents a single query result
type QueryResult struct {
	State entity.State
}

// QueryIterator provides streaming access to query results
type QueryIterator interface {
	Next() bool
	Result() QueryResult
	Close() error
}

// QueryEngine handles query execution
type QueryEngine interface {
	ExecuteQuery(ctx context.Context, snap *entity.Snapshot, queries []FieldQuery, extractor FieldExtractor) (QueryIterator, error)
	ExecuteRangeQuery(ctx context.Context, snap *entity.Snapshot, startQuery, endQuery FieldQuery, extractor FieldExtractor) (QueryIterator, error)
}
