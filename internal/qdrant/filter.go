package qdrant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// FilterSpec is a payload filter built from plain conditions.
type FilterSpec struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// Condition matches a payload field by value or by numeric range.
// Exactly one of Match and Range is set.
type Condition struct {
	Field string
	// Match is a string, bool, integer or []string (any of).
	Match any
	Range *RangeCondition
}

// RangeCondition bounds a numeric field.
type RangeCondition struct {
	Gte *float64
	Lte *float64
	Gt  *float64
	Lt  *float64
}

// Match returns an equality condition.
func Match(field string, value any) Condition {
	return Condition{Field: field, Match: value}
}

// IsEmpty reports whether the spec has no conditions.
func (f *FilterSpec) IsEmpty() bool {
	return f == nil || len(f.Must)+len(f.Should)+len(f.MustNot) == 0
}

// ToProto converts the spec to a backend filter. An empty spec yields nil.
func (f *FilterSpec) ToProto() (*Filter, error) {
	if f.IsEmpty() {
		return nil, nil
	}

	var err error
	out := &qdrant.Filter{}
	if out.Must, err = toConditions(f.Must); err != nil {
		return nil, err
	}
	if out.Should, err = toConditions(f.Should); err != nil {
		return nil, err
	}
	if out.MustNot, err = toConditions(f.MustNot); err != nil {
		return nil, err
	}
	return out, nil
}

func toConditions(conds []Condition) ([]*qdrant.Condition, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	out := make([]*qdrant.Condition, 0, len(conds))
	for _, c := range conds {
		pc, err := c.toProto()
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, nil
}

func (c Condition) toProto() (*qdrant.Condition, error) {
	if c.Field == "" {
		return nil, fmt.Errorf("condition field is required")
	}
	if c.Range != nil {
		return qdrant.NewRange(c.Field, &qdrant.Range{
			Gte: c.Range.Gte,
			Lte: c.Range.Lte,
			Gt:  c.Range.Gt,
			Lt:  c.Range.Lt,
		}), nil
	}

	switch v := c.Match.(type) {
	case string:
		return qdrant.NewMatchKeyword(c.Field, v), nil
	case []string:
		return qdrant.NewMatchKeywords(c.Field, v...), nil
	case bool:
		return qdrant.NewMatchBool(c.Field, v), nil
	case int:
		return qdrant.NewMatchInt(c.Field, int64(v)), nil
	case int32:
		return qdrant.NewMatchInt(c.Field, int64(v)), nil
	case int64:
		return qdrant.NewMatchInt(c.Field, v), nil
	case uint32:
		return qdrant.NewMatchInt(c.Field, int64(v)), nil
	case nil:
		return qdrant.NewIsNull(c.Field), nil
	default:
		return nil, fmt.Errorf("field %q: unsupported match value %T", c.Field, c.Match)
	}
}

// ParseCondition parses "field=value" into an equality condition. Integer
// and boolean literals match as such; anything else matches as a keyword.
func ParseCondition(expr string) (Condition, error) {
	field, raw, ok := strings.Cut(expr, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return Condition{}, fmt.Errorf("condition %q: expected field=value", expr)
	}
	raw = strings.TrimSpace(raw)

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Match(field, n), nil
	}
	if raw == "true" || raw == "false" {
		return Match(field, raw == "true"), nil
	}
	return Match(field, raw), nil
}
