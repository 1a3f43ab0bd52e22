// Package planner compiles GraphQL filter and update inputs into predicate trees
// and column assignments for the executor.
package planner

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Reserved combinator keys of a filter node.
const (
	KeyRaw = "_raw"
	KeyOr  = "_or"
	KeyAnd = "_and"
	KeyNot = "_not"
)

// FilterValue is one node of a submitted filter tree.
type FilterValue struct {
	Raw    *string
	Or     []FilterValue
	And    []FilterValue
	Not    *FilterValue
	Fields map[string]FieldFilter

	source map[string]any
}

// FieldFilter holds the operators submitted for one column. Only operators
// listed in present were supplied by the caller.
type FieldFilter struct {
	Eq        any    `mapstructure:"eq"`
	Ne        any    `mapstructure:"ne"`
	In        []any  `mapstructure:"in"`
	NotIn     []any  `mapstructure:"notIn"`
	Lt        any    `mapstructure:"lt"`
	Lte       any    `mapstructure:"lte"`
	Gt        any    `mapstructure:"gt"`
	Gte       any    `mapstructure:"gte"`
	Like      string `mapstructure:"like"`
	Between   []any  `mapstructure:"between"`
	IsNull    bool   `mapstructure:"isNull"`
	IsNotNull bool   `mapstructure:"isNotNull"`

	present map[string]bool
}

// Has reports whether the named operator was populated.
func (f FieldFilter) Has(operator string) bool {
	return f.present[operator]
}

// NewFieldFilter decodes an operator map such as {"eq": 5} into a FieldFilter.
func NewFieldFilter(input map[string]any) (FieldFilter, error) {
	var filter FieldFilter
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   &filter,
	})
	if err != nil {
		return FieldFilter{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return FieldFilter{}, validationErrorf("invalid field filter: %v", err)
	}

	filter.present = make(map[string]bool, len(md.Keys))
	for _, key := range md.Keys {
		if input[key] != nil {
			filter.present[key] = true
		}
	}
	return filter, nil
}

// ParseFilterValue converts a decoded GraphQL input object into a FilterValue.
func ParseFilterValue(input map[string]any) (FilterValue, error) {
	value := FilterValue{source: input}

	for key, raw := range input {
		if raw == nil {
			continue
		}
		switch key {
		case KeyRaw:
			s, ok := raw.(string)
			if !ok {
				return FilterValue{}, validationErrorf("%s must be a string", KeyRaw)
			}
			value.Raw = &s
		case KeyOr, KeyAnd:
			children, err := parseFilterList(key, raw)
			if err != nil {
				return FilterValue{}, err
			}
			if key == KeyOr {
				value.Or = children
			} else {
				value.And = children
			}
		case KeyNot:
			obj, ok := raw.(map[string]any)
			if !ok {
				return FilterValue{}, validationErrorf("%s must be an object", KeyNot)
			}
			child, err := ParseFilterValue(obj)
			if err != nil {
				return FilterValue{}, err
			}
			value.Not = &child
		default:
			obj, ok := raw.(map[string]any)
			if !ok {
				return FilterValue{}, validationErrorf("filter for column %s must be an object", key)
			}
			field, err := NewFieldFilter(obj)
			if err != nil {
				return FilterValue{}, err
			}
			if value.Fields == nil {
				value.Fields = make(map[string]FieldFilter)
			}
			value.Fields[key] = field
		}
	}
	return value, nil
}

func parseFilterList(key string, raw any) ([]FilterValue, error) {
	var items []map[string]any
	switch list := raw.(type) {
	case []any:
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, validationErrorf("%s entries must be objects", key)
			}
			items = append(items, obj)
		}
	case []map[string]any:
		items = list
	default:
		return nil, validationErrorf("%s must be a list", key)
	}

	children := make([]FilterValue, 0, len(items))
	for _, item := range items {
		child, err := ParseFilterValue(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// columnNames returns the field filter columns in sorted order.
func (v FilterValue) columnNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// describe renders the submitted value for error messages.
func (v FilterValue) describe() string {
	if v.source != nil {
		if b, err := json.Marshal(v.source); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%+v", v.Fields)
}
