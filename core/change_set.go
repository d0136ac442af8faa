package core

import (
	"fmt"
	"strings"
)

type ChangeOp string

const (
	ChangeOpAdd    ChangeOp = "Add"
	ChangeOpRemove ChangeOp = "Remove"
	ChangeOpSet    ChangeOp = "Set"
)

// ParseChangeOp accepts the op names case-insensitively.
func ParseChangeOp(value string) (ChangeOp, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "add":
		return ChangeOpAdd, nil
	case "remove":
		return ChangeOpRemove, nil
	case "set":
		return ChangeOpSet, nil
	default:
		return "", fmt.Errorf("core: unknown change op %q", value)
	}
}

// ChangeValue is either a single entitlement id or a list of ids.
type ChangeValue interface {
	Values() []string
	isChangeValue()
}

type SingleValue string

func (v SingleValue) Values() []string { return []string{string(v)} }

func (SingleValue) isChangeValue() {}

type ListValue []string

func (v ListValue) Values() []string { return append([]string{}, v...) }

func (ListValue) isChangeValue() {}

// ChangeValueFrom normalizes a loosely typed payload value at the request
// boundary. Nil yields an empty list.
func ChangeValueFrom(raw any) (ChangeValue, error) {
	switch typed := raw.(type) {
	case nil:
		return ListValue{}, nil
	case ChangeValue:
		return typed, nil
	case string:
		return SingleValue(typed), nil
	case []string:
		return ListValue(append([]string{}, typed...)), nil
	case []any:
		values := make([]string, 0, len(typed))
		for index, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("core: change value item %d must be a string, got %T", index, item)
			}
			values = append(values, text)
		}
		return ListValue(values), nil
	default:
		return nil, fmt.Errorf("core: unsupported change value type %T", raw)
	}
}

type ChangeOperation struct {
	Op    ChangeOp
	Value ChangeValue
}

func (c ChangeOperation) values() []string {
	if c.Value == nil {
		return []string{}
	}
	return c.Value.Values()
}

type ChangeSet struct {
	Add    []string
	Remove []string
}

func (c ChangeSet) Empty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}

// ReduceChanges splits a change batch into grant and revoke lists, keeping
// multiplicity and order. A Set operation anywhere aborts the reduction.
func ReduceChanges(changes []ChangeOperation) (ChangeSet, error) {
	set := ChangeSet{Add: []string{}, Remove: []string{}}
	for index, change := range changes {
		switch change.Op {
		case ChangeOpAdd:
			set.Add = append(set.Add, change.values()...)
		case ChangeOpRemove:
			set.Remove = append(set.Remove, change.values()...)
		case ChangeOpSet:
			return ChangeSet{}, unsupportedOperationError(change.Op, index)
		default:
			return ChangeSet{}, badInputError(
				fmt.Sprintf("core: unknown change op %q at index %d", string(change.Op), index),
				map[string]any{"operation": "reduce_changes", "index": index},
			)
		}
	}
	return set, nil
}

// ChangeOperationsFrom decodes a loosely typed change list such as a job
// parameter or decoded JSON body: each item carries "op" and "value".
func ChangeOperationsFrom(raw any) ([]ChangeOperation, error) {
	switch typed := raw.(type) {
	case nil:
		return []ChangeOperation{}, nil
	case []ChangeOperation:
		return append([]ChangeOperation{}, typed...), nil
	case []map[string]any:
		items := make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, item)
		}
		return ChangeOperationsFrom(items)
	case []any:
		out := make([]ChangeOperation, 0, len(typed))
		for index, item := range typed {
			fields, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("core: change %d must be an object, got %T", index, item)
			}
			opText, _ := fields["op"].(string)
			op, err := ParseChangeOp(opText)
			if err != nil {
				return nil, err
			}
			value, err := ChangeValueFrom(fields["value"])
			if err != nil {
				return nil, err
			}
			out = append(out, ChangeOperation{Op: op, Value: value})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("core: unsupported change list type %T", raw)
	}
}
