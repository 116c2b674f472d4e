package store

import (
	"fmt"
	"time"
)

// Operator is a comparison operator in a query condition.
type Operator string

const (
	// OpIs matches when the field equals the operand.
	OpIs Operator = "is"
	// OpIsNot matches when the field does not equal the operand.
	OpIsNot Operator = "is_not"
	// OpGreaterThan matches numeric or temporal fields strictly above the
	// operand. Non-comparable values never match.
	OpGreaterThan Operator = "greater_than"
	// OpLessThan matches numeric or temporal fields strictly below the
	// operand.
	OpLessThan Operator = "less_than"
	// OpIn matches when the field equals any element of the operand slice.
	OpIn Operator = "in"
)

// Condition is one (field, operator, operand) predicate evaluated against a
// state snapshot. A query matches an entity only when every condition holds
// on the same snapshot.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Where is a convenience constructor for a Condition.
func Where(field string, op Operator, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// Matches evaluates the condition against a snapshot.
func (c Condition) Matches(state map[string]any) bool {
	got := state[c.Field]

	switch c.Op {
	case OpIs:
		return valuesEqual(got, c.Value)
	case OpIsNot:
		return !valuesEqual(got, c.Value)
	case OpGreaterThan:
		cmp, ok := compareOrdered(got, c.Value)
		return ok && cmp > 0
	case OpLessThan:
		cmp, ok := compareOrdered(got, c.Value)
		return ok && cmp < 0
	case OpIn:
		elems, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, e := range elems {
			if valuesEqual(got, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// UpdateOp is the operator of a state update.
type UpdateOp string

const (
	// UpdateSet replaces the field value.
	UpdateSet UpdateOp = "is"
	// UpdateAdd increments a numeric field.
	UpdateAdd UpdateOp = "add"
	// UpdateSubtract decrements a numeric field.
	UpdateSubtract UpdateOp = "subtract"
)

// Update is one (field, operator, operand) mutation applied to a snapshot.
type Update struct {
	Field string
	Op    UpdateOp
	Value any
}

// Set constructs a replacing update.
func Set(field string, value any) Update {
	return Update{Field: field, Op: UpdateSet, Value: value}
}

// Add constructs an incrementing update.
func Add(field string, value any) Update {
	return Update{Field: field, Op: UpdateAdd, Value: value}
}

// Subtract constructs a decrementing update.
func Subtract(field string, value any) Update {
	return Update{Field: field, Op: UpdateSubtract, Value: value}
}

// apply mutates the snapshot in place. The snapshot must already be a
// private copy; callers never hand out the maps stored in versions.
func (u Update) apply(typ, id string, state map[string]any) error {
	switch u.Op {
	case UpdateSet:
		state[u.Field] = u.Value
		return nil

	case UpdateAdd, UpdateSubtract:
		current, ok := toFloat(state[u.Field])
		if !ok && state[u.Field] != nil {
			return &Error{
				Code:       CodeTypeMismatch,
				EntityType: typ,
				EntityID:   id,
				Field:      u.Field,
				Message:    fmt.Sprintf("cannot apply %s to non-numeric value %v", u.Op, state[u.Field]),
			}
		}
		delta, ok := toFloat(u.Value)
		if !ok {
			return &Error{
				Code:       CodeTypeMismatch,
				EntityType: typ,
				EntityID:   id,
				Field:      u.Field,
				Message:    fmt.Sprintf("non-numeric operand %v for %s", u.Value, u.Op),
			}
		}
		if u.Op == UpdateSubtract {
			delta = -delta
		}
		state[u.Field] = mergeNumeric(state[u.Field], u.Value, current+delta)
		return nil

	default:
		return &Error{
			Code:       CodeTypeMismatch,
			EntityType: typ,
			EntityID:   id,
			Field:      u.Field,
			Message:    fmt.Sprintf("unknown update operator %q", u.Op),
		}
	}
}

// mergeNumeric keeps integer fields integral: when both the stored value
// and the operand are integers the result stays an int64, otherwise it
// widens to float64.
func mergeNumeric(stored, operand any, result float64) any {
	if isInteger(stored) || stored == nil {
		if isInteger(operand) {
			return int64(result)
		}
	}
	return result
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// toFloat normalizes any numeric scalar to float64.
// nil normalizes to 0 so arithmetic on unset fields starts from zero,
// matching the defaulting behavior of entity state fields.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// valuesEqual compares two scalar values. Numerics compare by value across
// integer and float representations; times compare with time.Equal.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// compareOrdered orders two values when both are numeric or both temporal.
// Returns ok=false for anything else, including nil.
func compareOrdered(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	return 0, false
}
