package adjudication

import (
	"strings"

	"clearvet/internal/matrix/models"
)

// EvaluateCondition evaluates a condition tree against a fact map. A nil
// condition matches.
//
// Type mismatches fail closed: comparing a string fact with greater_than, or
// referencing a fact that is absent, makes the leaf evaluate to false rather
// than raising. A non-matching rule is always safe; this is deliberate,
// documented behavior, not an error path.
func EvaluateCondition(c *models.Condition, facts Facts) bool {
	if c == nil {
		return true
	}
	if c.IsLeaf() {
		return evaluateLeaf(c, facts)
	}
	switch c.Combinator {
	case models.CombAllOf:
		for _, child := range c.Children {
			if !EvaluateCondition(child, facts) {
				return false
			}
		}
		return true
	case models.CombAnyOf:
		for _, child := range c.Children {
			if EvaluateCondition(child, facts) {
				return true
			}
		}
		return false
	case models.CombNoneOf:
		for _, child := range c.Children {
			if EvaluateCondition(child, facts) {
				return false
			}
		}
		return true
	}
	// Unknown combinator: fail closed.
	return false
}

func evaluateLeaf(c *models.Condition, facts Facts) bool {
	fact, ok := facts[c.Field]
	if !ok {
		return false
	}
	switch c.Operator {
	case models.OpEquals:
		return valuesEqual(fact, c.Value)
	case models.OpNotEquals:
		return !valuesEqual(fact, c.Value)
	case models.OpGreaterThan:
		fv, fok := asNumber(fact)
		cv, cok := asNumber(c.Value)
		return fok && cok && fv > cv
	case models.OpLessThan:
		fv, fok := asNumber(fact)
		cv, cok := asNumber(c.Value)
		return fok && cok && fv < cv
	case models.OpIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(fact, item) {
				return true
			}
		}
		return false
	case models.OpContains:
		return evaluateContains(fact, c.Value)
	}
	return false
}

// valuesEqual compares a fact against a condition value, treating all numeric
// representations as equal when their values are. Mixed non-numeric types are
// unequal, never an error.
func valuesEqual(fact, value any) bool {
	if fn, ok := asNumber(fact); ok {
		vn, vok := asNumber(value)
		return vok && fn == vn
	}
	switch f := fact.(type) {
	case string:
		v, ok := value.(string)
		return ok && f == v
	case bool:
		v, ok := value.(bool)
		return ok && f == v
	}
	return false
}

// evaluateContains handles both shapes: string fact containing a substring,
// and list fact containing an element.
func evaluateContains(fact, value any) bool {
	switch f := fact.(type) {
	case string:
		v, ok := value.(string)
		return ok && strings.Contains(f, v)
	case []any:
		for _, item := range f {
			if valuesEqual(item, value) {
				return true
			}
		}
		return false
	case []string:
		v, ok := value.(string)
		if !ok {
			return false
		}
		for _, item := range f {
			if item == v {
				return true
			}
		}
		return false
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
