package models

import (
	"encoding/json"
	"fmt"

	dErrors "clearvet/pkg/domain-errors"
)

// Operator compares a fact value against a condition value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpContains    Operator = "contains"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpIn, OpContains:
		return true
	}
	return false
}

// Combinator joins child conditions.
type Combinator string

const (
	CombAllOf  Combinator = "all_of"
	CombAnyOf  Combinator = "any_of"
	CombNoneOf Combinator = "none_of"
)

// Condition is one node of a rule's condition tree: either a leaf
// {field, operator, value} or a combinator over child nodes. The zero value
// is invalid; decode through JSON or build leaves/combinators explicitly.
type Condition struct {
	// Leaf fields.
	Field    string
	Operator Operator
	Value    any

	// Combinator fields. A node is a combinator iff Combinator is non-empty.
	Combinator Combinator
	Children   []*Condition
}

// IsLeaf reports whether this node carries a field comparison.
func (c *Condition) IsLeaf() bool {
	return c.Combinator == ""
}

type conditionLeafJSON struct {
	Field    string          `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

type conditionTreeJSON struct {
	conditionLeafJSON
	AllOf  []*Condition `json:"all_of,omitempty"`
	AnyOf  []*Condition `json:"any_of,omitempty"`
	NoneOf []*Condition `json:"none_of,omitempty"`
}

// UnmarshalJSON decodes either leaf form {"field","operator","value"} or
// combinator form {"all_of": [...]} / {"any_of": [...]} / {"none_of": [...]}.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionTreeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.AllOf != nil:
		c.Combinator, c.Children = CombAllOf, raw.AllOf
	case raw.AnyOf != nil:
		c.Combinator, c.Children = CombAnyOf, raw.AnyOf
	case raw.NoneOf != nil:
		c.Combinator, c.Children = CombNoneOf, raw.NoneOf
	default:
		c.Field = raw.Field
		c.Operator = raw.Operator
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &c.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (c *Condition) MarshalJSON() ([]byte, error) {
	if c.IsLeaf() {
		return json.Marshal(map[string]any{
			"field":    c.Field,
			"operator": c.Operator,
			"value":    c.Value,
		})
	}
	return json.Marshal(map[string]any{string(c.Combinator): c.Children})
}

// Validate checks structural well-formedness: leaves need a field and a known
// operator, combinators need at least one child, recursively.
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}
	if c.IsLeaf() {
		if c.Field == "" {
			return dErrors.New(dErrors.CodeValidation, "condition leaf requires a field")
		}
		if !c.Operator.Valid() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown condition operator %q", c.Operator)
		}
		return nil
	}
	switch c.Combinator {
	case CombAllOf, CombAnyOf, CombNoneOf:
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown condition combinator %q", c.Combinator)
	}
	if len(c.Children) == 0 {
		return dErrors.Newf(dErrors.CodeValidation, "%s requires at least one child condition", c.Combinator)
	}
	for i, child := range c.Children {
		if child == nil {
			return dErrors.Newf(dErrors.CodeValidation, "%s child %d is null", c.Combinator, i)
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseCondition decodes and validates a condition tree from JSON.
func ParseCondition(data []byte) (*Condition, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid condition JSON: %v", err))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
