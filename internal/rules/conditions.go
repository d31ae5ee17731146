// Package rules implements condition evaluation for routing rules.
//
// A rule's condition set is a flat conjunction of predicates - there is no
// expression tree, negation or nested grouping. Evaluation is fail-closed:
// an unknown operator or predicate kind never matches, it never raises.
package rules

import (
	"encoding/json"
	"strings"

	"signal-router/internal/common/errors"
	"signal-router/internal/fields"
)

// Condition set operator. Only conjunction is supported; any other value
// makes the whole set evaluate to false.
const OpAnd = "and"

// Predicate kinds. Anything else is an unknown kind and evaluates false.
const (
	KindAlways        = "always"
	KindContainsField = "contains_field"
	KindContainsText  = "contains_text"
)

// Predicate is one term of a condition set. The Kind tag selects which
// parameter is meaningful: Field for contains_field, Text for contains_text,
// neither for always. Unrecognized kinds fail closed in Evaluate.
type Predicate struct {
	Kind  string `json:"type"`
	Field string `json:"field,omitempty"`
	Text  string `json:"text,omitempty"`
}

// ConditionSet is a conjunction of predicates evaluated against a signal's
// extracted fields.
type ConditionSet struct {
	Op    string      `json:"op"`
	Items []Predicate `json:"items"`
}

// ParseConditionSet decodes a stored conditions document. A decode failure
// is a validation error; callers treat an unparseable condition set as a
// rule that never matches. A document without an "op" key defaults to
// conjunction, so hand-seeded rows behave like encoded ones.
func ParseConditionSet(doc string) (ConditionSet, error) {
	var cs ConditionSet
	if err := json.Unmarshal([]byte(doc), &cs); err != nil {
		return ConditionSet{}, errors.ValidationError("conditions document is not valid JSON")
	}
	if cs.Op == "" {
		cs.Op = OpAnd
	}
	return cs, nil
}

// Evaluate reports whether the condition set is satisfied by the extracted
// fields. It is a pure function: no side effects, no shared state.
//
// Only the "and" operator is supported; any other operator evaluates to
// false. An empty conjunction is vacuously true. Evaluation short-circuits
// on the first failing predicate, and an unknown predicate kind fails the
// whole set.
func Evaluate(cs ConditionSet, extracted map[string]interface{}) bool {
	if cs.Op != OpAnd {
		return false
	}

	messageText := strings.ToLower(fields.MessageText(extracted))

	for _, item := range cs.Items {
		switch item.Kind {
		case KindAlways:
			continue
		case KindContainsField:
			if item.Field == "" {
				return false
			}
			if _, ok := extracted[item.Field]; !ok {
				return false
			}
		case KindContainsText:
			target := strings.TrimSpace(item.Text)
			if target == "" {
				return false
			}
			if !strings.Contains(messageText, strings.ToLower(target)) {
				return false
			}
		default:
			return false
		}
	}

	return true
}
