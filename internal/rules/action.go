package rules

import (
	"encoding/json"

	"signal-router/internal/common/errors"
)

// ActionForward is the only action type the router executes: forward the
// signal to every target webhook.
const ActionForward = "forward_webhooks"

// Action is a rule's outcome: an ordered list of encrypted outbound target
// URLs. Targets are stored encrypted at rest and decrypted only at dispatch.
type Action struct {
	Type    string   `json:"type"`
	Targets []string `json:"targets"`
}

// ParseAction decodes a stored action document.
func ParseAction(doc string) (Action, error) {
	var action Action
	if err := json.Unmarshal([]byte(doc), &action); err != nil {
		return Action{}, errors.ValidationError("action document is not valid JSON")
	}
	return action, nil
}

// Encode serializes a condition set or action for storage.
func (cs ConditionSet) Encode() (string, error) {
	raw, err := json.Marshal(cs)
	if err != nil {
		return "", errors.InternalError("failed to encode conditions", err)
	}
	return string(raw), nil
}

// Encode serializes the action for storage.
func (a Action) Encode() (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", errors.InternalError("failed to encode action", err)
	}
	return string(raw), nil
}
