package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"signal-router/internal/common/errors"
	"signal-router/internal/crypto"
	"signal-router/internal/rules"
	"signal-router/internal/storage"
)

// Rule management handlers

// RuleRequest is the create/update body. Targets are plaintext URLs; the
// server encrypts them before they reach the store.
type RuleRequest struct {
	Name       string             `json:"name"`
	Enabled    bool               `json:"enabled"`
	Priority   int                `json:"priority"`
	Conditions rules.ConditionSet `json:"conditions"`
	Targets    []string           `json:"targets"`
}

// RuleResponse never exposes target URLs, only their masked form.
type RuleResponse struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	Enabled       bool               `json:"enabled"`
	Priority      int                `json:"priority"`
	Conditions    rules.ConditionSet `json:"conditions"`
	MaskedTargets []string           `json:"masked_targets"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (h *Handlers) toRuleResponse(rule *storage.Rule) *RuleResponse {
	conditions, err := rules.ParseConditionSet(rule.Conditions)
	if err != nil {
		conditions = rules.ConditionSet{}
	}

	masked := []string{}
	if action, err := rules.ParseAction(rule.Action); err == nil {
		for _, encrypted := range action.Targets {
			target, err := h.codec.Decrypt(encrypted)
			if err != nil {
				masked = append(masked, "***")
				continue
			}
			masked = append(masked, crypto.Mask(target))
		}
	}

	return &RuleResponse{
		ID:            rule.ID,
		Name:          rule.Name,
		Enabled:       rule.Enabled,
		Priority:      rule.Priority,
		Conditions:    conditions,
		MaskedTargets: masked,
		CreatedAt:     rule.CreatedAt,
		UpdatedAt:     rule.UpdatedAt,
	}
}

func (h *Handlers) validateRuleRequest(req *RuleRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errors.ValidationError("rule name is required")
	}
	if len(req.Targets) == 0 {
		return errors.ValidationError("at least one target is required")
	}
	for _, target := range req.Targets {
		if strings.TrimSpace(target) == "" {
			return errors.ValidationError("target URLs must not be blank")
		}
	}
	if req.Conditions.Op != rules.OpAnd {
		return errors.ValidationError(`condition set operator must be "and"`)
	}
	for _, item := range req.Conditions.Items {
		switch item.Kind {
		case rules.KindAlways:
		case rules.KindContainsField:
			if strings.TrimSpace(item.Field) == "" {
				return errors.ValidationError("contains_field predicate requires a field name")
			}
		case rules.KindContainsText:
			if strings.TrimSpace(item.Text) == "" {
				return errors.ValidationError("contains_text predicate requires a text value")
			}
		default:
			return errors.ValidationError("unsupported predicate kind: " + item.Kind)
		}
	}
	return nil
}

// encodeRule builds the stored conditions and action documents, encrypting
// every plaintext target.
func (h *Handlers) encodeRule(req *RuleRequest) (conditions, action string, err error) {
	conditions, err = req.Conditions.Encode()
	if err != nil {
		return "", "", errors.InternalError("failed to encode conditions", err)
	}

	encrypted := make([]string, 0, len(req.Targets))
	for _, target := range req.Targets {
		ciphertext, err := h.codec.Encrypt(strings.TrimSpace(target))
		if err != nil {
			return "", "", errors.InternalError("failed to encrypt target", err)
		}
		encrypted = append(encrypted, ciphertext)
	}

	action, err = rules.Action{Type: rules.ActionForward, Targets: encrypted}.Encode()
	if err != nil {
		return "", "", errors.InternalError("failed to encode action", err)
	}
	return conditions, action, nil
}

// ListRules returns all rules in evaluation order
// @Summary List rules
// @Description Returns all routing rules with masked targets, highest priority first
// @Tags rules
// @Produce json
// @Security BearerAuth
// @Success 200 {array} handlers.RuleResponse "Rules"
// @Router /api/rules [get]
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	all, err := h.storage.GetRules()
	if err != nil {
		writeError(w, errors.InternalError("failed to list rules", err))
		return
	}

	responses := make([]*RuleResponse, len(all))
	for i, rule := range all {
		responses[i] = h.toRuleResponse(rule)
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetRule returns one rule
// @Summary Get rule
// @Description Returns a single routing rule by id with masked targets
// @Tags rules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Success 200 {object} handlers.RuleResponse "Rule"
// @Failure 404 {object} map[string]interface{} "Rule not found"
// @Router /api/rules/{id} [get]
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid rule id"))
		return
	}

	rule, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, errors.NotFoundError("rule"))
		return
	}
	writeJSON(w, http.StatusOK, h.toRuleResponse(rule))
}

// CreateRule creates a routing rule
// @Summary Create rule
// @Description Creates a routing rule; target URLs are encrypted at rest
// @Tags rules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rule body handlers.RuleRequest true "Rule definition"
// @Success 201 {object} handlers.RuleResponse "Created rule"
// @Failure 400 {object} map[string]interface{} "Validation failure"
// @Router /api/rules [post]
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}
	if err := h.validateRuleRequest(&req); err != nil {
		writeError(w, err)
		return
	}

	conditions, action, err := h.encodeRule(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	rule := &storage.Rule{
		Name:       req.Name,
		Enabled:    req.Enabled,
		Priority:   req.Priority,
		Conditions: conditions,
		Action:     action,
	}
	if err := h.storage.CreateRule(rule); err != nil {
		writeError(w, errors.ValidationError("failed to create rule: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, h.toRuleResponse(rule))
}

// UpdateRule replaces a routing rule
// @Summary Update rule
// @Description Replaces a routing rule's attributes; target URLs are re-encrypted
// @Tags rules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Param rule body handlers.RuleRequest true "Rule definition"
// @Success 200 {object} handlers.RuleResponse "Updated rule"
// @Failure 400 {object} map[string]interface{} "Validation failure"
// @Failure 404 {object} map[string]interface{} "Rule not found"
// @Router /api/rules/{id} [put]
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid rule id"))
		return
	}

	rule, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, errors.NotFoundError("rule"))
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}
	if err := h.validateRuleRequest(&req); err != nil {
		writeError(w, err)
		return
	}

	conditions, action, err := h.encodeRule(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	rule.Name = req.Name
	rule.Enabled = req.Enabled
	rule.Priority = req.Priority
	rule.Conditions = conditions
	rule.Action = action
	if err := h.storage.UpdateRule(rule); err != nil {
		writeError(w, errors.ValidationError("failed to update rule: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.toRuleResponse(rule))
}

// ToggleRule flips a rule's enabled flag
// @Summary Toggle rule
// @Description Enables a disabled rule or disables an enabled one
// @Tags rules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Success 200 {object} handlers.RuleResponse "Updated rule"
// @Failure 404 {object} map[string]interface{} "Rule not found"
// @Router /api/rules/{id}/toggle [post]
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid rule id"))
		return
	}

	rule, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, errors.NotFoundError("rule"))
		return
	}

	rule.Enabled = !rule.Enabled
	if err := h.storage.UpdateRule(rule); err != nil {
		writeError(w, errors.InternalError("failed to toggle rule", err))
		return
	}
	writeJSON(w, http.StatusOK, h.toRuleResponse(rule))
}

// DeleteRule removes a routing rule
// @Summary Delete rule
// @Description Deletes a routing rule together with its delivery history
// @Tags rules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Success 200 {object} map[string]interface{} "Deletion confirmation"
// @Failure 404 {object} map[string]interface{} "Rule not found"
// @Router /api/rules/{id} [delete]
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid rule id"))
		return
	}

	if _, err := h.storage.GetRule(id); err != nil {
		writeError(w, errors.NotFoundError("rule"))
		return
	}

	if err := h.storage.DeleteRule(id); err != nil {
		writeError(w, errors.InternalError("failed to delete rule", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
