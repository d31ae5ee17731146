// Package dispatch orchestrates signal ingestion: field extraction, rule
// evaluation in priority order, per-target HTTP delivery, and the terminal
// accounting write on the signal.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"signal-router/internal/common/errors"
	"signal-router/internal/common/logging"
	"signal-router/internal/crypto"
	"signal-router/internal/fields"
	"signal-router/internal/rules"
	"signal-router/internal/storage"
)

// Bounded copies of the response body and error message kept on each
// delivery row. The request payload is stored in full: it is the audit
// record of what was actually sent.
const (
	maxStoredResponseBytes = 500
	maxStoredErrorBytes    = 500
)

// Result summarizes one ingestion for the HTTP caller.
type Result struct {
	SignalID       int64   `json:"signal_id"`
	MatchedRuleIDs []int64 `json:"matched_rule_ids"`
	DeliveryCount  int     `json:"delivery_count"`
}

// Pipeline routes inbound signals to outbound targets.
type Pipeline struct {
	store   storage.Storage
	codec   *crypto.TargetCodec
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

// New creates a dispatch pipeline. The timeout bounds each outbound call
// individually, not the whole dispatch.
func New(store storage.Storage, codec *crypto.TargetCodec, client *http.Client, timeout time.Duration, logger logging.Logger) *Pipeline {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Pipeline{
		store:   store,
		codec:   codec,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Ingest processes one raw inbound payload end to end. The payload must be
// a JSON object; anything else is rejected before any signal is persisted.
// Per-target failures are absorbed into delivery records and never fail the
// call itself.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, errors.ValidationError("request body must be a JSON object")
	}

	extracted := fields.Extract(payload)
	fieldsJSON, err := json.Marshal(extracted)
	if err != nil {
		return nil, errors.InternalError("failed to encode extracted fields", err)
	}

	signal := &storage.Signal{
		Source:       sourceLabel(payload),
		RawPayload:   string(raw),
		ParsedFields: string(fieldsJSON),
	}
	if err := p.store.CreateSignal(signal); err != nil {
		return nil, errors.InternalError("failed to persist signal", err)
	}

	enabled, err := p.store.GetEnabledRules()
	if err != nil {
		return nil, errors.InternalError("failed to load rules", err)
	}

	matchedIDs := []int64{}
	deliveryCount := 0

	for _, rule := range enabled {
		conditions, err := rules.ParseConditionSet(rule.Conditions)
		if err != nil {
			p.logger.Warn("Skipping rule with unparseable conditions",
				logging.Field{Key: "rule_id", Value: rule.ID},
				logging.Field{Key: "rule_name", Value: rule.Name},
				logging.Err(err))
			continue
		}

		if !rules.Evaluate(conditions, extracted) {
			continue
		}
		matchedIDs = append(matchedIDs, rule.ID)

		action, err := rules.ParseAction(rule.Action)
		if err != nil {
			p.logger.Warn("Matched rule has unparseable action",
				logging.Field{Key: "rule_id", Value: rule.ID},
				logging.Err(err))
			continue
		}
		if action.Type != rules.ActionForward {
			continue
		}

		for _, encrypted := range action.Targets {
			target, err := p.codec.Decrypt(encrypted)
			if err != nil {
				// Undecryptable targets are skipped without a
				// delivery record.
				p.logger.Warn("Skipping undecryptable target",
					logging.Field{Key: "rule_id", Value: rule.ID},
					logging.Err(err))
				continue
			}

			delivery := p.deliver(ctx, target, raw)
			delivery.SignalID = signal.ID
			delivery.RuleID = rule.ID
			delivery.TargetEncrypted = encrypted

			// The signal's delivery count must equal its delivery
			// rows, so an attempt that cannot be recorded is not
			// counted either.
			if err := p.store.CreateDelivery(delivery); err != nil {
				p.logger.Error("Failed to record delivery", err,
					logging.Field{Key: "signal_id", Value: signal.ID},
					logging.Field{Key: "rule_id", Value: rule.ID})
				continue
			}
			deliveryCount++
		}
	}

	if err := p.store.FinalizeSignal(signal.ID, len(matchedIDs), deliveryCount); err != nil {
		return nil, errors.InternalError("failed to finalize signal", err)
	}

	return &Result{
		SignalID:       signal.ID,
		MatchedRuleIDs: matchedIDs,
		DeliveryCount:  deliveryCount,
	}, nil
}

// deliver performs one outbound POST with the verbatim inbound payload and
// returns a delivery record describing the attempt. A nil ResponseStatus
// means the call failed at the transport level.
func (p *Pipeline) deliver(ctx context.Context, target string, raw []byte) *storage.Delivery {
	delivery := &storage.Delivery{
		TargetMasked:   crypto.Mask(target),
		RequestPayload: string(raw),
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		delivery.ErrorMessage = truncate(err.Error(), maxStoredErrorBytes)
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		delivery.ErrorMessage = truncate(err.Error(), maxStoredErrorBytes)
		return delivery
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	delivery.ResponseStatus = &status
	delivery.Success = status == http.StatusOK

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStoredResponseBytes))
	if err != nil {
		delivery.ErrorMessage = truncate(err.Error(), maxStoredErrorBytes)
	} else {
		delivery.ResponseBody = string(body)
	}
	if !delivery.Success && delivery.ErrorMessage == "" {
		delivery.ErrorMessage = fmt.Sprintf("unexpected status %d", status)
	}

	return delivery
}

// sourceLabel lifts an optional top-level "source" attribute off the
// payload for display in the admin signal list.
func sourceLabel(payload map[string]interface{}) string {
	value, ok := payload["source"]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
