package storage

import "time"

// Signal is one received inbound notification. The raw payload is preserved
// verbatim from the moment of creation; MatchCount and DeliveryCount are
// written exactly once, after dispatch completes.
type Signal struct {
	ID            int64     `json:"id"`
	ReceivedAt    time.Time `json:"received_at"`
	Source        string    `json:"source,omitempty"`
	RawPayload    string    `json:"raw_payload"`
	ParsedFields  string    `json:"parsed_fields"` // JSON document of extracted fields
	MatchCount    int       `json:"match_count"`
	DeliveryCount int       `json:"delivery_count"`
}

// Rule is one routing policy. Conditions and Action are stored as JSON
// documents; Action targets are encrypted. The dispatch pipeline only ever
// reads rules.
type Rule struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	Priority   int       `json:"priority"`
	Conditions string    `json:"conditions"` // JSON condition-set document
	Action     string    `json:"action"`     // JSON action document, encrypted targets
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Delivery records one outbound attempt of one signal against one target
// under one rule. ResponseStatus is nil on transport-level failure; Success
// is true only for an HTTP 200. Rows are immutable once created and are
// removed only when their parent rule is deleted.
type Delivery struct {
	ID              int64     `json:"id"`
	SignalID        int64     `json:"signal_id"`
	RuleID          int64     `json:"rule_id"`
	TargetMasked    string    `json:"target_masked"`
	TargetEncrypted string    `json:"-"`
	RequestPayload  string    `json:"request_payload"`
	ResponseStatus  *int      `json:"response_status,omitempty"`
	ResponseBody    string    `json:"response_body,omitempty"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats holds aggregate counters for the admin API.
type Stats struct {
	TotalSignals         int `json:"total_signals"`
	TotalDeliveries      int `json:"total_deliveries"`
	SuccessfulDeliveries int `json:"successful_deliveries"`
	FailedDeliveries     int `json:"failed_deliveries"`
	EnabledRules         int `json:"enabled_rules"`
}
