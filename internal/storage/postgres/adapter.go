// Package postgres implements the storage interface on PostgreSQL using
// the pgx driver through database/sql.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"signal-router/internal/config"
	"signal-router/internal/storage"
)

func init() {
	storage.Register("postgres", func(cfg *config.Config) (storage.Storage, error) {
		return New(cfg.PostgresDSN())
	})
}

// Adapter implements storage.Storage on a PostgreSQL database.
type Adapter struct {
	db *sql.DB
}

// New opens a connection to the PostgreSQL database at dsn and runs
// migrations.
func New(dsn string) (*Adapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			received_at TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			raw_payload TEXT NOT NULL,
			parsed_fields TEXT NOT NULL,
			match_count INTEGER NOT NULL DEFAULT 0,
			delivery_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			priority INTEGER NOT NULL DEFAULT 0,
			conditions TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id BIGSERIAL PRIMARY KEY,
			signal_id BIGINT NOT NULL REFERENCES signals (id),
			rule_id BIGINT NOT NULL REFERENCES rules (id),
			target_masked TEXT NOT NULL,
			target_encrypted TEXT NOT NULL,
			request_payload TEXT NOT NULL,
			response_status INTEGER,
			response_body TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_enabled_priority ON rules (enabled, priority DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_signal_id ON deliveries (signal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_rule_id ON deliveries (rule_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_received_at ON signals (received_at)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Health pings the database.
func (a *Adapter) Health() error {
	return a.db.Ping()
}

// CreateSignal persists a new signal and sets its ID and ReceivedAt.
func (a *Adapter) CreateSignal(signal *storage.Signal) error {
	if signal.ReceivedAt.IsZero() {
		signal.ReceivedAt = time.Now().UTC()
	}

	err := a.db.QueryRow(
		`INSERT INTO signals (received_at, source, raw_payload, parsed_fields, match_count, delivery_count)
		 VALUES ($1, $2, $3, $4, 0, 0) RETURNING id`,
		signal.ReceivedAt, signal.Source, signal.RawPayload, signal.ParsedFields).
		Scan(&signal.ID)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

// GetSignal retrieves a single signal by ID.
func (a *Adapter) GetSignal(id int64) (*storage.Signal, error) {
	signal := &storage.Signal{}
	err := a.db.QueryRow(
		`SELECT id, received_at, source, raw_payload, parsed_fields, match_count, delivery_count
		 FROM signals WHERE id = $1`, id).
		Scan(&signal.ID, &signal.ReceivedAt, &signal.Source, &signal.RawPayload,
			&signal.ParsedFields, &signal.MatchCount, &signal.DeliveryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return signal, nil
}

// ListSignals retrieves the most recent signals, newest first.
func (a *Adapter) ListSignals(limit int) ([]*storage.Signal, error) {
	rows, err := a.db.Query(
		`SELECT id, received_at, source, raw_payload, parsed_fields, match_count, delivery_count
		 FROM signals ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var signals []*storage.Signal
	for rows.Next() {
		signal := &storage.Signal{}
		err := rows.Scan(&signal.ID, &signal.ReceivedAt, &signal.Source, &signal.RawPayload,
			&signal.ParsedFields, &signal.MatchCount, &signal.DeliveryCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// FinalizeSignal writes a signal's match and delivery counts.
func (a *Adapter) FinalizeSignal(id int64, matchCount, deliveryCount int) error {
	_, err := a.db.Exec(
		`UPDATE signals SET match_count = $1, delivery_count = $2 WHERE id = $3`,
		matchCount, deliveryCount, id)
	if err != nil {
		return fmt.Errorf("failed to finalize signal: %w", err)
	}
	return nil
}

// DeleteSignalsBefore removes signals received before the cutoff together
// with their deliveries.
func (a *Adapter) DeleteSignalsBefore(cutoff time.Time) (int64, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM deliveries WHERE signal_id IN (SELECT id FROM signals WHERE received_at < $1)`,
		cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete old deliveries: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM signals WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old signals: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted signals: %w", err)
	}

	return removed, tx.Commit()
}

// CreateRule persists a new rule and sets its ID and timestamps.
func (a *Adapter) CreateRule(rule *storage.Rule) error {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	err := a.db.QueryRow(
		`INSERT INTO rules (name, enabled, priority, conditions, action, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rule.Name, rule.Enabled, rule.Priority, rule.Conditions, rule.Action,
		rule.CreatedAt, rule.UpdatedAt).
		Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule retrieves a single rule by ID.
func (a *Adapter) GetRule(id int64) (*storage.Rule, error) {
	return a.getRule(`SELECT id, name, enabled, priority, conditions, action, created_at, updated_at
		FROM rules WHERE id = $1`, id)
}

// GetRuleByName retrieves a single rule by its unique name.
func (a *Adapter) GetRuleByName(name string) (*storage.Rule, error) {
	return a.getRule(`SELECT id, name, enabled, priority, conditions, action, created_at, updated_at
		FROM rules WHERE name = $1`, name)
}

func (a *Adapter) getRule(query string, arg interface{}) (*storage.Rule, error) {
	rule := &storage.Rule{}
	err := a.db.QueryRow(query, arg).
		Scan(&rule.ID, &rule.Name, &rule.Enabled, &rule.Priority,
			&rule.Conditions, &rule.Action, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetRules retrieves all rules ordered by priority DESC, id DESC.
func (a *Adapter) GetRules() ([]*storage.Rule, error) {
	return a.queryRules(
		`SELECT id, name, enabled, priority, conditions, action, created_at, updated_at
		 FROM rules ORDER BY priority DESC, id DESC`)
}

// GetEnabledRules retrieves enabled rules in evaluation order.
func (a *Adapter) GetEnabledRules() ([]*storage.Rule, error) {
	return a.queryRules(
		`SELECT id, name, enabled, priority, conditions, action, created_at, updated_at
		 FROM rules WHERE enabled ORDER BY priority DESC, id DESC`)
}

func (a *Adapter) queryRules(query string) ([]*storage.Rule, error) {
	rows, err := a.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer rows.Close()

	var result []*storage.Rule
	for rows.Next() {
		rule := &storage.Rule{}
		err := rows.Scan(&rule.ID, &rule.Name, &rule.Enabled, &rule.Priority,
			&rule.Conditions, &rule.Action, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

// UpdateRule updates a rule's mutable attributes and refreshes UpdatedAt.
func (a *Adapter) UpdateRule(rule *storage.Rule) error {
	rule.UpdatedAt = time.Now().UTC()
	_, err := a.db.Exec(
		`UPDATE rules SET name = $1, enabled = $2, priority = $3, conditions = $4, action = $5, updated_at = $6
		 WHERE id = $7`,
		rule.Name, rule.Enabled, rule.Priority, rule.Conditions, rule.Action,
		rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule and cascades to its deliveries.
func (a *Adapter) DeleteRule(id int64) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM deliveries WHERE rule_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete rule deliveries: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	return tx.Commit()
}

// CreateDelivery persists one attempt record.
func (a *Adapter) CreateDelivery(delivery *storage.Delivery) error {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	var status sql.NullInt64
	if delivery.ResponseStatus != nil {
		status = sql.NullInt64{Int64: int64(*delivery.ResponseStatus), Valid: true}
	}

	err := a.db.QueryRow(
		`INSERT INTO deliveries (signal_id, rule_id, target_masked, target_encrypted,
			request_payload, response_status, response_body, success, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		delivery.SignalID, delivery.RuleID, delivery.TargetMasked, delivery.TargetEncrypted,
		delivery.RequestPayload, status, delivery.ResponseBody, delivery.Success,
		delivery.ErrorMessage, delivery.CreatedAt).
		Scan(&delivery.ID)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

// GetDeliveries retrieves the deliveries of a signal, newest first.
func (a *Adapter) GetDeliveries(signalID int64) ([]*storage.Delivery, error) {
	rows, err := a.db.Query(
		`SELECT id, signal_id, rule_id, target_masked, target_encrypted, request_payload,
			response_status, response_body, success, error_message, created_at
		 FROM deliveries WHERE signal_id = $1 ORDER BY id DESC`, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*storage.Delivery
	for rows.Next() {
		delivery := &storage.Delivery{}
		var status sql.NullInt64
		err := rows.Scan(&delivery.ID, &delivery.SignalID, &delivery.RuleID,
			&delivery.TargetMasked, &delivery.TargetEncrypted, &delivery.RequestPayload,
			&status, &delivery.ResponseBody, &delivery.Success, &delivery.ErrorMessage,
			&delivery.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		if status.Valid {
			code := int(status.Int64)
			delivery.ResponseStatus = &code
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// GetStats returns aggregate counters for the admin API.
func (a *Adapter) GetStats() (*storage.Stats, error) {
	stats := &storage.Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM signals`, &stats.TotalSignals},
		{`SELECT COUNT(*) FROM deliveries`, &stats.TotalDeliveries},
		{`SELECT COUNT(*) FROM deliveries WHERE success`, &stats.SuccessfulDeliveries},
		{`SELECT COUNT(*) FROM deliveries WHERE NOT success`, &stats.FailedDeliveries},
		{`SELECT COUNT(*) FROM rules WHERE enabled`, &stats.EnabledRules},
	}

	for _, q := range queries {
		if err := a.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}
	}

	return stats, nil
}
