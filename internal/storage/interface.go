// Package storage defines the persistence interface for signals, rules and
// deliveries, along with the record types shared by all adapters.
package storage

import "time"

// Storage is the transactional record store behind the router. Two adapters
// implement it: sqlite (default) and postgres.
type Storage interface {
	// Connection management
	Close() error
	Health() error

	// Signals
	// CreateSignal persists a new signal and sets its ID and ReceivedAt.
	CreateSignal(signal *Signal) error

	// GetSignal retrieves a single signal by ID.
	GetSignal(id int64) (*Signal, error)

	// ListSignals retrieves the most recent signals, newest first.
	ListSignals(limit int) ([]*Signal, error)

	// FinalizeSignal writes a signal's match and delivery counts. This is
	// the single terminal write performed after dispatch completes.
	FinalizeSignal(id int64, matchCount, deliveryCount int) error

	// DeleteSignalsBefore removes signals received before the cutoff,
	// together with their deliveries, and returns how many were removed.
	// Used only by the administrative retention sweeper.
	DeleteSignalsBefore(cutoff time.Time) (int64, error)

	// Rules
	CreateRule(rule *Rule) error
	GetRule(id int64) (*Rule, error)
	GetRuleByName(name string) (*Rule, error)

	// GetRules retrieves all rules ordered by priority DESC, id DESC.
	GetRules() ([]*Rule, error)

	// GetEnabledRules retrieves enabled rules in evaluation order:
	// priority DESC, ties broken by id DESC, so dispatch order is
	// deterministic and reproducible.
	GetEnabledRules() ([]*Rule, error)

	UpdateRule(rule *Rule) error

	// DeleteRule removes a rule and cascades to its deliveries.
	DeleteRule(id int64) error

	// Deliveries
	// CreateDelivery persists one attempt record. Rows are never updated.
	CreateDelivery(delivery *Delivery) error

	// GetDeliveries retrieves the deliveries of a signal, newest first.
	GetDeliveries(signalID int64) ([]*Delivery, error)

	// GetStats returns aggregate counters for the admin API.
	GetStats() (*Stats, error)
}
