package storage

import (
	"fmt"

	"signal-router/internal/config"
)

// adapterConstructors maps DATABASE_TYPE values to adapter constructors.
// Adapters register themselves from init to avoid an import cycle.
var adapterConstructors = map[string]func(cfg *config.Config) (Storage, error){}

// Register makes an adapter constructor available to New. Called from the
// adapter packages' init functions.
func Register(databaseType string, constructor func(cfg *config.Config) (Storage, error)) {
	adapterConstructors[databaseType] = constructor
}

// New creates the storage adapter selected by cfg.DatabaseType.
func New(cfg *config.Config) (Storage, error) {
	constructor, ok := adapterConstructors[cfg.DatabaseType]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
	return constructor(cfg)
}
