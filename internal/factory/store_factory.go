// Package factory builds concrete adapters from configuration.
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/adapters/store"
	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

// CreateStore creates a classification store based on the configuration
func CreateStore(cfg *config.Config, logger *zap.Logger) (core.ResultStore, error) {
	storeType := cfg.GetString("store.type")

	switch storeType {
	case "memory":
		return store.NewMemoryStore(logger), nil
	case "sqlite":
		path := cfg.GetString("store.sqlite_path")
		if path == "" {
			return nil, fmt.Errorf("store.sqlite_path is required for the sqlite store")
		}
		return store.NewSQLiteStore(path, logger)
	case "mysql":
		dsn := cfg.GetString("store.mysql_dsn")
		if dsn == "" {
			return nil, fmt.Errorf("store.mysql_dsn is required for the mysql store")
		}
		return store.NewMySQLStore(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}
