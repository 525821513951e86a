// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/logger"
)

// Logger returns a logger that drops every record.
func Logger() *slog.Logger {
	return logger.Discard()
}

// NewDB opens a migrated in-memory SQLite database private to the caller.
func NewDB() (*gorm.DB, error) {
	return store.NewDB(&store.DBConfig{
		Logger: Logger(),
		Driver: store.DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
}

// NewStore opens a private in-memory database and wraps it in a Store.
func NewStore() (*store.Store, *gorm.DB, error) {
	db, err := NewDB()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.New(db)
	if err != nil {
		return nil, nil, err
	}
	return s, db, nil
}
