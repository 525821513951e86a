package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// Store groups the repositories over a single gorm handle, which is either
// the connection pool or an open transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store backed by db.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	return &Store{db: db}, nil
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

// Shipments returns the shipment repository.
func (s *Store) Shipments() *ShipmentRepository {
	return &ShipmentRepository{db: s.db}
}

// Devices returns the IoT device repository.
func (s *Store) Devices() *DeviceRepository {
	return &DeviceRepository{db: s.db}
}

// Analytics returns the analytics rollup repository.
func (s *Store) Analytics() *AnalyticsRepository {
	return &AnalyticsRepository{db: s.db}
}

// WithTx runs fn inside a database transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// translate maps gorm errors onto the package sentinels.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("failed to %s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
