package store

import (
	"errors"
	"fmt"
)

// Driver names accepted by New
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// New constructs a Store for the configured driver and DSN
func New(driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
