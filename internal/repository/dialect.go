package repository

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConflict marks a write that lost a race with another transaction and may be retried.
	ErrConflict = errors.New("write conflict")
	// ErrDuplicate marks a unique constraint violation.
	ErrDuplicate = errors.New("duplicate key")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// dialect captures what differs between the supported SQL engines.
// Queries are written with $N placeholders and rebound per engine.
type dialect struct {
	name       string
	lockSuffix string
	rebind     func(query string) string
	classify   func(err error) error
}

var numberedPlaceholder = regexp.MustCompile(`\$(\d+)`)

var dialects = map[string]dialect{
	DriverPostgres: {
		name:       DriverPostgres,
		lockSuffix: " FOR UPDATE",
		rebind:     func(q string) string { return q },
		classify:   classifyPostgres,
	},
	DriverSQLite: {
		name:       DriverSQLite,
		lockSuffix: "",
		rebind:     func(q string) string { return numberedPlaceholder.ReplaceAllString(q, "?$1") },
		classify:   classifySQLite,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

func classifyPostgres(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case "23505": // unique_violation
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func classifySQLite(err error) error {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return err
	}
	switch {
	case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
