package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsLockNotAvailableErr reports whether err came from a FOR UPDATE NOWAIT
// that lost the race for a row lock.
func IsLockNotAvailableErr(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// PostgreSQL (error code 55P03)
	if strings.Contains(msg, "could not obtain lock on row") {
		return true
	}

	// MySQL (error code 3572)
	if strings.Contains(msg, "NOWAIT is set") {
		return true
	}

	// SQLite single-writer contention
	if strings.Contains(msg, "database is locked") {
		return true
	}

	return false
}

// IsSerializationErr reports whether err is a serialization failure that the
// caller may retry.
func IsSerializationErr(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// PostgreSQL (error code 40001)
	if strings.Contains(msg, "could not serialize access") {
		return true
	}

	// MySQL (error code 1213)
	if strings.Contains(msg, "Deadlock found") {
		return true
	}

	return false
}
