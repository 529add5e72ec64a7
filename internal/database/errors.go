package database

import (
	"errors"
	"fmt"

	"rentflow/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// ErrConcurrentModification means the row changed between read and write.
var ErrConcurrentModification = fmt.Errorf("%w: concurrent modification", domain.ErrConflict)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
