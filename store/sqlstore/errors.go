package sqlstore

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/crm-engine/crm"
)

// translate maps driver constraint failures onto the crm sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", op, crm.ErrConflict)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", op, crm.ErrUnknownReference)
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, crm.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, crm.ErrUnknownReference)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
