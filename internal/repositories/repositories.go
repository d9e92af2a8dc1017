package repositories

import (
	"database/sql"
	"fmt"
)

// requireAffected returns errNone when result touched no rows.
func requireAffected(result sql.Result, errNone error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errNone
	}
	return nil
}
