package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/quackstagram/internal/apperr"
)

func storageErr(op string, err error) error {
	return fmt.Errorf("sqlstore: %s: %w: %w", op, apperr.ErrStorage, err)
}

// expectRows maps an exec that touched nothing to apperr.ErrNotFound.
func expectRows(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlstore: %s: %w", what, apperr.ErrNotFound)
	}
	return nil
}

func queryStrings(ctx context.Context, conn *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storageErr("scan", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// unixTime restores a stored timestamp in local time, the zone the flat
// files are written in.
func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
