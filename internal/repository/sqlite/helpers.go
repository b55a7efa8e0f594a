package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// idsToJSON renders ids as a JSON array for json_each.
func idsToJSON(ids []int64) (string, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ids: %w", err)
	}
	return string(data), nil
}

// scanIDs drains a single-column integer result set and closes it.
// An empty result is an empty, non-nil slice.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}
