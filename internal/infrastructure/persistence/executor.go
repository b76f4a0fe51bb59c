package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/gridbase/gridbase/pkg/apperr"
)

// Executor abstracts *sql.DB and *sql.Tx so repository methods run either
// standalone or inside a caller-owned transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const mysqlErrDuplicateEntry = 1062

// translateWriteError maps storage-layer failures to the application taxonomy.
// Duplicate-key races that slip past the pre-insert checks become the same
// ConflictError the checks would have produced.
func translateWriteError(err error, resource, op string) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
		return apperr.NewConflictError(resource, "", "")
	}
	return apperr.NewPersistenceError(op, err)
}

// marshalData serializes a record data map for a JSON column
func marshalData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record data: %w", err)
	}
	return raw, nil
}

// unmarshalData deserializes a JSON column into a data map
func unmarshalData(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
	}
	return data, nil
}
