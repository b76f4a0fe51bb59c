package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridbase/gridbase/internal/domain/models"
)

// RecordRepository handles storage of records for every user-defined table.
// Record data lives in a JSON column keyed by the owning table's column names.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// GetExecutor returns the transaction if present, or the DB connection
func (r *RecordRepository) GetExecutor(tx *sql.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*models.Record, error) {
	var rec models.Record
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.TableID, &raw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	data, err := unmarshalData(raw)
	if err != nil {
		return nil, err
	}
	rec.Data = data
	return &rec, nil
}

// Insert writes a record row, filling in the generated id and timestamps
func (r *RecordRepository) Insert(ctx context.Context, tx *sql.Tx, rec *models.Record) error {
	raw, err := marshalData(rec.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO records (table_id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, rec.TableID, raw, now, now)
	if err != nil {
		return translateWriteError(err, "Record", "record insert")
	}

	rec.ID, err = res.LastInsertId()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return err
}

// Get fetches a record by id; returns nil when absent
func (r *RecordRepository) Get(ctx context.Context, id int64) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, table_id, data, created_at, updated_at FROM records WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetInTable fetches a record by id scoped to one table; returns nil when
// absent or when the record belongs to a different table
func (r *RecordRepository) GetInTable(ctx context.Context, tableID, id int64) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, table_id, data, created_at, updated_at FROM records WHERE id = ? AND table_id = ?
	`, id, tableID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListByTable returns every record of a table in id order
func (r *RecordRepository) ListByTable(ctx context.Context, tableID int64) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, table_id, data, created_at, updated_at FROM records WHERE table_id = ? ORDER BY id
	`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Update rewrites a record's data map
func (r *RecordRepository) Update(ctx context.Context, tx *sql.Tx, rec *models.Record) error {
	raw, err := marshalData(rec.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE records SET data = ?, updated_at = ? WHERE id = ?
	`, raw, now, rec.ID)
	if err != nil {
		return translateWriteError(err, "Record", "record update")
	}
	rec.UpdatedAt = now
	return nil
}

// Delete removes one record
func (r *RecordRepository) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return translateWriteError(err, "Record", "record delete")
}

// DeleteByTable removes every record of a table (cascade step)
func (r *RecordRepository) DeleteByTable(ctx context.Context, tx *sql.Tx, tableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM records WHERE table_id = ?`, tableID)
	return translateWriteError(err, "Record", "record cascade delete")
}

// ExistsInTable checks that a record id exists and belongs to the given table
func (r *RecordRepository) ExistsInTable(ctx context.Context, tx *sql.Tx, tableID, id int64) (bool, error) {
	rows, err := r.GetExecutor(tx).QueryContext(ctx, `
		SELECT id FROM records WHERE id = ? AND table_id = ? LIMIT 1
	`, id, tableID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}

// HasFieldValue reports whether any record of the table other than excludeID
// holds the given value under the named data key. Used for unique-column scans;
// when run inside the write transaction the scan is a locking read, so
// concurrent writers serialize on it.
func (r *RecordRepository) HasFieldValue(ctx context.Context, tx *sql.Tx, tableID int64, field string, value interface{}, excludeID int64) (bool, error) {
	rawValue, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal unique scan value: %w", err)
	}
	path := fmt.Sprintf(`$."%s"`, field)

	q := `
		SELECT id FROM records
		WHERE table_id = ? AND id != ? AND JSON_EXTRACT(data, ?) = CAST(? AS JSON)
		LIMIT 1`
	if tx != nil {
		q += ` FOR UPDATE`
	}

	rows, err := r.GetExecutor(tx).QueryContext(ctx, q, tableID, excludeID, path, string(rawValue))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}
