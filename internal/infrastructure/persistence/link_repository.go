package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/gridbase/gridbase/internal/domain/models"
)

// LinkRepository handles storage of link tables, their attribute columns and
// the individual relationship edges (link records).
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a new LinkRepository
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// GetExecutor returns the transaction if present, or the DB connection
func (r *LinkRepository) GetExecutor(tx *sql.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// ==================== Link tables ====================

// CreateLinkTable inserts a link table row and fills in its generated id
func (r *LinkRepository) CreateLinkTable(ctx context.Context, tx *sql.Tx, lt *models.LinkTable) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO link_tables (name, from_table_id, to_table_id, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
	`, lt.Name, lt.FromTableID, lt.ToTableID)
	if err != nil {
		return translateWriteError(err, "LinkTable", "link table insert")
	}
	lt.ID, err = res.LastInsertId()
	return err
}

// GetLinkTable fetches a link table with its columns; returns nil when absent
func (r *LinkRepository) GetLinkTable(ctx context.Context, id int64) (*models.LinkTable, error) {
	var lt models.LinkTable
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, from_table_id, to_table_id, created_at, updated_at
		FROM link_tables WHERE id = ?
	`, id).Scan(&lt.ID, &lt.Name, &lt.FromTableID, &lt.ToTableID, &lt.CreatedAt, &lt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lt.Columns, err = r.ListLinkColumns(ctx, lt.ID)
	if err != nil {
		return nil, err
	}
	return &lt, nil
}

// GetLinkTableByName fetches a link table by name; returns nil when absent
func (r *LinkRepository) GetLinkTableByName(ctx context.Context, name string) (*models.LinkTable, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM link_tables WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetLinkTable(ctx, id)
}

// ListLinkTables returns every link table with its columns
func (r *LinkRepository) ListLinkTables(ctx context.Context) ([]models.LinkTable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, from_table_id, to_table_id, created_at, updated_at
		FROM link_tables ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.LinkTable
	for rows.Next() {
		var lt models.LinkTable
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.FromTableID, &lt.ToTableID, &lt.CreatedAt, &lt.UpdatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		tables[i].Columns, err = r.ListLinkColumns(ctx, tables[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// ListLinkTablesForTable returns link tables where the given table is either
// endpoint (cascade lookup on table deletion)
func (r *LinkRepository) ListLinkTablesForTable(ctx context.Context, tableID int64) ([]models.LinkTable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, from_table_id, to_table_id, created_at, updated_at
		FROM link_tables WHERE from_table_id = ? OR to_table_id = ?
	`, tableID, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.LinkTable
	for rows.Next() {
		var lt models.LinkTable
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.FromTableID, &lt.ToTableID, &lt.CreatedAt, &lt.UpdatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, lt)
	}
	return tables, rows.Err()
}

// UpdateLinkTable rewrites a link table's name and endpoints
func (r *LinkRepository) UpdateLinkTable(ctx context.Context, tx *sql.Tx, lt *models.LinkTable) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE link_tables SET name = ?, from_table_id = ?, to_table_id = ?, updated_at = NOW()
		WHERE id = ?
	`, lt.Name, lt.FromTableID, lt.ToTableID, lt.ID)
	return translateWriteError(err, "LinkTable", "link table update")
}

// DeleteLinkTable removes the link table row only
func (r *LinkRepository) DeleteLinkTable(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM link_tables WHERE id = ?`, id)
	return translateWriteError(err, "LinkTable", "link table delete")
}

// ==================== Link columns ====================

const linkColumnFields = `id, link_table_id, name, data_type, enum_id, required, unique_flag, created_at, updated_at`

func scanLinkColumn(row interface{ Scan(...interface{}) error }) (*models.LinkColumn, error) {
	var c models.LinkColumn
	var dataType string
	if err := row.Scan(&c.ID, &c.LinkTableID, &c.Name, &dataType, &c.EnumID,
		&c.Required, &c.Unique, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.DataType = models.DataType(dataType)
	return &c, nil
}

// CreateLinkColumn inserts a link column row and fills in its generated id
func (r *LinkRepository) CreateLinkColumn(ctx context.Context, tx *sql.Tx, c *models.LinkColumn) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO link_columns (link_table_id, name, data_type, enum_id, required, unique_flag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.LinkTableID, c.Name, string(c.DataType), c.EnumID, c.Required, c.Unique)
	if err != nil {
		return translateWriteError(err, "LinkColumn", "link column insert")
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetLinkColumn fetches a link column by id; returns nil when absent
func (r *LinkRepository) GetLinkColumn(ctx context.Context, id int64) (*models.LinkColumn, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumnFields+` FROM link_columns WHERE id = ?`, id)
	c, err := scanLinkColumn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListLinkColumns returns a link table's columns in creation order
func (r *LinkRepository) ListLinkColumns(ctx context.Context, linkTableID int64) ([]models.LinkColumn, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+linkColumnFields+` FROM link_columns WHERE link_table_id = ? ORDER BY id`, linkTableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []models.LinkColumn
	for rows.Next() {
		c, err := scanLinkColumn(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, *c)
	}
	return cols, rows.Err()
}

// UpdateLinkColumn rewrites every mutable link column attribute
func (r *LinkRepository) UpdateLinkColumn(ctx context.Context, tx *sql.Tx, c *models.LinkColumn) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE link_columns SET name = ?, data_type = ?, enum_id = ?, required = ?, unique_flag = ?, updated_at = NOW()
		WHERE id = ?
	`, c.Name, string(c.DataType), c.EnumID, c.Required, c.Unique, c.ID)
	return translateWriteError(err, "LinkColumn", "link column update")
}

// DeleteLinkColumn removes a single link column
func (r *LinkRepository) DeleteLinkColumn(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM link_columns WHERE id = ?`, id)
	return translateWriteError(err, "LinkColumn", "link column delete")
}

// DeleteLinkColumnsOfLinkTable removes a link table's columns (cascade step)
func (r *LinkRepository) DeleteLinkColumnsOfLinkTable(ctx context.Context, tx *sql.Tx, linkTableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM link_columns WHERE link_table_id = ?`, linkTableID)
	return translateWriteError(err, "LinkColumn", "link column cascade delete")
}

// ==================== Link records ====================

func scanLinkRecord(row interface{ Scan(...interface{}) error }) (*models.LinkRecord, error) {
	var lr models.LinkRecord
	var raw []byte
	if err := row.Scan(&lr.ID, &lr.LinkTableID, &lr.FromRecordID, &lr.ToRecordID, &raw, &lr.CreatedAt, &lr.UpdatedAt); err != nil {
		return nil, err
	}
	data, err := unmarshalData(raw)
	if err != nil {
		return nil, err
	}
	lr.Data = data
	return &lr, nil
}

// InsertLinkRecord writes one relationship edge
func (r *LinkRepository) InsertLinkRecord(ctx context.Context, tx *sql.Tx, lr *models.LinkRecord) error {
	raw, err := marshalData(lr.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO link_records (link_table_id, from_record_id, to_record_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, lr.LinkTableID, lr.FromRecordID, lr.ToRecordID, raw, now, now)
	if err != nil {
		return translateWriteError(err, "LinkRecord", "link record insert")
	}

	lr.ID, err = res.LastInsertId()
	lr.CreatedAt = now
	lr.UpdatedAt = now
	return err
}

// GetLinkRecord fetches one edge by id; returns nil when absent
func (r *LinkRepository) GetLinkRecord(ctx context.Context, id int64) (*models.LinkRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, link_table_id, from_record_id, to_record_id, data, created_at, updated_at
		FROM link_records WHERE id = ?
	`, id)
	lr, err := scanLinkRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return lr, err
}

// ListLinkRecords returns every edge of a link table
func (r *LinkRepository) ListLinkRecords(ctx context.Context, linkTableID int64) ([]models.LinkRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, link_table_id, from_record_id, to_record_id, data, created_at, updated_at
		FROM link_records WHERE link_table_id = ? ORDER BY id
	`, linkTableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLinkRecords(rows)
}

// ListEdgesFrom returns the edges of (link table, from record). When tx is
// supplied the rows are locked so concurrent reconciles of the same record
// serialize instead of losing updates.
func (r *LinkRepository) ListEdgesFrom(ctx context.Context, tx *sql.Tx, linkTableID, fromRecordID int64) ([]models.LinkRecord, error) {
	q := `
		SELECT id, link_table_id, from_record_id, to_record_id, data, created_at, updated_at
		FROM link_records WHERE link_table_id = ? AND from_record_id = ? ORDER BY id`
	if tx != nil {
		q += ` FOR UPDATE`
	}

	rows, err := r.GetExecutor(tx).QueryContext(ctx, q, linkTableID, fromRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLinkRecords(rows)
}

// UpdateLinkRecord rewrites an edge's endpoints and attribute map
func (r *LinkRepository) UpdateLinkRecord(ctx context.Context, tx *sql.Tx, lr *models.LinkRecord) error {
	raw, err := marshalData(lr.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE link_records SET from_record_id = ?, to_record_id = ?, data = ?, updated_at = ? WHERE id = ?
	`, lr.FromRecordID, lr.ToRecordID, raw, now, lr.ID)
	if err != nil {
		return translateWriteError(err, "LinkRecord", "link record update")
	}
	lr.UpdatedAt = now
	return nil
}

// DeleteLinkRecord removes one edge
func (r *LinkRepository) DeleteLinkRecord(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM link_records WHERE id = ?`, id)
	return translateWriteError(err, "LinkRecord", "link record delete")
}

// DeleteEdgesOfRecord removes every edge touching a record at either endpoint
// (cascade on record deletion)
func (r *LinkRepository) DeleteEdgesOfRecord(ctx context.Context, tx *sql.Tx, recordID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		DELETE FROM link_records WHERE from_record_id = ? OR to_record_id = ?
	`, recordID, recordID)
	return translateWriteError(err, "LinkRecord", "link record cascade delete")
}

// DeleteEdgesOfTableRecords removes every edge touching any record of a table
// (cascade on table deletion)
func (r *LinkRepository) DeleteEdgesOfTableRecords(ctx context.Context, tx *sql.Tx, tableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		DELETE FROM link_records
		WHERE from_record_id IN (SELECT id FROM records WHERE table_id = ?)
		   OR to_record_id IN (SELECT id FROM records WHERE table_id = ?)
	`, tableID, tableID)
	return translateWriteError(err, "LinkRecord", "link record table cascade delete")
}

// DeleteLinkRecordsOfLinkTable removes a link table's edges (cascade step)
func (r *LinkRepository) DeleteLinkRecordsOfLinkTable(ctx context.Context, tx *sql.Tx, linkTableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM link_records WHERE link_table_id = ?`, linkTableID)
	return translateWriteError(err, "LinkRecord", "link record cascade delete")
}

func collectLinkRecords(rows *sql.Rows) ([]models.LinkRecord, error) {
	var records []models.LinkRecord
	for rows.Next() {
		lr, err := scanLinkRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *lr)
	}
	return records, rows.Err()
}
