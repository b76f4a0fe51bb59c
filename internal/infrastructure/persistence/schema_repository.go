package persistence

import (
	"context"
	"database/sql"

	"github.com/gridbase/gridbase/internal/domain/models"
)

// SchemaRepository handles storage of tables and their columns
type SchemaRepository struct {
	db *sql.DB
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(db *sql.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// GetExecutor returns the transaction if present, or the DB connection
func (r *SchemaRepository) GetExecutor(tx *sql.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// ==================== Tables ====================

const tableFields = `id, name, display_format, display_format_secondary, created_at, updated_at`

func scanTable(row interface{ Scan(...interface{}) error }) (*models.Table, error) {
	var t models.Table
	var format, formatSecondary sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &format, &formatSecondary, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.DisplayFormat = format.String
	t.DisplayFormatSecondary = formatSecondary.String
	return &t, nil
}

// CreateTable inserts a table row and fills in its generated id
func (r *SchemaRepository) CreateTable(ctx context.Context, tx *sql.Tx, t *models.Table) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO tables (name, display_format, display_format_secondary, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
	`, t.Name, nullIfEmpty(t.DisplayFormat), nullIfEmpty(t.DisplayFormatSecondary))
	if err != nil {
		return translateWriteError(err, "Table", "table insert")
	}
	t.ID, err = res.LastInsertId()
	return err
}

// GetTable fetches a table by id; returns nil when absent
func (r *SchemaRepository) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tableFields+` FROM tables WHERE id = ?`, id)
	t, err := scanTable(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTableByName fetches a table by its unique name; returns nil when absent
func (r *SchemaRepository) GetTableByName(ctx context.Context, name string) (*models.Table, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tableFields+` FROM tables WHERE name = ?`, name)
	t, err := scanTable(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTables returns every table ordered by name
func (r *SchemaRepository) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tableFields+` FROM tables ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

// UpdateTable rewrites a table's name and display formats
func (r *SchemaRepository) UpdateTable(ctx context.Context, tx *sql.Tx, t *models.Table) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE tables
		SET name = ?, display_format = ?, display_format_secondary = ?, updated_at = NOW()
		WHERE id = ?
	`, t.Name, nullIfEmpty(t.DisplayFormat), nullIfEmpty(t.DisplayFormatSecondary), t.ID)
	return translateWriteError(err, "Table", "table update")
}

// DeleteTable removes the table row only; the service layer cascades columns,
// records and dependent link tables in the same transaction.
func (r *SchemaRepository) DeleteTable(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id)
	return translateWriteError(err, "Table", "table delete")
}

// ==================== Columns ====================

const columnFields = `id, table_id, name, data_type, is_list, enum_id,
	reference_table_id, reference_link_table_id, required, unique_flag, searchable,
	created_at, updated_at`

func scanColumn(row interface{ Scan(...interface{}) error }) (*models.Column, error) {
	var c models.Column
	var dataType string
	if err := row.Scan(&c.ID, &c.TableID, &c.Name, &dataType, &c.IsList, &c.EnumID,
		&c.ReferenceTableID, &c.ReferenceLinkTableID, &c.Required, &c.Unique, &c.Searchable,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.DataType = models.DataType(dataType)
	return &c, nil
}

// CreateColumn inserts a column row and fills in its generated id
func (r *SchemaRepository) CreateColumn(ctx context.Context, tx *sql.Tx, c *models.Column) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO columns (table_id, name, data_type, is_list, enum_id,
			reference_table_id, reference_link_table_id, required, unique_flag, searchable,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.TableID, c.Name, string(c.DataType), c.IsList, c.EnumID,
		c.ReferenceTableID, c.ReferenceLinkTableID, c.Required, c.Unique, c.Searchable)
	if err != nil {
		return translateWriteError(err, "Column", "column insert")
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetColumn fetches a column by id; returns nil when absent
func (r *SchemaRepository) GetColumn(ctx context.Context, id int64) (*models.Column, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columnFields+` FROM columns WHERE id = ?`, id)
	c, err := scanColumn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListColumns returns a table's columns in creation order
func (r *SchemaRepository) ListColumns(ctx context.Context, tableID int64) ([]models.Column, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columnFields+` FROM columns WHERE table_id = ? ORDER BY id`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, *c)
	}
	return cols, rows.Err()
}

// UpdateColumn rewrites every mutable column attribute
func (r *SchemaRepository) UpdateColumn(ctx context.Context, tx *sql.Tx, c *models.Column) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE columns
		SET name = ?, data_type = ?, is_list = ?, enum_id = ?,
			reference_table_id = ?, reference_link_table_id = ?,
			required = ?, unique_flag = ?, searchable = ?, updated_at = NOW()
		WHERE id = ?
	`, c.Name, string(c.DataType), c.IsList, c.EnumID,
		c.ReferenceTableID, c.ReferenceLinkTableID,
		c.Required, c.Unique, c.Searchable, c.ID)
	return translateWriteError(err, "Column", "column update")
}

// DeleteColumn removes a single column
func (r *SchemaRepository) DeleteColumn(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, id)
	return translateWriteError(err, "Column", "column delete")
}

// DeleteColumnsOfTable removes all columns owned by a table (cascade step)
func (r *SchemaRepository) DeleteColumnsOfTable(ctx context.Context, tx *sql.Tx, tableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM columns WHERE table_id = ?`, tableID)
	return translateWriteError(err, "Column", "column cascade delete")
}

// DeleteColumnsReferencingTable removes reference columns in other tables that
// point at a table being deleted
func (r *SchemaRepository) DeleteColumnsReferencingTable(ctx context.Context, tx *sql.Tx, tableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM columns WHERE reference_table_id = ?`, tableID)
	return translateWriteError(err, "Column", "reference column cascade delete")
}

// DeleteColumnsReferencingLinkTable removes reference columns bound to a link
// table being deleted
func (r *SchemaRepository) DeleteColumnsReferencingLinkTable(ctx context.Context, tx *sql.Tx, linkTableID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM columns WHERE reference_link_table_id = ?`, linkTableID)
	return translateWriteError(err, "Column", "link reference column cascade delete")
}

// ClearEnumBindings nulls out the enum binding of columns whose enum is being
// deleted. Existing record data is not re-validated retroactively.
func (r *SchemaRepository) ClearEnumBindings(ctx context.Context, tx *sql.Tx, enumID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `UPDATE columns SET enum_id = NULL, updated_at = NOW() WHERE enum_id = ?`, enumID)
	return translateWriteError(err, "Column", "enum binding clear")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
