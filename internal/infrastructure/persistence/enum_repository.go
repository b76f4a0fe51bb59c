package persistence

import (
	"context"
	"database/sql"

	"github.com/gridbase/gridbase/internal/domain/models"
)

// EnumRepository handles storage of enums and their values
type EnumRepository struct {
	db *sql.DB
}

// NewEnumRepository creates a new EnumRepository
func NewEnumRepository(db *sql.DB) *EnumRepository {
	return &EnumRepository{db: db}
}

// GetExecutor returns the transaction if present, or the DB connection
func (r *EnumRepository) GetExecutor(tx *sql.Tx) Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// CreateEnum inserts an enum row and fills in its generated id
func (r *EnumRepository) CreateEnum(ctx context.Context, tx *sql.Tx, e *models.Enum) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO enums (name, created_at, updated_at) VALUES (?, NOW(), NOW())
	`, e.Name)
	if err != nil {
		return translateWriteError(err, "Enum", "enum insert")
	}
	e.ID, err = res.LastInsertId()
	return err
}

// GetEnum fetches an enum with its values; returns nil when absent
func (r *EnumRepository) GetEnum(ctx context.Context, id int64) (*models.Enum, error) {
	var e models.Enum
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM enums WHERE id = ?
	`, id).Scan(&e.ID, &e.Name, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.Values, err = r.ListValues(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEnumByName fetches an enum with its values by name; returns nil when absent
func (r *EnumRepository) GetEnumByName(ctx context.Context, name string) (*models.Enum, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM enums WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetEnum(ctx, id)
}

// ListEnums returns every enum with its values
func (r *EnumRepository) ListEnums(ctx context.Context) ([]models.Enum, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM enums ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enums []models.Enum
	for rows.Next() {
		var e models.Enum
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		enums = append(enums, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range enums {
		enums[i].Values, err = r.ListValues(ctx, enums[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return enums, nil
}

// UpdateEnum renames an enum
func (r *EnumRepository) UpdateEnum(ctx context.Context, tx *sql.Tx, e *models.Enum) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `
		UPDATE enums SET name = ?, updated_at = NOW() WHERE id = ?
	`, e.Name, e.ID)
	return translateWriteError(err, "Enum", "enum update")
}

// DeleteEnum removes the enum row; value cascade is a separate step
func (r *EnumRepository) DeleteEnum(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM enums WHERE id = ?`, id)
	return translateWriteError(err, "Enum", "enum delete")
}

// ==================== Enum values ====================

// AddValue inserts one allowed value
func (r *EnumRepository) AddValue(ctx context.Context, tx *sql.Tx, v *models.EnumValue) error {
	res, err := r.GetExecutor(tx).ExecContext(ctx, `
		INSERT INTO enum_values (enum_id, value) VALUES (?, ?)
	`, v.EnumID, v.Value)
	if err != nil {
		return translateWriteError(err, "EnumValue", "enum value insert")
	}
	v.ID, err = res.LastInsertId()
	return err
}

// ListValues returns an enum's values in insertion order
func (r *EnumRepository) ListValues(ctx context.Context, enumID int64) ([]models.EnumValue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, enum_id, value FROM enum_values WHERE enum_id = ? ORDER BY id
	`, enumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []models.EnumValue
	for rows.Next() {
		var v models.EnumValue
		if err := rows.Scan(&v.ID, &v.EnumID, &v.Value); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DeleteValue removes one allowed value
func (r *EnumRepository) DeleteValue(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM enum_values WHERE id = ?`, id)
	return translateWriteError(err, "EnumValue", "enum value delete")
}

// DeleteValuesOfEnum removes an enum's values (cascade step)
func (r *EnumRepository) DeleteValuesOfEnum(ctx context.Context, tx *sql.Tx, enumID int64) error {
	_, err := r.GetExecutor(tx).ExecContext(ctx, `DELETE FROM enum_values WHERE enum_id = ?`, enumID)
	return translateWriteError(err, "EnumValue", "enum value cascade delete")
}
