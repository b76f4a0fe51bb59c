package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
)

// SchemaService is the registry of runtime-defined tables and columns.
// Every mutation commits together with the outbox event announcing it, so
// subscribers and the search synchronizer converge on schema changes.
type SchemaService struct {
	schemas   *persistence.SchemaRepository
	links     *persistence.LinkRepository
	enums     *persistence.EnumRepository
	records   *persistence.RecordRepository
	txManager *persistence.TransactionManager
	outbox    *OutboxService
}

// NewSchemaService creates a new SchemaService
func NewSchemaService(
	schemas *persistence.SchemaRepository,
	links *persistence.LinkRepository,
	enums *persistence.EnumRepository,
	records *persistence.RecordRepository,
	txManager *persistence.TransactionManager,
	outbox *OutboxService,
) *SchemaService {
	return &SchemaService{
		schemas:   schemas,
		links:     links,
		enums:     enums,
		records:   records,
		txManager: txManager,
		outbox:    outbox,
	}
}

// CreateTable defines a new table
func (ss *SchemaService) CreateTable(ctx context.Context, t *models.Table) (*models.Table, error) {
	if t.Name == "" {
		return nil, apperr.NewValidationError("name", "is required")
	}
	existing, err := ss.schemas.GetTableByName(ctx, t.Name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check table name", err)
	}
	if existing != nil {
		return nil, apperr.NewConflictError("table", "name", t.Name)
	}

	err = ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ss.schemas.CreateTable(ctx, tx, t); err != nil {
			return err
		}
		return ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionCreate, Table: t.Name, TableID: t.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Created table %q (ID: %d)", t.Name, t.ID)
	return t, nil
}

// GetTable returns a table with its columns
func (ss *SchemaService) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	t, err := ss.loadTable(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load table", err)
	}
	if t == nil {
		return nil, apperr.NewNotFoundError("table", fmt.Sprintf("%d", id))
	}
	return t, nil
}

// GetTableByName returns a table with its columns, looked up by name
func (ss *SchemaService) GetTableByName(ctx context.Context, name string) (*models.Table, error) {
	t, err := ss.schemas.GetTableByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("load table", err)
	}
	if t == nil {
		return nil, apperr.NewNotFoundError("table", name)
	}
	t.Columns, err = ss.schemas.ListColumns(ctx, t.ID)
	if err != nil {
		return nil, apperr.NewPersistenceError("load columns", err)
	}
	return t, nil
}

// ListTables returns all tables with their columns
func (ss *SchemaService) ListTables(ctx context.Context) ([]models.Table, error) {
	tables, err := ss.schemas.ListTables(ctx)
	if err != nil {
		return nil, apperr.NewPersistenceError("list tables", err)
	}
	for i := range tables {
		tables[i].Columns, err = ss.schemas.ListColumns(ctx, tables[i].ID)
		if err != nil {
			return nil, apperr.NewPersistenceError("load columns", err)
		}
	}
	return tables, nil
}

// UpdateTable changes a table's name or display formats. A rename or a
// display format change also schedules a reindex, since rendered display
// values live in the search index.
func (ss *SchemaService) UpdateTable(ctx context.Context, id int64, upd *models.Table) (*models.Table, error) {
	t, err := ss.GetTable(ctx, id)
	if err != nil {
		return nil, err
	}

	prevName := t.Name
	renamed := upd.Name != "" && upd.Name != t.Name
	if renamed {
		existing, err := ss.schemas.GetTableByName(ctx, upd.Name)
		if err != nil {
			return nil, apperr.NewPersistenceError("check table name", err)
		}
		if existing != nil && existing.ID != id {
			return nil, apperr.NewConflictError("table", "name", upd.Name)
		}
		t.Name = upd.Name
	}
	formatChanged := upd.DisplayFormat != t.DisplayFormat || upd.DisplayFormatSecondary != t.DisplayFormatSecondary
	t.DisplayFormat = upd.DisplayFormat
	t.DisplayFormatSecondary = upd.DisplayFormatSecondary

	err = ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ss.schemas.UpdateTable(ctx, tx, t); err != nil {
			return err
		}
		if err := ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID,
		}); err != nil {
			return err
		}
		if renamed || formatChanged {
			payload := events.ChangePayload{
				Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID,
			}
			if renamed {
				payload.PrevTable = prevName
			}
			return ss.outbox.EnqueueEventTx(ctx, tx, events.TableReindex, payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTable removes a table and everything hanging off it: its records,
// its columns, every link table touching it with all its edges, and every
// column of other tables referencing it.
func (ss *SchemaService) DeleteTable(ctx context.Context, id int64) error {
	t, err := ss.GetTable(ctx, id)
	if err != nil {
		return err
	}

	linked, err := ss.links.ListLinkTablesForTable(ctx, id)
	if err != nil {
		return apperr.NewPersistenceError("list link tables", err)
	}

	return ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		for _, lt := range linked {
			if err := ss.links.DeleteLinkRecordsOfLinkTable(ctx, tx, lt.ID); err != nil {
				return err
			}
			if err := ss.links.DeleteLinkColumnsOfLinkTable(ctx, tx, lt.ID); err != nil {
				return err
			}
			if err := ss.schemas.DeleteColumnsReferencingLinkTable(ctx, tx, lt.ID); err != nil {
				return err
			}
			if err := ss.links.DeleteLinkTable(ctx, tx, lt.ID); err != nil {
				return err
			}
		}
		if err := ss.links.DeleteEdgesOfTableRecords(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.records.DeleteByTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.schemas.DeleteColumnsOfTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.schemas.DeleteColumnsReferencingTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.schemas.DeleteTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, Table: t.Name, TableID: t.ID,
		}); err != nil {
			return err
		}
		return ss.outbox.EnqueueEventTx(ctx, tx, events.TableDropped, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, Table: t.Name, TableID: t.ID,
		})
	})
}

// CreateColumn adds a column to a table
func (ss *SchemaService) CreateColumn(ctx context.Context, tableID int64, col *models.Column) (*models.Column, error) {
	t, err := ss.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if errs := ss.checkColumnConfig(ctx, t, col, 0); len(errs) > 0 {
		return nil, apperr.NewValidationErrors(errs)
	}

	col.TableID = tableID
	err = ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ss.schemas.CreateColumn(ctx, tx, col); err != nil {
			return err
		}
		if err := ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionCreate, Table: t.Name, TableID: t.ID, Column: col.Name,
		}); err != nil {
			return err
		}
		if col.Searchable {
			return ss.outbox.EnqueueEventTx(ctx, tx, events.TableReindex, events.ChangePayload{
				Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// GetColumn returns one column
func (ss *SchemaService) GetColumn(ctx context.Context, id int64) (*models.Column, error) {
	col, err := ss.schemas.GetColumn(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load column", err)
	}
	if col == nil {
		return nil, apperr.NewNotFoundError("column", fmt.Sprintf("%d", id))
	}
	return col, nil
}

// UpdateColumn changes a column's definition. Touching a searchable column
// either way schedules a reindex so the index mapping follows the schema.
func (ss *SchemaService) UpdateColumn(ctx context.Context, id int64, col *models.Column) (*models.Column, error) {
	current, err := ss.GetColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := ss.GetTable(ctx, current.TableID)
	if err != nil {
		return nil, err
	}

	col.ID = id
	col.TableID = current.TableID
	if errs := ss.checkColumnConfig(ctx, t, col, id); len(errs) > 0 {
		return nil, apperr.NewValidationErrors(errs)
	}

	searchTouched := current.Searchable || col.Searchable
	err = ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ss.schemas.UpdateColumn(ctx, tx, col); err != nil {
			return err
		}
		if err := ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID, Column: col.Name,
		}); err != nil {
			return err
		}
		if searchTouched {
			return ss.outbox.EnqueueEventTx(ctx, tx, events.TableReindex, events.ChangePayload{
				Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// DeleteColumn removes a column from its table
func (ss *SchemaService) DeleteColumn(ctx context.Context, id int64) error {
	col, err := ss.GetColumn(ctx, id)
	if err != nil {
		return err
	}
	t, err := ss.GetTable(ctx, col.TableID)
	if err != nil {
		return err
	}

	return ss.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ss.schemas.DeleteColumn(ctx, tx, id); err != nil {
			return err
		}
		if err := ss.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, Table: t.Name, TableID: t.ID, Column: col.Name,
		}); err != nil {
			return err
		}
		if col.Searchable {
			return ss.outbox.EnqueueEventTx(ctx, tx, events.TableReindex, events.ChangePayload{
				Scope: events.ScopeSchema, Action: events.ActionUpdate, Table: t.Name, TableID: t.ID,
			})
		}
		return nil
	})
}

// checkColumnConfig validates a column definition in full, returning every
// configuration problem at once.
func (ss *SchemaService) checkColumnConfig(ctx context.Context, t *models.Table, col *models.Column, excludeID int64) []apperr.FieldError {
	var errs []apperr.FieldError

	if col.Name == "" {
		errs = append(errs, apperr.FieldError{Field: "name", Message: "is required"})
	}
	if !col.DataType.Valid() {
		errs = append(errs, apperr.FieldError{Field: "data_type", Message: fmt.Sprintf("unknown data type %q", col.DataType)})
	}
	if col.Unique && col.IsList {
		errs = append(errs, apperr.FieldError{Field: "unique", Message: "unique is not supported on list columns"})
	}

	if col.DataType.IsEnumLike() {
		if col.EnumID == nil {
			errs = append(errs, apperr.FieldError{Field: "enum_id", Message: "is required for enum columns"})
		} else if e, err := ss.enums.GetEnum(ctx, *col.EnumID); err == nil && e == nil {
			errs = append(errs, apperr.FieldError{Field: "enum_id", Message: fmt.Sprintf("enum %d not found", *col.EnumID)})
		}
	} else if col.EnumID != nil {
		errs = append(errs, apperr.FieldError{Field: "enum_id", Message: "only enum columns take an enum binding"})
	}

	if col.DataType == models.TypeReference {
		switch {
		case col.ReferenceTableID != nil && col.ReferenceLinkTableID != nil:
			errs = append(errs, apperr.FieldError{Field: "data_type", Message: "reference column takes a table binding or a link table binding, not both"})
		case col.ReferenceTableID != nil:
			if rt, err := ss.schemas.GetTable(ctx, *col.ReferenceTableID); err == nil && rt == nil {
				errs = append(errs, apperr.FieldError{Field: "reference_table_id", Message: fmt.Sprintf("table %d not found", *col.ReferenceTableID)})
			}
		case col.ReferenceLinkTableID != nil:
			lt, err := ss.links.GetLinkTable(ctx, *col.ReferenceLinkTableID)
			if err == nil && lt == nil {
				errs = append(errs, apperr.FieldError{Field: "reference_link_table_id", Message: fmt.Sprintf("link table %d not found", *col.ReferenceLinkTableID)})
			} else if lt != nil && lt.FromTableID != t.ID {
				errs = append(errs, apperr.FieldError{Field: "reference_link_table_id", Message: fmt.Sprintf("link table %q does not start at table %q", lt.Name, t.Name)})
			}
		default:
			errs = append(errs, apperr.FieldError{Field: "data_type", Message: "reference column needs a table or link table binding"})
		}
	} else if col.ReferenceTableID != nil || col.ReferenceLinkTableID != nil {
		errs = append(errs, apperr.FieldError{Field: "data_type", Message: "only reference columns take a target binding"})
	}

	for i := range t.Columns {
		if t.Columns[i].Name == col.Name && t.Columns[i].ID != excludeID {
			errs = append(errs, apperr.FieldError{Field: "name", Message: fmt.Sprintf("column %q already exists", col.Name)})
			break
		}
	}

	return errs
}

// loadTable fetches a table with its columns
func (ss *SchemaService) loadTable(ctx context.Context, id int64) (*models.Table, error) {
	t, err := ss.schemas.GetTable(ctx, id)
	if err != nil || t == nil {
		return t, err
	}
	t.Columns, err = ss.schemas.ListColumns(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}
