package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
)

// LinkService manages link tables, their edge attribute columns, and the
// edges themselves. Edge writes arrive two ways: directly through the link
// record operations, or declaratively through Reconcile, which converges
// the stored edge set of a record onto the desired set from a payload.
type LinkService struct {
	links     *persistence.LinkRepository
	schemas   *persistence.SchemaRepository
	records   *persistence.RecordRepository
	validator *ValidationService
	txManager *persistence.TransactionManager
	outbox    *OutboxService
}

// NewLinkService creates a new LinkService
func NewLinkService(
	links *persistence.LinkRepository,
	schemas *persistence.SchemaRepository,
	records *persistence.RecordRepository,
	validator *ValidationService,
	txManager *persistence.TransactionManager,
	outbox *OutboxService,
) *LinkService {
	return &LinkService{
		links:     links,
		schemas:   schemas,
		records:   records,
		validator: validator,
		txManager: txManager,
		outbox:    outbox,
	}
}

// CreateLinkTable defines a new many-to-many relationship type between two tables
func (ls *LinkService) CreateLinkTable(ctx context.Context, name string, fromTableID, toTableID int64) (*models.LinkTable, error) {
	if name == "" {
		return nil, apperr.NewValidationError("name", "is required")
	}
	for _, id := range []int64{fromTableID, toTableID} {
		t, err := ls.schemas.GetTable(ctx, id)
		if err != nil {
			return nil, apperr.NewPersistenceError("load table", err)
		}
		if t == nil {
			return nil, apperr.NewNotFoundError("table", fmt.Sprintf("%d", id))
		}
	}
	existing, err := ls.links.GetLinkTableByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check link table name", err)
	}
	if existing != nil {
		return nil, apperr.NewConflictError("link_table", "name", name)
	}

	lt := &models.LinkTable{Name: name, FromTableID: fromTableID, ToTableID: toTableID}
	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.CreateLinkTable(ctx, tx, lt); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionCreate, LinkTable: lt.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🔗 Created link table %q (%d → %d)", lt.Name, fromTableID, toTableID)
	return lt, nil
}

// GetLinkTable returns a link table with its columns
func (ls *LinkService) GetLinkTable(ctx context.Context, id int64) (*models.LinkTable, error) {
	lt, err := ls.loadLinkTable(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load link table", err)
	}
	if lt == nil {
		return nil, apperr.NewNotFoundError("link_table", fmt.Sprintf("%d", id))
	}
	return lt, nil
}

// ListLinkTables returns all link tables
func (ls *LinkService) ListLinkTables(ctx context.Context) ([]models.LinkTable, error) {
	lts, err := ls.links.ListLinkTables(ctx)
	if err != nil {
		return nil, apperr.NewPersistenceError("list link tables", err)
	}
	return lts, nil
}

// UpdateLinkTable renames a link table
func (ls *LinkService) UpdateLinkTable(ctx context.Context, id int64, name string) (*models.LinkTable, error) {
	lt, err := ls.GetLinkTable(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" || name == lt.Name {
		return lt, nil
	}
	existing, err := ls.links.GetLinkTableByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check link table name", err)
	}
	if existing != nil && existing.ID != id {
		return nil, apperr.NewConflictError("link_table", "name", name)
	}

	lt.Name = name
	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.UpdateLinkTable(ctx, tx, lt); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, LinkTable: lt.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return lt, nil
}

// DeleteLinkTable removes a link table, its columns, its edges, and every
// table column bound to it.
func (ls *LinkService) DeleteLinkTable(ctx context.Context, id int64) error {
	lt, err := ls.GetLinkTable(ctx, id)
	if err != nil {
		return err
	}

	return ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.DeleteLinkRecordsOfLinkTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ls.links.DeleteLinkColumnsOfLinkTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ls.schemas.DeleteColumnsReferencingLinkTable(ctx, tx, id); err != nil {
			return err
		}
		if err := ls.links.DeleteLinkTable(ctx, tx, id); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, LinkTable: lt.Name,
		})
	})
}

// CreateLinkColumn adds an edge attribute column to a link table
func (ls *LinkService) CreateLinkColumn(ctx context.Context, linkTableID int64, col *models.LinkColumn) (*models.LinkColumn, error) {
	lt, err := ls.GetLinkTable(ctx, linkTableID)
	if err != nil {
		return nil, err
	}

	if errs := ls.checkLinkColumnConfig(ctx, lt, col, 0); len(errs) > 0 {
		return nil, apperr.NewValidationErrors(errs)
	}

	col.LinkTableID = linkTableID
	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.CreateLinkColumn(ctx, tx, col); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, LinkTable: lt.Name, Column: col.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// UpdateLinkColumn changes an edge attribute column's definition
func (ls *LinkService) UpdateLinkColumn(ctx context.Context, id int64, col *models.LinkColumn) (*models.LinkColumn, error) {
	current, err := ls.links.GetLinkColumn(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load link column", err)
	}
	if current == nil {
		return nil, apperr.NewNotFoundError("link_column", fmt.Sprintf("%d", id))
	}
	lt, err := ls.GetLinkTable(ctx, current.LinkTableID)
	if err != nil {
		return nil, err
	}

	col.ID = id
	col.LinkTableID = current.LinkTableID
	if errs := ls.checkLinkColumnConfig(ctx, lt, col, id); len(errs) > 0 {
		return nil, apperr.NewValidationErrors(errs)
	}

	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.UpdateLinkColumn(ctx, tx, col); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, LinkTable: lt.Name, Column: col.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// DeleteLinkColumn removes an edge attribute column
func (ls *LinkService) DeleteLinkColumn(ctx context.Context, id int64) error {
	col, err := ls.links.GetLinkColumn(ctx, id)
	if err != nil {
		return apperr.NewPersistenceError("load link column", err)
	}
	if col == nil {
		return apperr.NewNotFoundError("link_column", fmt.Sprintf("%d", id))
	}
	lt, err := ls.GetLinkTable(ctx, col.LinkTableID)
	if err != nil {
		return err
	}

	return ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.DeleteLinkColumn(ctx, tx, id); err != nil {
			return err
		}
		return ls.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, LinkTable: lt.Name, Column: col.Name,
		})
	})
}

// checkLinkColumnConfig validates an edge column definition in full
func (ls *LinkService) checkLinkColumnConfig(ctx context.Context, lt *models.LinkTable, col *models.LinkColumn, excludeID int64) []apperr.FieldError {
	var errs []apperr.FieldError
	if col.Name == "" {
		errs = append(errs, apperr.FieldError{Field: "name", Message: "is required"})
	}
	if !col.DataType.Valid() {
		errs = append(errs, apperr.FieldError{Field: "data_type", Message: fmt.Sprintf("unknown data type %q", col.DataType)})
	}
	if col.DataType == models.TypeReference {
		errs = append(errs, apperr.FieldError{Field: "data_type", Message: "reference columns are not supported on link tables"})
	}
	if col.DataType.IsEnumLike() {
		if col.EnumID == nil {
			errs = append(errs, apperr.FieldError{Field: "enum_id", Message: "is required for enum columns"})
		} else if e, err := ls.validator.enums.GetEnum(ctx, *col.EnumID); err == nil && e == nil {
			errs = append(errs, apperr.FieldError{Field: "enum_id", Message: fmt.Sprintf("enum %d not found", *col.EnumID)})
		}
	} else if col.EnumID != nil {
		errs = append(errs, apperr.FieldError{Field: "enum_id", Message: "only enum columns take an enum binding"})
	}
	for i := range lt.Columns {
		if lt.Columns[i].Name == col.Name && lt.Columns[i].ID != excludeID {
			errs = append(errs, apperr.FieldError{Field: "name", Message: fmt.Sprintf("column %q already exists", col.Name)})
			break
		}
	}
	return errs
}

// CreateLinkRecord inserts one edge directly, validating endpoints and attributes
func (ls *LinkService) CreateLinkRecord(ctx context.Context, linkTableID, fromRecordID, toRecordID int64, data map[string]interface{}) (*models.LinkRecord, error) {
	lt, err := ls.GetLinkTable(ctx, linkTableID)
	if err != nil {
		return nil, err
	}

	violations, err := ls.checkEndpoints(ctx, lt, fromRecordID, toRecordID)
	if err != nil {
		return nil, err
	}
	attrs, attrErrs, err := ls.validator.ValidateLinkData(ctx, lt, data)
	if err != nil {
		return nil, err
	}
	violations = append(violations, attrErrs...)
	if len(violations) > 0 {
		return nil, apperr.NewValidationErrors(violations)
	}

	lr := &models.LinkRecord{LinkTableID: linkTableID, FromRecordID: fromRecordID, ToRecordID: toRecordID, Data: attrs}
	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.InsertLinkRecord(ctx, tx, lr); err != nil {
			return err
		}
		return ls.enqueueEdgeChange(ctx, tx, lt, fromRecordID, events.ActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// GetLinkRecord returns one edge
func (ls *LinkService) GetLinkRecord(ctx context.Context, id int64) (*models.LinkRecord, error) {
	lr, err := ls.links.GetLinkRecord(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load link record", err)
	}
	if lr == nil {
		return nil, apperr.NewNotFoundError("link_record", fmt.Sprintf("%d", id))
	}
	return lr, nil
}

// ListLinkRecords returns all edges of a link table
func (ls *LinkService) ListLinkRecords(ctx context.Context, linkTableID int64) ([]models.LinkRecord, error) {
	if _, err := ls.GetLinkTable(ctx, linkTableID); err != nil {
		return nil, err
	}
	lrs, err := ls.links.ListLinkRecords(ctx, linkTableID)
	if err != nil {
		return nil, apperr.NewPersistenceError("list link records", err)
	}
	return lrs, nil
}

// UpdateLinkRecord rewrites one edge's attributes
func (ls *LinkService) UpdateLinkRecord(ctx context.Context, id int64, data map[string]interface{}) (*models.LinkRecord, error) {
	lr, err := ls.GetLinkRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	lt, err := ls.GetLinkTable(ctx, lr.LinkTableID)
	if err != nil {
		return nil, err
	}

	attrs, attrErrs, err := ls.validator.ValidateLinkData(ctx, lt, data)
	if err != nil {
		return nil, err
	}
	if len(attrErrs) > 0 {
		return nil, apperr.NewValidationErrors(attrErrs)
	}

	lr.Data = attrs
	err = ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.UpdateLinkRecord(ctx, tx, lr); err != nil {
			return err
		}
		return ls.enqueueEdgeChange(ctx, tx, lt, lr.FromRecordID, events.ActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// DeleteLinkRecord removes one edge
func (ls *LinkService) DeleteLinkRecord(ctx context.Context, id int64) error {
	lr, err := ls.GetLinkRecord(ctx, id)
	if err != nil {
		return err
	}
	lt, err := ls.GetLinkTable(ctx, lr.LinkTableID)
	if err != nil {
		return err
	}

	return ls.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := ls.links.DeleteLinkRecord(ctx, tx, id); err != nil {
			return err
		}
		return ls.enqueueEdgeChange(ctx, tx, lt, lr.FromRecordID, events.ActionUpdate)
	})
}

// Reconcile converges the stored edges of a record onto the desired edge
// sets produced by validation, one link-bound column at a time, all inside
// a single transaction. Existing edges absent from the desired set are
// removed, new targets are inserted, and surviving edges are rewritten only
// when their attributes actually differ.
func (ls *LinkService) Reconcile(ctx context.Context, table *models.Table, recordID int64, desired map[string][]LinkEntry) error {
	if len(desired) == 0 {
		return nil
	}

	byName := make(map[string]*models.Column, len(table.Columns))
	for i := range table.Columns {
		byName[table.Columns[i].Name] = &table.Columns[i]
	}

	return ls.txManager.WithRetry(func(tx *sql.Tx) error {
		for name, entries := range desired {
			col, ok := byName[name]
			if !ok || col.RefKind() != models.RefManyToMany {
				return apperr.NewValidationError(name+LinkSuffix, "column is not bound to a link table")
			}
			if err := ls.reconcileColumn(ctx, tx, *col.ReferenceLinkTableID, recordID, entries); err != nil {
				return err
			}
		}
		return nil
	}, 3)
}

// reconcileColumn applies the set difference for one link table
func (ls *LinkService) reconcileColumn(ctx context.Context, tx *sql.Tx, linkTableID, fromRecordID int64, entries []LinkEntry) error {
	existing, err := ls.links.ListEdgesFrom(ctx, tx, linkTableID, fromRecordID)
	if err != nil {
		return apperr.NewPersistenceError("lock edges", err)
	}

	current := make(map[int64]*models.LinkRecord, len(existing))
	for i := range existing {
		current[existing[i].ToRecordID] = &existing[i]
	}

	wanted := make(map[int64]LinkEntry, len(entries))
	for _, e := range entries {
		wanted[e.ToRecordID] = e
	}

	for toID, edge := range current {
		entry, keep := wanted[toID]
		if !keep {
			if err := ls.links.DeleteLinkRecord(ctx, tx, edge.ID); err != nil {
				return apperr.NewPersistenceError("remove edge", err)
			}
			continue
		}
		if !attrsEqual(edge.Data, entry.Attrs) {
			edge.Data = entry.Attrs
			if err := ls.links.UpdateLinkRecord(ctx, tx, edge); err != nil {
				return apperr.NewPersistenceError("rewrite edge", err)
			}
		}
	}

	for toID, entry := range wanted {
		if _, exists := current[toID]; exists {
			continue
		}
		lr := &models.LinkRecord{
			LinkTableID:  linkTableID,
			FromRecordID: fromRecordID,
			ToRecordID:   toID,
			Data:         entry.Attrs,
		}
		if err := ls.links.InsertLinkRecord(ctx, tx, lr); err != nil {
			return apperr.NewPersistenceError("insert edge", err)
		}
	}

	return nil
}

// checkEndpoints verifies both edge endpoints live in the link table's tables
func (ls *LinkService) checkEndpoints(ctx context.Context, lt *models.LinkTable, fromRecordID, toRecordID int64) ([]apperr.FieldError, error) {
	var errs []apperr.FieldError
	fromOK, err := ls.records.ExistsInTable(ctx, nil, lt.FromTableID, fromRecordID)
	if err != nil {
		return nil, apperr.NewPersistenceError("check edge source", err)
	}
	if !fromOK {
		errs = append(errs, apperr.FieldError{Field: "from_record_id", Message: fmt.Sprintf("record %d not found in source table", fromRecordID)})
	}
	toOK, err := ls.records.ExistsInTable(ctx, nil, lt.ToTableID, toRecordID)
	if err != nil {
		return nil, apperr.NewPersistenceError("check edge target", err)
	}
	if !toOK {
		errs = append(errs, apperr.FieldError{Field: "to_record_id", Message: fmt.Sprintf("record %d not found in target table", toRecordID)})
	}
	return errs, nil
}

// enqueueEdgeChange emits a data event for the edge's source record so
// downstream consumers refresh its rendered display.
func (ls *LinkService) enqueueEdgeChange(ctx context.Context, tx *sql.Tx, lt *models.LinkTable, fromRecordID int64, action string) error {
	fromTable, err := ls.schemas.GetTable(ctx, lt.FromTableID)
	if err != nil {
		return err
	}
	name := ""
	if fromTable != nil {
		name = fromTable.Name
	}
	return ls.outbox.EnqueueEventTx(ctx, tx, events.RecordUpdated, events.ChangePayload{
		Scope:     events.ScopeData,
		Action:    action,
		Table:     name,
		LinkTable: lt.Name,
		TableID:   lt.FromTableID,
		RecordID:  fromRecordID,
	})
}

// attrsEqual compares edge attribute maps by canonical JSON, which
// normalizes the numeric type differences introduced by round-tripping
// through the data column.
func attrsEqual(a, b map[string]interface{}) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// loadLinkTable fetches a link table with its columns
func (ls *LinkService) loadLinkTable(ctx context.Context, id int64) (*models.LinkTable, error) {
	lt, err := ls.links.GetLinkTable(ctx, id)
	if err != nil || lt == nil {
		return lt, err
	}
	cols, err := ls.links.ListLinkColumns(ctx, id)
	if err != nil {
		return nil, err
	}
	lt.Columns = cols
	return lt, nil
}
