package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
)

// RecordView is a record together with its rendered display values
type RecordView struct {
	*models.Record
	DisplayValue          string `json:"display_value"`
	DisplayValueSecondary string `json:"display_value_secondary,omitempty"`
}

// RecordService orchestrates record writes: batch validation, persisting the
// record atomically with its outbox event, then converging link edges.
type RecordService struct {
	schemas   *SchemaService
	records   *persistence.RecordRepository
	linkSvc   *LinkService
	validator *ValidationService
	display   *DisplayService
	txManager *persistence.TransactionManager
	outbox    *OutboxService
}

// NewRecordService creates a new RecordService
func NewRecordService(
	schemas *SchemaService,
	records *persistence.RecordRepository,
	linkSvc *LinkService,
	validator *ValidationService,
	display *DisplayService,
	txManager *persistence.TransactionManager,
	outbox *OutboxService,
) *RecordService {
	return &RecordService{
		schemas:   schemas,
		records:   records,
		linkSvc:   linkSvc,
		validator: validator,
		display:   display,
		txManager: txManager,
		outbox:    outbox,
	}
}

// Create validates and inserts a record into the named table. The record and
// its change event commit together; link edges converge right after, in
// their own transaction. A reconciliation failure after the record committed
// surfaces to the caller but does not undo the insert.
func (rs *RecordService) Create(ctx context.Context, tableName string, payload map[string]interface{}) (*RecordView, error) {
	table, err := rs.schemas.GetTableByName(ctx, tableName)
	if err != nil {
		return nil, err
	}

	validated, violations, err := rs.validator.ValidateRecord(ctx, table, payload, 0)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, apperr.NewValidationErrors(violations)
	}

	rec := &models.Record{TableID: table.ID, Data: validated.Data}
	err = rs.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := rs.validator.RecheckUnique(ctx, tx, table, validated.Data, 0); err != nil {
			return err
		}
		if err := rs.records.Insert(ctx, tx, rec); err != nil {
			return err
		}
		return rs.outbox.EnqueueEventTx(ctx, tx, events.RecordCreated, events.ChangePayload{
			Scope: events.ScopeData, Action: events.ActionCreate, Table: table.Name, TableID: table.ID, RecordID: rec.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := rs.linkSvc.Reconcile(ctx, table, rec.ID, validated.Links); err != nil {
		return nil, err
	}

	return rs.view(ctx, table, rec), nil
}

// Get returns one record of the named table with its display values
func (rs *RecordService) Get(ctx context.Context, tableName string, id int64) (*RecordView, error) {
	table, rec, err := rs.load(ctx, tableName, id)
	if err != nil {
		return nil, err
	}
	return rs.view(ctx, table, rec), nil
}

// List returns all records of the named table with their display values
func (rs *RecordService) List(ctx context.Context, tableName string) ([]RecordView, error) {
	table, err := rs.schemas.GetTableByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	recs, err := rs.records.ListByTable(ctx, table.ID)
	if err != nil {
		return nil, apperr.NewPersistenceError("list records", err)
	}
	views := make([]RecordView, 0, len(recs))
	for i := range recs {
		views = append(views, *rs.view(ctx, table, &recs[i]))
	}
	return views, nil
}

// Update validates the payload as the record's full desired state and
// rewrites it. Uniqueness checks skip the record itself, so writing back an
// unchanged unique value is not a conflict.
func (rs *RecordService) Update(ctx context.Context, tableName string, id int64, payload map[string]interface{}) (*RecordView, error) {
	table, rec, err := rs.load(ctx, tableName, id)
	if err != nil {
		return nil, err
	}

	validated, violations, err := rs.validator.ValidateRecord(ctx, table, payload, id)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, apperr.NewValidationErrors(violations)
	}

	rec.Data = validated.Data
	err = rs.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := rs.validator.RecheckUnique(ctx, tx, table, validated.Data, id); err != nil {
			return err
		}
		if err := rs.records.Update(ctx, tx, rec); err != nil {
			return err
		}
		return rs.outbox.EnqueueEventTx(ctx, tx, events.RecordUpdated, events.ChangePayload{
			Scope: events.ScopeData, Action: events.ActionUpdate, Table: table.Name, TableID: table.ID, RecordID: rec.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := rs.linkSvc.Reconcile(ctx, table, rec.ID, validated.Links); err != nil {
		return nil, err
	}

	return rs.view(ctx, table, rec), nil
}

// Delete removes a record and every edge touching it
func (rs *RecordService) Delete(ctx context.Context, tableName string, id int64) error {
	table, _, err := rs.load(ctx, tableName, id)
	if err != nil {
		return err
	}

	return rs.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := rs.linkSvc.links.DeleteEdgesOfRecord(ctx, tx, id); err != nil {
			return err
		}
		if err := rs.records.Delete(ctx, tx, id); err != nil {
			return err
		}
		return rs.outbox.EnqueueEventTx(ctx, tx, events.RecordDeleted, events.ChangePayload{
			Scope: events.ScopeData, Action: events.ActionDelete, Table: table.Name, TableID: table.ID, RecordID: id,
		})
	})
}

// load fetches the table (with columns) and the record, scoped to the table
func (rs *RecordService) load(ctx context.Context, tableName string, id int64) (*models.Table, *models.Record, error) {
	table, err := rs.schemas.GetTableByName(ctx, tableName)
	if err != nil {
		return nil, nil, err
	}
	rec, err := rs.records.GetInTable(ctx, table.ID, id)
	if err != nil {
		return nil, nil, apperr.NewPersistenceError("load record", err)
	}
	if rec == nil {
		return nil, nil, apperr.NewNotFoundError("record", fmt.Sprintf("%s/%d", tableName, id))
	}
	return table, rec, nil
}

// view attaches rendered display values to a record
func (rs *RecordService) view(ctx context.Context, table *models.Table, rec *models.Record) *RecordView {
	primary, secondary := rs.display.Render(ctx, table, rec)
	return &RecordView{Record: rec, DisplayValue: primary, DisplayValueSecondary: secondary}
}
