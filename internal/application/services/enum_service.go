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

// EnumService manages named closed value sets and their bindings
type EnumService struct {
	enums     *persistence.EnumRepository
	schemas   *persistence.SchemaRepository
	txManager *persistence.TransactionManager
	outbox    *OutboxService
}

// NewEnumService creates a new EnumService
func NewEnumService(enums *persistence.EnumRepository, schemas *persistence.SchemaRepository, txManager *persistence.TransactionManager, outbox *OutboxService) *EnumService {
	return &EnumService{enums: enums, schemas: schemas, txManager: txManager, outbox: outbox}
}

// CreateEnum defines a new enum with its initial values
func (es *EnumService) CreateEnum(ctx context.Context, name string, values []string) (*models.Enum, error) {
	if name == "" {
		return nil, apperr.NewValidationError("name", "is required")
	}
	existing, err := es.enums.GetEnumByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check enum name", err)
	}
	if existing != nil {
		return nil, apperr.NewConflictError("enum", "name", name)
	}

	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			return nil, apperr.NewValidationError("values", "empty value is not allowed")
		}
		if seen[v] {
			return nil, apperr.NewValidationError("values", fmt.Sprintf("duplicate value %q", v))
		}
		seen[v] = true
	}

	e := &models.Enum{Name: name}
	err = es.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := es.enums.CreateEnum(ctx, tx, e); err != nil {
			return err
		}
		for _, v := range values {
			ev := models.EnumValue{EnumID: e.ID, Value: v}
			if err := es.enums.AddValue(ctx, tx, &ev); err != nil {
				return err
			}
			e.Values = append(e.Values, ev)
		}
		return es.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionCreate, Enum: e.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEnum returns an enum with its values
func (es *EnumService) GetEnum(ctx context.Context, id int64) (*models.Enum, error) {
	e, err := es.enums.GetEnum(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("load enum", err)
	}
	if e == nil {
		return nil, apperr.NewNotFoundError("enum", fmt.Sprintf("%d", id))
	}
	return e, nil
}

// ListEnums returns all enums with their values
func (es *EnumService) ListEnums(ctx context.Context) ([]models.Enum, error) {
	enums, err := es.enums.ListEnums(ctx)
	if err != nil {
		return nil, apperr.NewPersistenceError("list enums", err)
	}
	return enums, nil
}

// UpdateEnum renames an enum
func (es *EnumService) UpdateEnum(ctx context.Context, id int64, name string) (*models.Enum, error) {
	e, err := es.GetEnum(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" || name == e.Name {
		return e, nil
	}
	existing, err := es.enums.GetEnumByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check enum name", err)
	}
	if existing != nil && existing.ID != id {
		return nil, apperr.NewConflictError("enum", "name", name)
	}

	e.Name = name
	err = es.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := es.enums.UpdateEnum(ctx, tx, e); err != nil {
			return err
		}
		return es.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, Enum: e.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEnum removes an enum, its values, and clears every column binding
// pointing at it. Columns left without a binding fail validation until
// rebound, which surfaces the dangling schema instead of hiding it.
func (es *EnumService) DeleteEnum(ctx context.Context, id int64) error {
	e, err := es.GetEnum(ctx, id)
	if err != nil {
		return err
	}

	return es.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := es.enums.DeleteValuesOfEnum(ctx, tx, id); err != nil {
			return err
		}
		if err := es.schemas.ClearEnumBindings(ctx, tx, id); err != nil {
			return err
		}
		if err := es.enums.DeleteEnum(ctx, tx, id); err != nil {
			return err
		}
		return es.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionDelete, Enum: e.Name,
		})
	})
}

// AddValue appends a value to an enum
func (es *EnumService) AddValue(ctx context.Context, enumID int64, value string) (*models.EnumValue, error) {
	e, err := es.GetEnum(ctx, enumID)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, apperr.NewValidationError("value", "is required")
	}
	if e.ValueSet()[value] {
		return nil, apperr.NewConflictError("enum_value", "value", value)
	}

	ev := &models.EnumValue{EnumID: enumID, Value: value}
	err = es.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := es.enums.AddValue(ctx, tx, ev); err != nil {
			return err
		}
		return es.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, Enum: e.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// DeleteValue removes one value from an enum. Records already holding the
// value keep it; they fail validation on their next write.
func (es *EnumService) DeleteValue(ctx context.Context, enumID, valueID int64) error {
	e, err := es.GetEnum(ctx, enumID)
	if err != nil {
		return err
	}
	found := false
	for _, v := range e.Values {
		if v.ID == valueID {
			found = true
			break
		}
	}
	if !found {
		return apperr.NewNotFoundError("enum_value", fmt.Sprintf("%d", valueID))
	}

	return es.txManager.WithTransaction(func(tx *sql.Tx) error {
		if err := es.enums.DeleteValue(ctx, tx, valueID); err != nil {
			return err
		}
		return es.outbox.EnqueueEventTx(ctx, tx, events.SchemaUpdated, events.ChangePayload{
			Scope: events.ScopeSchema, Action: events.ActionUpdate, Enum: e.Name,
		})
	})
}
