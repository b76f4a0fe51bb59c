package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
	"github.com/gridbase/gridbase/pkg/dynval"
)

// LinkSuffix marks a payload key as a link side-channel for a reference
// column bound to a link table: "<column>__links".
const LinkSuffix = "__links"

// LinkEntry is one normalized desired edge from a link side-channel field:
// the target record plus decoded edge attributes.
type LinkEntry struct {
	ToRecordID int64
	Attrs      map[string]interface{}
}

// ValidatedRecord is the outcome of a successful batch validation: decoded
// plain-column data ready to persist, and normalized link entries per
// link-bound column awaiting reconciliation.
type ValidatedRecord struct {
	Data  map[string]interface{}
	Links map[string][]LinkEntry
}

// ValidationService checks record payloads against the live column set.
// Validation never stops at the first problem: it walks the whole payload
// and returns every violation, so clients fix submissions in one round trip.
type ValidationService struct {
	enums   *persistence.EnumRepository
	records *persistence.RecordRepository
	links   *persistence.LinkRepository
}

// NewValidationService creates a new ValidationService
func NewValidationService(enums *persistence.EnumRepository, records *persistence.RecordRepository, links *persistence.LinkRepository) *ValidationService {
	return &ValidationService{enums: enums, records: records, links: links}
}

// ValidateRecord validates a full record payload against the table's columns.
// excludeID is the record's own id on update (0 on create) so uniqueness
// checks never flag a record against itself.
//
// Returns the decoded record and the complete violation list. The error
// return is for infrastructure failures only, never for payload problems.
func (vs *ValidationService) ValidateRecord(ctx context.Context, table *models.Table, payload map[string]interface{}, excludeID int64) (*ValidatedRecord, []apperr.FieldError, error) {
	var violations []apperr.FieldError

	byName := make(map[string]*models.Column, len(table.Columns))
	for i := range table.Columns {
		byName[table.Columns[i].Name] = &table.Columns[i]
	}

	// Split the payload into plain fields and link side-channel fields
	plain := make(map[string]interface{})
	linkRaw := make(map[string]interface{})
	for key, val := range payload {
		if strings.HasSuffix(key, LinkSuffix) {
			linkRaw[strings.TrimSuffix(key, LinkSuffix)] = val
		} else {
			plain[key] = val
		}
	}

	// Required columns must be present either directly or via their
	// link side-channel
	for i := range table.Columns {
		col := &table.Columns[i]
		if !col.Required {
			continue
		}
		if v, ok := plain[col.Name]; ok && v != nil {
			continue
		}
		if _, ok := linkRaw[col.Name]; ok {
			continue
		}
		violations = append(violations, apperr.FieldError{Field: col.Name, Message: "is required"})
	}

	data := make(map[string]interface{})
	for name, raw := range plain {
		col, ok := byName[name]
		if !ok {
			violations = append(violations, apperr.FieldError{Field: name, Message: "unknown field"})
			continue
		}
		if raw == nil {
			// Explicit null clears an optional field; required-null was
			// already flagged above
			continue
		}

		val, fieldErrs, err := vs.decodeColumn(ctx, col, raw)
		if err != nil {
			return nil, nil, err
		}
		if len(fieldErrs) > 0 {
			violations = append(violations, fieldErrs...)
			continue
		}

		if col.Unique {
			uniqueErrs, err := vs.checkUnique(ctx, col, table.ID, val, excludeID)
			if err != nil {
				return nil, nil, err
			}
			if len(uniqueErrs) > 0 {
				violations = append(violations, uniqueErrs...)
				continue
			}
		}

		data[name] = val.Native()
	}

	links := make(map[string][]LinkEntry)
	for name, raw := range linkRaw {
		entries, fieldErrs, err := vs.validateLinkField(ctx, byName[name], name, raw)
		if err != nil {
			return nil, nil, err
		}
		if len(fieldErrs) > 0 {
			violations = append(violations, fieldErrs...)
			continue
		}
		links[name] = entries
	}

	if len(violations) > 0 {
		return nil, violations, nil
	}
	return &ValidatedRecord{Data: data, Links: links}, nil, nil
}

// decodeColumn type-checks one plain field value against its column
func (vs *ValidationService) decodeColumn(ctx context.Context, col *models.Column, raw interface{}) (dynval.Value, []apperr.FieldError, error) {
	if col.DataType == models.TypeReference {
		switch col.RefKind() {
		case models.RefManyToMany:
			return dynval.Value{}, []apperr.FieldError{{
				Field:   col.Name,
				Message: fmt.Sprintf("is link-table bound, use %s%s", col.Name, LinkSuffix),
			}}, nil
		case models.RefNone:
			return dynval.Value{}, []apperr.FieldError{{Field: col.Name, Message: "reference column has no target binding"}}, nil
		}
	}

	elem, fieldErrs, err := vs.elemDecoder(ctx, col)
	if err != nil || len(fieldErrs) > 0 {
		return dynval.Value{}, fieldErrs, err
	}

	decode := elem
	if col.IsList {
		decode = func(r interface{}) (dynval.Value, error) { return dynval.DecodeList(r, elem) }
	}

	val, decErr := decode(raw)
	if decErr != nil {
		return dynval.Value{}, []apperr.FieldError{{Field: col.Name, Message: decErr.Error()}}, nil
	}

	if col.DataType == models.TypeReference {
		refErrs, err := vs.checkReferences(ctx, col, val)
		if err != nil {
			return dynval.Value{}, nil, err
		}
		if len(refErrs) > 0 {
			return dynval.Value{}, refErrs, nil
		}
	}

	return val, nil, nil
}

// elemDecoder returns the scalar decoder for the column's data type.
// Enum-like columns close over their bound value set.
func (vs *ValidationService) elemDecoder(ctx context.Context, col *models.Column) (func(interface{}) (dynval.Value, error), []apperr.FieldError, error) {
	switch col.DataType {
	case models.TypeInteger:
		return dynval.DecodeInt, nil, nil
	case models.TypeFloat, models.TypeCurrency:
		return dynval.DecodeFloat, nil, nil
	case models.TypeString:
		return dynval.DecodeString, nil, nil
	case models.TypeBoolean:
		return dynval.DecodeBool, nil, nil
	case models.TypeDate:
		return dynval.DecodeDate, nil, nil
	case models.TypeDateTime:
		return dynval.DecodeDateTime, nil, nil
	case models.TypeReference:
		return dynval.DecodeRef, nil, nil
	case models.TypeEnum, models.TypePicklist:
		if col.EnumID == nil {
			return nil, []apperr.FieldError{{Field: col.Name, Message: "enum column has no enum binding"}}, nil
		}
		enum, err := vs.enums.GetEnum(ctx, *col.EnumID)
		if err != nil {
			return nil, nil, apperr.NewPersistenceError("load enum", err)
		}
		if enum == nil {
			return nil, []apperr.FieldError{{Field: col.Name, Message: "bound enum no longer exists"}}, nil
		}
		allowed := enum.ValueSet()
		return func(raw interface{}) (dynval.Value, error) {
			v, err := dynval.DecodeString(raw)
			if err != nil {
				return dynval.Value{}, err
			}
			if !allowed[v.Str] {
				return dynval.Value{}, fmt.Errorf("%q is not a value of enum %q", v.Str, enum.Name)
			}
			return v, nil
		}, nil, nil
	}
	return nil, []apperr.FieldError{{Field: col.Name, Message: fmt.Sprintf("unsupported data type %q", col.DataType)}}, nil
}

// checkReferences verifies every referenced id exists in the target table
func (vs *ValidationService) checkReferences(ctx context.Context, col *models.Column, val dynval.Value) ([]apperr.FieldError, error) {
	ids := refIDs(val)
	var errs []apperr.FieldError
	for _, id := range ids {
		exists, err := vs.records.ExistsInTable(ctx, nil, *col.ReferenceTableID, id)
		if err != nil {
			return nil, apperr.NewPersistenceError("check reference", err)
		}
		if !exists {
			errs = append(errs, apperr.FieldError{Field: col.Name, Message: fmt.Sprintf("referenced record %d not found", id)})
		}
	}
	return errs, nil
}

// checkUnique scans the table for another record holding the same value.
// Unique on a list column is a schema misconfiguration, not a data problem,
// but it surfaces on the same field so the client sees it.
func (vs *ValidationService) checkUnique(ctx context.Context, col *models.Column, tableID int64, val dynval.Value, excludeID int64) ([]apperr.FieldError, error) {
	if col.IsList {
		return []apperr.FieldError{{Field: col.Name, Message: "unique is not supported on list columns"}}, nil
	}
	taken, err := vs.records.HasFieldValue(ctx, nil, tableID, col.Name, val.Native(), excludeID)
	if err != nil {
		return nil, apperr.NewPersistenceError("uniqueness scan", err)
	}
	if taken {
		return []apperr.FieldError{{Field: col.Name, Message: fmt.Sprintf("value %v is already taken", val.Native())}}, nil
	}
	return nil, nil
}

// RecheckUnique re-runs the uniqueness scans for the decoded data inside the
// write transaction as locking reads. The batch validation above scans outside
// any transaction so clients get the complete violation list in one pass; two
// concurrent writers can both pass that scan, and the record data lives in a
// JSON column where no storage-level unique constraint can catch them. This
// re-check serializes them on the scanned rows before the write commits.
func (vs *ValidationService) RecheckUnique(ctx context.Context, tx *sql.Tx, table *models.Table, data map[string]interface{}, excludeID int64) error {
	for i := range table.Columns {
		col := &table.Columns[i]
		if !col.Unique || col.IsList {
			continue
		}
		val, ok := data[col.Name]
		if !ok || val == nil {
			continue
		}
		taken, err := vs.records.HasFieldValue(ctx, tx, table.ID, col.Name, val, excludeID)
		if err != nil {
			return apperr.NewPersistenceError("uniqueness scan", err)
		}
		if taken {
			return apperr.NewValidationError(col.Name, fmt.Sprintf("value %v is already taken", val))
		}
	}
	return nil
}

// validateLinkField normalizes and validates one "<column>__links" field.
// The raw value is a single edge object or a list of them; each object holds
// to_record_id plus optional edge attributes.
func (vs *ValidationService) validateLinkField(ctx context.Context, col *models.Column, name string, raw interface{}) ([]LinkEntry, []apperr.FieldError, error) {
	field := name + LinkSuffix

	if col == nil {
		return nil, []apperr.FieldError{{Field: field, Message: "unknown field"}}, nil
	}
	if col.RefKind() != models.RefManyToMany {
		return nil, []apperr.FieldError{{Field: field, Message: "column is not bound to a link table"}}, nil
	}

	lt, err := vs.links.GetLinkTable(ctx, *col.ReferenceLinkTableID)
	if err != nil {
		return nil, nil, apperr.NewPersistenceError("load link table", err)
	}
	if lt == nil {
		return nil, []apperr.FieldError{{Field: field, Message: "bound link table no longer exists"}}, nil
	}
	lt.Columns, err = vs.links.ListLinkColumns(ctx, lt.ID)
	if err != nil {
		return nil, nil, apperr.NewPersistenceError("load link columns", err)
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{v}
	case nil:
		items = nil
	default:
		return nil, []apperr.FieldError{{Field: field, Message: fmt.Sprintf("expected edge object or list, got %T", raw)}}, nil
	}

	var violations []apperr.FieldError
	entries := make([]LinkEntry, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			violations = append(violations, apperr.FieldError{Field: field, Message: fmt.Sprintf("element %d: expected edge object, got %T", i, item)})
			continue
		}

		toRaw, ok := obj["to_record_id"]
		if !ok {
			violations = append(violations, apperr.FieldError{Field: field, Message: fmt.Sprintf("element %d: to_record_id is required", i)})
			continue
		}
		toVal, decErr := dynval.DecodeRef(toRaw)
		if decErr != nil {
			violations = append(violations, apperr.FieldError{Field: field, Message: fmt.Sprintf("element %d: to_record_id: %v", i, decErr)})
			continue
		}

		exists, err := vs.records.ExistsInTable(ctx, nil, lt.ToTableID, toVal.Int)
		if err != nil {
			return nil, nil, apperr.NewPersistenceError("check link target", err)
		}
		if !exists {
			violations = append(violations, apperr.FieldError{Field: field, Message: fmt.Sprintf("element %d: target record %d not found", i, toVal.Int)})
			continue
		}

		attrsRaw := make(map[string]interface{}, len(obj)-1)
		for k, v := range obj {
			if k != "to_record_id" {
				attrsRaw[k] = v
			}
		}
		attrs, attrErrs, err := vs.ValidateLinkData(ctx, lt, attrsRaw)
		if err != nil {
			return nil, nil, err
		}
		for _, fe := range attrErrs {
			violations = append(violations, apperr.FieldError{
				Field:   field,
				Message: fmt.Sprintf("element %d: %s %s", i, fe.Field, fe.Message),
			})
		}
		if len(attrErrs) > 0 {
			continue
		}

		entries = append(entries, LinkEntry{ToRecordID: toVal.Int, Attrs: attrs})
	}

	if len(violations) > 0 {
		return nil, violations, nil
	}
	return entries, nil, nil
}

// ValidateLinkData validates edge attributes against the link table's columns.
// Shared by link reconciliation and direct link-record writes.
func (vs *ValidationService) ValidateLinkData(ctx context.Context, lt *models.LinkTable, payload map[string]interface{}) (map[string]interface{}, []apperr.FieldError, error) {
	var violations []apperr.FieldError

	byName := make(map[string]*models.LinkColumn, len(lt.Columns))
	for i := range lt.Columns {
		byName[lt.Columns[i].Name] = &lt.Columns[i]
	}

	for i := range lt.Columns {
		lc := &lt.Columns[i]
		if !lc.Required {
			continue
		}
		if v, ok := payload[lc.Name]; !ok || v == nil {
			violations = append(violations, apperr.FieldError{Field: lc.Name, Message: "is required"})
		}
	}

	data := make(map[string]interface{})
	for name, raw := range payload {
		lc, ok := byName[name]
		if !ok {
			violations = append(violations, apperr.FieldError{Field: name, Message: "unknown field"})
			continue
		}
		if raw == nil {
			continue
		}

		// Link columns carry the same scalar types as table columns but
		// never references or lists
		col := &models.Column{Name: lc.Name, DataType: lc.DataType, EnumID: lc.EnumID}
		if lc.DataType == models.TypeReference {
			violations = append(violations, apperr.FieldError{Field: name, Message: "reference columns are not supported on link tables"})
			continue
		}
		elem, fieldErrs, err := vs.elemDecoder(ctx, col)
		if err != nil {
			return nil, nil, err
		}
		if len(fieldErrs) > 0 {
			violations = append(violations, fieldErrs...)
			continue
		}

		val, decErr := elem(raw)
		if decErr != nil {
			violations = append(violations, apperr.FieldError{Field: name, Message: decErr.Error()})
			continue
		}
		data[name] = val.Native()
	}

	if len(violations) > 0 {
		return nil, violations, nil
	}
	return data, nil, nil
}

// refIDs flattens a decoded reference value into its record ids
func refIDs(val dynval.Value) []int64 {
	if val.Kind == dynval.KindList {
		ids := make([]int64, 0, len(val.List))
		for _, v := range val.List {
			ids = append(ids, v.Int)
		}
		return ids
	}
	return []int64{val.Int}
}
