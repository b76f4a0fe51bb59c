package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/domain/ports"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
)

// DefaultSearchLimit caps hits per query unless the caller asks for fewer
const DefaultSearchLimit = 25

// SearchService keeps one search index per table in step with the primary
// store and answers fuzzy queries from it. It subscribes to change events,
// so index writes run on the outbox worker, decoupled from request latency.
// A failed index write surfaces as a handler error and the outbox retries
// the event, which makes the index eventually consistent.
type SearchService struct {
	indexer ports.DocumentIndexer
	schemas *SchemaService
	records *persistence.RecordRepository
	display *DisplayService
}

// NewSearchService creates a new SearchService
func NewSearchService(indexer ports.DocumentIndexer, schemas *SchemaService, records *persistence.RecordRepository, display *DisplayService) *SearchService {
	return &SearchService{indexer: indexer, schemas: schemas, records: records, display: display}
}

// RegisterHandlers subscribes the synchronizer to the event bus
func (s *SearchService) RegisterHandlers(bus *EventBus) {
	bus.Subscribe(events.RecordCreated, s.HandleRecordChange)
	bus.Subscribe(events.RecordUpdated, s.HandleRecordChange)
	bus.Subscribe(events.RecordDeleted, s.HandleRecordChange)
	bus.Subscribe(events.TableReindex, s.HandleReindex)
	bus.Subscribe(events.TableDropped, s.HandleTableDropped)
}

// IndexName returns the search index name for a table
func IndexName(tableName string) string {
	return "records_" + strings.ToLower(tableName)
}

// HandleRecordChange mirrors one record mutation into the table's index
func (s *SearchService) HandleRecordChange(ctx context.Context, payload events.ChangePayload) error {
	if payload.Action == events.ActionDelete {
		return s.Remove(ctx, payload.Table, payload.RecordID)
	}

	table, err := s.schemas.GetTableByName(ctx, payload.Table)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Table dropped between commit and dispatch; nothing to index
			return nil
		}
		return err
	}
	rec, err := s.records.GetInTable(ctx, table.ID, payload.RecordID)
	if err != nil {
		return apperr.NewPersistenceError("load record for indexing", err)
	}
	if rec == nil {
		return s.Remove(ctx, payload.Table, payload.RecordID)
	}
	return s.Upsert(ctx, table, rec)
}

// HandleReindex rebuilds a table's index from the primary store. On rename
// the payload carries the previous name, whose stale index is dropped first.
func (s *SearchService) HandleReindex(ctx context.Context, payload events.ChangePayload) error {
	if payload.PrevTable != "" && !strings.EqualFold(payload.PrevTable, payload.Table) {
		if err := s.indexer.DropIndex(ctx, IndexName(payload.PrevTable)); err != nil {
			return fmt.Errorf("failed to drop stale index: %w", err)
		}
	}

	table, err := s.schemas.GetTableByName(ctx, payload.Table)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.Reindex(ctx, table)
}

// HandleTableDropped drops the dead table's index
func (s *SearchService) HandleTableDropped(ctx context.Context, payload events.ChangePayload) error {
	return s.indexer.DropIndex(ctx, IndexName(payload.Table))
}

// Upsert writes one record's search document. table must carry its columns.
func (s *SearchService) Upsert(ctx context.Context, table *models.Table, rec *models.Record) error {
	doc := s.buildDocument(ctx, table, rec)
	if err := s.indexer.Upsert(ctx, IndexName(table.Name), strconv.FormatInt(rec.ID, 10), doc); err != nil {
		return fmt.Errorf("failed to index record %d of %q: %w", rec.ID, table.Name, err)
	}
	return nil
}

// Remove deletes one record's search document. Missing documents are fine.
func (s *SearchService) Remove(ctx context.Context, tableName string, recordID int64) error {
	if err := s.indexer.Delete(ctx, IndexName(tableName), strconv.FormatInt(recordID, 10)); err != nil {
		return fmt.Errorf("failed to remove record %d from index of %q: %w", recordID, tableName, err)
	}
	return nil
}

// Reindex rebuilds the table's index from every stored record
func (s *SearchService) Reindex(ctx context.Context, table *models.Table) error {
	recs, err := s.records.ListByTable(ctx, table.ID)
	if err != nil {
		return apperr.NewPersistenceError("list records for reindex", err)
	}
	log.Printf("🔎 Reindexing %d records of table %q", len(recs), table.Name)
	for i := range recs {
		if err := s.Upsert(ctx, table, &recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a fuzzy query over a table's searchable fields and display
// values, then resolves the hits against the primary store. Hits whose
// record vanished since indexing are skipped, not errors.
func (s *SearchService) Search(ctx context.Context, tableName, query string, limit int) ([]RecordView, error) {
	table, err := s.schemas.GetTableByName(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}

	ids, err := s.indexer.Query(ctx, IndexName(table.Name), query, s.searchFields(table), limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed for %q: %w", table.Name, err)
	}

	views := make([]RecordView, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		rec, err := s.records.GetInTable(ctx, table.ID, id)
		if err != nil {
			return nil, apperr.NewPersistenceError("resolve search hit", err)
		}
		if rec == nil {
			continue
		}
		primary, secondary := s.display.Render(ctx, table, rec)
		views = append(views, RecordView{Record: rec, DisplayValue: primary, DisplayValueSecondary: secondary})
	}
	return views, nil
}

// searchFields lists the index field paths a query matches against
func (s *SearchService) searchFields(table *models.Table) []string {
	fields := []string{"display_value", "display_value_secondary"}
	for i := range table.Columns {
		if table.Columns[i].Searchable {
			fields = append(fields, "data."+strings.ToLower(table.Columns[i].Name))
		}
	}
	return fields
}

// buildDocument flattens a record into its index document: searchable field
// values stringified and lower-cased under lower-cased names, plus the
// rendered display values.
func (s *SearchService) buildDocument(ctx context.Context, table *models.Table, rec *models.Record) map[string]interface{} {
	data := make(map[string]interface{})
	for i := range table.Columns {
		col := &table.Columns[i]
		if !col.Searchable {
			continue
		}
		val, ok := rec.Data[col.Name]
		if !ok || val == nil {
			continue
		}
		data[strings.ToLower(col.Name)] = searchText(val)
	}

	primary, secondary := s.display.Render(ctx, table, rec)
	return map[string]interface{}{
		"table_id":                table.ID,
		"data":                    data,
		"display_value":           primary,
		"display_value_secondary": secondary,
		"created_at":              rec.CreatedAt.Format(time.RFC3339),
		"updated_at":              rec.UpdatedAt.Format(time.RFC3339),
	}
}

// searchText stringifies a stored value for indexing, joining lists with ", "
func searchText(val interface{}) string {
	if items, ok := val.([]interface{}); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, strings.ToLower(fmt.Sprintf("%v", item)))
		}
		return strings.Join(parts, ", ")
	}
	return strings.ToLower(fmt.Sprintf("%v", val))
}
