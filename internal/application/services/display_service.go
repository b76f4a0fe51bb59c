package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

// placeholderPattern matches "{expression}" segments in a display format
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// DisplayService renders human-readable values for records from their
// table's display format templates. Reference columns render recursively
// through the referenced table's own primary format. Rendering is purely
// presentational: any failure logs and degrades to an empty string, never
// an error to the caller.
type DisplayService struct {
	schemas *persistence.SchemaRepository
	records *persistence.RecordRepository
	links   *persistence.LinkRepository
}

// NewDisplayService creates a new DisplayService
func NewDisplayService(schemas *persistence.SchemaRepository, records *persistence.RecordRepository, links *persistence.LinkRepository) *DisplayService {
	return &DisplayService{schemas: schemas, records: records, links: links}
}

// Render produces the primary and secondary display values for a record.
// table must carry its columns.
func (ds *DisplayService) Render(ctx context.Context, table *models.Table, rec *models.Record) (string, string) {
	visited := map[string]bool{visitKey(table.ID, rec.ID): true}
	env := ds.buildEnv(ctx, table, rec, visited)
	return renderTemplate(table.DisplayFormat, env), renderTemplate(table.DisplayFormatSecondary, env)
}

// renderPrimary renders only the primary display value, used when a record
// is reached through a reference column.
func (ds *DisplayService) renderPrimary(ctx context.Context, table *models.Table, rec *models.Record, visited map[string]bool) string {
	env := ds.buildEnv(ctx, table, rec, visited)
	return renderTemplate(table.DisplayFormat, env)
}

// buildEnv copies the record's data and replaces every reference column's
// value with the rendered display of the records it points at. visited
// carries the (table, record) pairs already on the render stack; revisiting
// one renders as empty instead of recursing forever.
func (ds *DisplayService) buildEnv(ctx context.Context, table *models.Table, rec *models.Record, visited map[string]bool) map[string]interface{} {
	env := make(map[string]interface{}, len(rec.Data))
	for k, v := range rec.Data {
		env[k] = v
	}

	for i := range table.Columns {
		col := &table.Columns[i]
		if col.DataType != models.TypeReference {
			continue
		}

		switch col.RefKind() {
		case models.RefDirect:
			env[col.Name] = ds.renderDirectRefs(ctx, *col.ReferenceTableID, rec.Data[col.Name], visited)
		case models.RefManyToMany:
			env[col.Name] = ds.renderLinkedRefs(ctx, *col.ReferenceLinkTableID, rec.ID, visited)
		}
	}

	return env
}

// renderDirectRefs renders the display of each directly referenced record,
// joined with ", " for list columns.
func (ds *DisplayService) renderDirectRefs(ctx context.Context, refTableID int64, raw interface{}, visited map[string]bool) string {
	refTable, err := ds.loadTable(ctx, refTableID)
	if err != nil {
		log.Printf("⚠️ [Display] failed to load referenced table %d: %v", refTableID, err)
		return ""
	}
	if refTable == nil {
		return ""
	}

	var parts []string
	for _, id := range recordIDs(raw) {
		parts = append(parts, ds.renderRef(ctx, refTable, id, visited))
	}
	return strings.Join(parts, ", ")
}

// renderLinkedRefs renders the display of every record linked through the
// column's link table, joined with ", ".
func (ds *DisplayService) renderLinkedRefs(ctx context.Context, linkTableID, fromRecordID int64, visited map[string]bool) string {
	lt, err := ds.links.GetLinkTable(ctx, linkTableID)
	if err != nil || lt == nil {
		if err != nil {
			log.Printf("⚠️ [Display] failed to load link table %d: %v", linkTableID, err)
		}
		return ""
	}

	edges, err := ds.links.ListEdgesFrom(ctx, nil, lt.ID, fromRecordID)
	if err != nil {
		log.Printf("⚠️ [Display] failed to list edges of link table %d: %v", lt.ID, err)
		return ""
	}
	if len(edges) == 0 {
		return ""
	}

	toTable, err := ds.loadTable(ctx, lt.ToTableID)
	if err != nil || toTable == nil {
		if err != nil {
			log.Printf("⚠️ [Display] failed to load table %d: %v", lt.ToTableID, err)
		}
		return ""
	}

	parts := make([]string, 0, len(edges))
	for _, e := range edges {
		parts = append(parts, ds.renderRef(ctx, toTable, e.ToRecordID, visited))
	}
	return strings.Join(parts, ", ")
}

// renderRef renders one referenced record's primary display value.
// A record already on the render stack yields "".
func (ds *DisplayService) renderRef(ctx context.Context, table *models.Table, recordID int64, visited map[string]bool) string {
	key := visitKey(table.ID, recordID)
	if visited[key] {
		return ""
	}
	visited[key] = true
	defer delete(visited, key)

	rec, err := ds.records.GetInTable(ctx, table.ID, recordID)
	if err != nil {
		log.Printf("⚠️ [Display] failed to load record %d of table %q: %v", recordID, table.Name, err)
		return ""
	}
	if rec == nil {
		return ""
	}
	return ds.renderPrimary(ctx, table, rec, visited)
}

// loadTable fetches a table with its columns
func (ds *DisplayService) loadTable(ctx context.Context, id int64) (*models.Table, error) {
	t, err := ds.schemas.GetTable(ctx, id)
	if err != nil || t == nil {
		return t, err
	}
	cols, err := ds.schemas.ListColumns(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Columns = cols
	return t, nil
}

// renderTemplate substitutes each "{expression}" in the format with its
// evaluated value against env. A missing key or bad expression renders as
// empty. An empty format renders as empty.
func renderTemplate(format string, env map[string]interface{}) string {
	if format == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(format, func(m string) string {
		path := m[1 : len(m)-1]
		out, err := expr.Eval(path, env)
		if err != nil {
			log.Printf("⚠️ [Display] failed to evaluate %q: %v", path, err)
			return ""
		}
		if out == nil {
			return ""
		}
		return fmt.Sprintf("%v", out)
	})
}

// recordIDs extracts record ids from a stored reference value, which is a
// number or a list of numbers after JSON round-tripping.
func recordIDs(raw interface{}) []int64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			if id, ok := asID(item); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		if id, ok := asID(raw); ok {
			return []int64{id}
		}
		return nil
	}
}

// asID coerces a JSON-decoded number to an id
func asID(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// visitKey identifies a (table, record) pair on the render stack
func visitKey(tableID, recordID int64) string {
	return fmt.Sprintf("%d:%d", tableID, recordID)
}
