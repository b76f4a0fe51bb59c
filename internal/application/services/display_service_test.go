package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

func newDisplayFixture(t *testing.T) (*DisplayService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ds := NewDisplayService(
		persistence.NewSchemaRepository(db),
		persistence.NewRecordRepository(db),
		persistence.NewLinkRepository(db),
	)
	return ds, mock
}

func tableRow(id int64, name, format, formatSecondary string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "display_format", "display_format_secondary", "created_at", "updated_at"}).
		AddRow(id, name, format, formatSecondary, testTime(), testTime())
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "table_id", "name", "data_type", "is_list", "enum_id",
		"reference_table_id", "reference_link_table_id", "required", "unique_flag", "searchable",
		"created_at", "updated_at",
	})
}

func recordRow(id, tableID int64, data string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "table_id", "data", "created_at", "updated_at"}).
		AddRow(id, tableID, []byte(data), testTime(), testTime())
}

func TestRenderSubstitutesFields(t *testing.T) {
	ds, _ := newDisplayFixture(t)

	table := &models.Table{
		ID: 1, Name: "contacts",
		DisplayFormat:          "{first_name} {last_name}",
		DisplayFormatSecondary: "{email}",
		Columns: []models.Column{
			{Name: "first_name", DataType: models.TypeString},
			{Name: "last_name", DataType: models.TypeString},
			{Name: "email", DataType: models.TypeString},
		},
	}
	rec := &models.Record{ID: 1, TableID: 1, Data: map[string]interface{}{
		"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
	}}

	primary, secondary := ds.Render(context.Background(), table, rec)
	assert.Equal(t, "Ada Lovelace", primary)
	assert.Equal(t, "ada@example.com", secondary)
}

func TestRenderMissingKeyAndEmptyFormat(t *testing.T) {
	ds, _ := newDisplayFixture(t)

	table := &models.Table{ID: 1, Name: "contacts", DisplayFormat: "{first_name} {nope}"}
	rec := &models.Record{ID: 1, TableID: 1, Data: map[string]interface{}{"first_name": "Ada"}}

	primary, secondary := ds.Render(context.Background(), table, rec)
	assert.Equal(t, "Ada ", primary)
	assert.Equal(t, "", secondary, "no secondary format renders empty")
}

func TestRenderFollowsDirectReference(t *testing.T) {
	ds, mock := newDisplayFixture(t)

	companyID := int64(2)
	table := &models.Table{
		ID: 1, Name: "contacts", DisplayFormat: "{name} at {company}",
		Columns: []models.Column{
			{Name: "name", DataType: models.TypeString},
			{Name: "company", DataType: models.TypeReference, ReferenceTableID: &companyID},
		},
	}
	rec := &models.Record{ID: 10, TableID: 1, Data: map[string]interface{}{
		"name": "Ada", "company": float64(20),
	}}

	mock.ExpectQuery("FROM tables WHERE id").
		WithArgs(companyID).
		WillReturnRows(tableRow(2, "companies", "{legal_name}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(companyID).
		WillReturnRows(columnRows())
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(int64(20), companyID).
		WillReturnRows(recordRow(20, 2, `{"legal_name":"Initech"}`))

	primary, _ := ds.Render(context.Background(), table, rec)
	assert.Equal(t, "Ada at Initech", primary)
}

func TestRenderBreaksReferenceCycles(t *testing.T) {
	ds, mock := newDisplayFixture(t)

	peerTable := int64(1)
	table := &models.Table{
		ID: 1, Name: "nodes", DisplayFormat: "{label}->{peer}",
		Columns: []models.Column{
			{Name: "label", DataType: models.TypeString},
			{Name: "peer", DataType: models.TypeReference, ReferenceTableID: &peerTable},
		},
	}
	// Record 1 points at record 2, record 2 points back at record 1
	rec := &models.Record{ID: 1, TableID: 1, Data: map[string]interface{}{
		"label": "a", "peer": float64(2),
	}}

	mock.ExpectQuery("FROM tables WHERE id").
		WithArgs(peerTable).
		WillReturnRows(tableRow(1, "nodes", "{label}->{peer}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(peerTable).
		WillReturnRows(columnRows().
			AddRow(1, 1, "label", "string", false, nil, nil, nil, false, false, false, testTime(), testTime()).
			AddRow(2, 1, "peer", "reference", false, nil, peerTable, nil, false, false, false, testTime(), testTime()))
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(int64(2), peerTable).
		WillReturnRows(recordRow(2, 1, `{"label":"b","peer":1}`))
	// Rendering record 2's peer loads the table again, then hits the
	// cycle guard for record 1
	mock.ExpectQuery("FROM tables WHERE id").
		WithArgs(peerTable).
		WillReturnRows(tableRow(1, "nodes", "{label}->{peer}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(peerTable).
		WillReturnRows(columnRows().
			AddRow(1, 1, "label", "string", false, nil, nil, nil, false, false, false, testTime(), testTime()).
			AddRow(2, 1, "peer", "reference", false, nil, peerTable, nil, false, false, false, testTime(), testTime()))

	primary, _ := ds.Render(context.Background(), table, rec)
	assert.Equal(t, "a->b->", primary, "the revisited record renders empty instead of recursing")
}

func TestRenderJoinsListReferences(t *testing.T) {
	ds, mock := newDisplayFixture(t)

	tagTable := int64(3)
	table := &models.Table{
		ID: 1, Name: "posts", DisplayFormat: "{tags}",
		Columns: []models.Column{
			{Name: "tags", DataType: models.TypeReference, ReferenceTableID: &tagTable, IsList: true},
		},
	}
	rec := &models.Record{ID: 1, TableID: 1, Data: map[string]interface{}{
		"tags": []interface{}{float64(5), float64(6)},
	}}

	mock.ExpectQuery("FROM tables WHERE id").
		WithArgs(tagTable).
		WillReturnRows(tableRow(3, "tags", "{label}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(tagTable).
		WillReturnRows(columnRows())
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(int64(5), tagTable).
		WillReturnRows(recordRow(5, 3, `{"label":"go"}`))
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(int64(6), tagTable).
		WillReturnRows(recordRow(6, 3, `{"label":"search"}`))

	primary, _ := ds.Render(context.Background(), table, rec)
	assert.Equal(t, "go, search", primary)
}
