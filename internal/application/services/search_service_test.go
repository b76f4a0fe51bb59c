package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/internal/infrastructure/search"
)

func newSearchFixture(t *testing.T) (*SearchService, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = rawDB.Close() })

	indexer := search.NewBleveIndexer("")
	t.Cleanup(func() { _ = indexer.Close() })

	db := database.FromDB(rawDB)
	schemaRepo := persistence.NewSchemaRepository(rawDB)
	enumRepo := persistence.NewEnumRepository(rawDB)
	recordRepo := persistence.NewRecordRepository(rawDB)
	linkRepo := persistence.NewLinkRepository(rawDB)
	txManager := persistence.NewTransactionManager(db)
	outbox := NewOutboxService(db, NewEventBus())

	schema := NewSchemaService(schemaRepo, linkRepo, enumRepo, recordRepo, txManager, outbox)
	display := NewDisplayService(schemaRepo, recordRepo, linkRepo)
	return NewSearchService(indexer, schema, recordRepo, display), mock
}

func TestIndexNameIsLowercased(t *testing.T) {
	assert.Equal(t, "records_company", IndexName("Company"))
	assert.Equal(t, "records_dealstage", IndexName("DealStage"))
}

func TestBuildDocumentShape(t *testing.T) {
	s, _ := newSearchFixture(t)

	table := &models.Table{
		ID: 4, Name: "Company", DisplayFormat: "{Name}",
		Columns: []models.Column{
			{Name: "Name", DataType: models.TypeString, Searchable: true},
			{Name: "Tags", DataType: models.TypeString, IsList: true, Searchable: true},
			{Name: "Secret", DataType: models.TypeString}, // not searchable
		},
	}
	rec := &models.Record{ID: 20, TableID: 4, Data: map[string]interface{}{
		"Name": "Acme", "Tags": []interface{}{"SaaS", "B2B"}, "Secret": "hidden",
	}, CreatedAt: testTime(), UpdatedAt: testTime()}

	doc := s.buildDocument(context.Background(), table, rec)

	assert.Equal(t, int64(4), doc["table_id"])
	assert.Equal(t, "Acme", doc["display_value"])

	data := doc["data"].(map[string]interface{})
	assert.Equal(t, "acme", data["name"], "field names and values are lower-cased")
	assert.Equal(t, "saas, b2b", data["tags"], "list values join with a comma")
	assert.NotContains(t, data, "secret")
	assert.NotContains(t, data, "Secret")
}

func TestSearchFieldsIncludeDisplayValues(t *testing.T) {
	s, _ := newSearchFixture(t)

	table := &models.Table{Columns: []models.Column{
		{Name: "Name", DataType: models.TypeString, Searchable: true},
		{Name: "Notes", DataType: models.TypeString},
	}}

	assert.ElementsMatch(t,
		[]string{"display_value", "display_value_secondary", "data.name"},
		s.searchFields(table))
}

func TestSearchResolvesHitsAgainstPrimaryStore(t *testing.T) {
	s, mock := newSearchFixture(t)

	table := &models.Table{
		ID: 4, Name: "company", DisplayFormat: "{name}",
		Columns: []models.Column{{Name: "name", DataType: models.TypeString, Searchable: true}},
	}
	rec := &models.Record{ID: 20, TableID: 4, Data: map[string]interface{}{"name": "Acme"},
		CreatedAt: testTime(), UpdatedAt: testTime()}
	require.NoError(t, s.Upsert(context.Background(), table, rec))

	// stale hit whose record is gone
	ghost := &models.Record{ID: 21, TableID: 4, Data: map[string]interface{}{"name": "Acme Two"},
		CreatedAt: testTime(), UpdatedAt: testTime()}
	require.NoError(t, s.Upsert(context.Background(), table, ghost))

	mock.ExpectQuery("FROM tables WHERE name").
		WithArgs("company").
		WillReturnRows(tableRow(4, "company", "{name}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(int64(4)).
		WillReturnRows(columnRows().
			AddRow(1, 4, "name", "string", false, nil, nil, nil, false, false, true, testTime(), testTime()))
	// both hits resolve against the primary store; 21 vanished
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(sqlmock.AnyArg(), int64(4)).
		WillReturnRows(recordRow(20, 4, `{"name":"Acme"}`))
	mock.ExpectQuery("FROM records WHERE id").
		WithArgs(sqlmock.AnyArg(), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_id", "data", "created_at", "updated_at"}))

	views, err := s.Search(context.Background(), "company", "acme", 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(20), views[0].ID)
	assert.Equal(t, "Acme", views[0].DisplayValue)
}
