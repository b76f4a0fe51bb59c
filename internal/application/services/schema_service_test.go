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
)

func newSchemaFixture(t *testing.T) (*SchemaService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	conn := database.FromDB(db)
	txManager := persistence.NewTransactionManager(conn)
	outbox := NewOutboxService(conn, NewEventBus())
	ss := NewSchemaService(
		persistence.NewSchemaRepository(db),
		persistence.NewLinkRepository(db),
		persistence.NewEnumRepository(db),
		persistence.NewRecordRepository(db),
		txManager, outbox,
	)
	return ss, mock
}

func TestColumnConfigCollectsEveryProblem(t *testing.T) {
	ss, _ := newSchemaFixture(t)

	table := &models.Table{ID: 1, Name: "contacts", Columns: []models.Column{
		{ID: 4, TableID: 1, Name: "email", DataType: models.TypeString},
	}}
	col := &models.Column{
		Name:     "email",
		DataType: models.DataType("mystery"),
		Unique:   true,
		IsList:   true,
		EnumID:   int64Ptr(9),
	}

	errs := ss.checkColumnConfig(context.Background(), table, col, 0)
	assert.ElementsMatch(t,
		[]string{"data_type", "unique", "enum_id", "name"},
		violationFields(errs))
}

func TestColumnConfigUniqueAllowedOnScalar(t *testing.T) {
	ss, _ := newSchemaFixture(t)

	table := &models.Table{ID: 1, Name: "contacts"}
	col := &models.Column{Name: "email", DataType: models.TypeString, Unique: true}

	errs := ss.checkColumnConfig(context.Background(), table, col, 0)
	assert.Empty(t, errs)
}

func TestColumnConfigReferenceNeedsExactlyOneBinding(t *testing.T) {
	ss, mock := newSchemaFixture(t)

	table := &models.Table{ID: 1, Name: "contacts"}

	errs := ss.checkColumnConfig(context.Background(), table,
		&models.Column{Name: "company", DataType: models.TypeReference}, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, "data_type", errs[0].Field)

	errs = ss.checkColumnConfig(context.Background(), table, &models.Column{
		Name:                 "company",
		DataType:             models.TypeReference,
		ReferenceTableID:     int64Ptr(2),
		ReferenceLinkTableID: int64Ptr(3),
	}, 0)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "not both")

	// a dangling table binding is a config error
	mock.ExpectQuery("FROM tables WHERE id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_format", "display_format_secondary", "created_at", "updated_at"}))
	errs = ss.checkColumnConfig(context.Background(), table, &models.Column{
		Name:             "company",
		DataType:         models.TypeReference,
		ReferenceTableID: int64Ptr(2),
	}, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, "reference_table_id", errs[0].Field)
}

func TestColumnConfigLinkTableMustStartAtOwningTable(t *testing.T) {
	ss, mock := newSchemaFixture(t)

	table := &models.Table{ID: 1, Name: "contacts"}

	mock.ExpectQuery("FROM link_tables WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "from_table_id", "to_table_id", "created_at", "updated_at"}).
			AddRow(3, "deal_contacts", 2, 1, testTime(), testTime()))
	mock.ExpectQuery("FROM link_columns WHERE link_table_id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "link_table_id", "name", "data_type", "enum_id", "required", "unique_flag", "created_at", "updated_at"}))

	errs := ss.checkColumnConfig(context.Background(), table, &models.Column{
		Name:                 "deals",
		DataType:             models.TypeReference,
		ReferenceLinkTableID: int64Ptr(3),
	}, 0)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "does not start at")
}
