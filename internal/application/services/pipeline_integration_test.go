package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/bootstrap"
	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/search"
)

// TestPipeline_Integration exercises the full write path against a real MySQL:
// define a table, write records, drain the outbox, query the search index.
// Requires a running MySQL configured via environment variables.
func TestPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := bootstrap.LoadConfig()
	conn, err := database.Connect(cfg.DB)
	if err != nil {
		t.Logf("Skipping integration test: failed to connect to DB: %v", err)
		t.SkipNow()
	}
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, bootstrap.InitializeSchema(ctx, conn))

	sm := NewServiceManager(conn, search.NewBleveIndexer(""))

	tableName := fmt.Sprintf("it_people_%d", time.Now().UnixNano())
	table, err := sm.Schema.CreateTable(ctx, &models.Table{
		Name:          tableName,
		DisplayFormat: "{name}",
	})
	require.NoError(t, err)
	defer func() { _ = sm.Schema.DeleteTable(ctx, table.ID) }()

	_, err = sm.Schema.CreateColumn(ctx, table.ID, &models.Column{
		Name: "name", DataType: models.TypeString, Required: true, Searchable: true,
	})
	require.NoError(t, err)
	_, err = sm.Schema.CreateColumn(ctx, table.ID, &models.Column{
		Name: "email", DataType: models.TypeString, Unique: true,
	})
	require.NoError(t, err)

	created, err := sm.Record.Create(ctx, tableName, map[string]interface{}{
		"name": "Ada", "email": "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", created.DisplayValue)

	// unique column rejects a second record with the same value
	_, err = sm.Record.Create(ctx, tableName, map[string]interface{}{
		"name": "Imposter", "email": "ada@example.com",
	})
	require.Error(t, err)

	// re-submitting a record's own unique value passes
	_, err = sm.Record.Update(ctx, tableName, created.ID, map[string]interface{}{
		"name": "Ada L", "email": "ada@example.com",
	})
	require.NoError(t, err)

	// the outbox drives the search index
	require.NoError(t, sm.Outbox.ProcessOutbox(ctx))
	hits, err := sm.Search.Search(ctx, tableName, "ada", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, created.ID, hits[0].ID)

	require.NoError(t, sm.Record.Delete(ctx, tableName, created.ID))
	require.NoError(t, sm.Outbox.ProcessOutbox(ctx))
	hits, err = sm.Search.Search(ctx, tableName, "ada", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
