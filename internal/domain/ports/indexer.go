package ports

import "context"

// DocumentIndexer is the contract the search engine must satisfy: upsert-by-id
// scoped to a named index, idempotent delete-by-id, multi-field fuzzy query
// returning ranked document ids, and index auto-creation with an explicit field
// mapping when absent.
type DocumentIndexer interface {
	// Upsert writes (or overwrites) the document under id in the named index,
	// creating the index with its mapping if it does not exist yet.
	Upsert(ctx context.Context, index, id string, doc map[string]interface{}) error

	// Delete removes the document by id. A missing document or a missing index
	// is a successful no-op.
	Delete(ctx context.Context, index, id string) error

	// Query runs a fuzzy match of text across the given field paths and
	// returns matching document ids, best first.
	Query(ctx context.Context, index, text string, fields []string, limit int) ([]string, error)

	// DropIndex deletes the whole index. Missing index is a no-op.
	DropIndex(ctx context.Context, index string) error
}
