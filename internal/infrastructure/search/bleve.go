// Package search implements the document index contract on bleve.
// One bleve index per user table, created lazily with an explicit mapping.
package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/gridbase/gridbase/internal/domain/ports"
)

// BleveIndexer manages a set of named bleve indexes under one root directory.
// An empty root directory selects in-memory indexes (used by tests).
type BleveIndexer struct {
	rootDir string

	mu      sync.Mutex
	indexes map[string]bleve.Index
}

var _ ports.DocumentIndexer = (*BleveIndexer)(nil)

// NewBleveIndexer creates an indexer rooted at dir, or fully in-memory when
// dir is empty
func NewBleveIndexer(dir string) *BleveIndexer {
	return &BleveIndexer{
		rootDir: dir,
		indexes: make(map[string]bleve.Index),
	}
}

// buildMapping declares the document fields explicitly: both display values
// and the searchable data sub-document are analyzed text.
func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("display_value", text)
	doc.AddFieldMappingsAt("display_value_secondary", text)

	data := bleve.NewDocumentMapping()
	data.Dynamic = true
	data.DefaultAnalyzer = "standard"
	doc.AddSubDocumentMapping("data", data)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// ensure opens or creates the named index. Idempotent and safe to race.
func (b *BleveIndexer) ensure(name string) (bleve.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}

	var idx bleve.Index
	var err error
	if b.rootDir == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		path := filepath.Join(b.rootDir, name)
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, buildMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}

	b.indexes[name] = idx
	return idx, nil
}

// existing returns the named index only if it is already open or on disk
func (b *BleveIndexer) existing(name string) (bleve.Index, bool, error) {
	b.mu.Lock()
	if idx, ok := b.indexes[name]; ok {
		b.mu.Unlock()
		return idx, true, nil
	}
	b.mu.Unlock()

	if b.rootDir == "" {
		return nil, false, nil
	}
	if _, err := os.Stat(filepath.Join(b.rootDir, name)); os.IsNotExist(err) {
		return nil, false, nil
	}

	idx, err := b.ensure(name)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// Upsert writes the document under id, creating the index if needed
func (b *BleveIndexer) Upsert(ctx context.Context, index, id string, doc map[string]interface{}) error {
	idx, err := b.ensure(index)
	if err != nil {
		return err
	}
	return idx.Index(id, doc)
}

// Delete removes the document by id; missing index or document is a no-op
func (b *BleveIndexer) Delete(ctx context.Context, index, id string) error {
	idx, ok, err := b.existing(index)
	if err != nil || !ok {
		return err
	}
	return idx.Delete(id)
}

// Query fuzzy-matches text across the given field paths and returns document
// ids, best first. A missing index yields no results.
func (b *BleveIndexer) Query(ctx context.Context, index, text string, fields []string, limit int) ([]string, error) {
	idx, ok, err := b.existing(index)
	if err != nil {
		return nil, err
	}
	if !ok || len(fields) == 0 {
		return nil, nil
	}

	queries := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		mq.SetFuzziness(1)
		queries = append(queries, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	if limit <= 0 {
		limit = 50
	}
	req.Size = limit

	res, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// DropIndex closes and removes the whole index; missing index is a no-op
func (b *BleveIndexer) DropIndex(ctx context.Context, index string) error {
	b.mu.Lock()
	if idx, ok := b.indexes[index]; ok {
		_ = idx.Close()
		delete(b.indexes, index)
	}
	b.mu.Unlock()

	if b.rootDir == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(b.rootDir, index))
}

// Close closes every open index
func (b *BleveIndexer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.indexes, name)
	}
	return firstErr
}
