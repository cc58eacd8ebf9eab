// Package search keeps a full text index of pages.
package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/novapages/internal/db"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 50
	batchSize    = 100
)

// Document is the indexed form of a page.
type Document struct {
	FullPath    string `json:"full_path"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// Hit is a single search result.
type Hit struct {
	PageID   uint    `json:"page_id"`
	FullPath string  `json:"full_path"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
}

// Result wraps hits with the total match count.
type Result struct {
	Query string `json:"query"`
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

// Indexer owns a bleve index. All methods are safe for concurrent use.
type Indexer struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *zap.Logger
}

// Open opens the index at path, creating it when it does not exist yet.
func Open(path string, logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}
		logger.Info("creating search index", zap.String("path", path))
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Indexer{index: index, logger: logger}, nil
}

// NewMemory returns an index that lives only in memory.
func NewMemory(logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Indexer{index: index, logger: logger}, nil
}

// NewDocument flattens a page (and its loaded blocks) into a Document.
func NewDocument(page *db.Page) Document {
	meta := page.MetaFields()

	var body strings.Builder
	for _, block := range page.RepeaterBlocks() {
		if block.Type == db.BlockTypeImage {
			continue
		}
		body.WriteString(block.Content)
		body.WriteString("\n")
	}

	return Document{
		FullPath:    page.FullPath,
		Title:       meta.PageTitle,
		Description: meta.MetaDescription,
		Body:        body.String(),
	}
}

// IndexPage adds or replaces a page. Inactive pages are removed instead.
func (i *Indexer) IndexPage(page *db.Page) error {
	if page == nil {
		return nil
	}
	if !page.IsActive() {
		return i.RemovePage(page.ID)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.index.Index(docID(page.ID), NewDocument(page)); err != nil {
		return fmt.Errorf("index page %d: %w", page.ID, err)
	}
	return nil
}

// RemovePage deletes a page from the index. Missing documents are ignored.
func (i *Indexer) RemovePage(id uint) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.index.Delete(docID(id)); err != nil {
		return fmt.Errorf("remove page %d: %w", id, err)
	}
	return nil
}

// Rebuild makes the index contain exactly the given active pages.
func (i *Indexer) Rebuild(pages []db.Page) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	keep := make(map[string]struct{}, len(pages))
	batch := i.index.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("apply index batch: %w", err)
		}
		batch = i.index.NewBatch()
		return nil
	}

	for idx := range pages {
		page := &pages[idx]
		if !page.IsActive() {
			continue
		}
		id := docID(page.ID)
		keep[id] = struct{}{}
		if err := batch.Index(id, NewDocument(page)); err != nil {
			return fmt.Errorf("add page %d to batch: %w", page.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	existing, err := i.allIDs()
	if err != nil {
		return err
	}
	for _, id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		batch.Delete(id)
		if batch.Size() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}
	i.logger.Info("search index rebuilt", zap.Int("documents", len(keep)), zap.Int("stale", len(existing)-countKept(existing, keep)))
	return nil
}

// Search runs a match query against all indexed fields.
func (i *Indexer) Search(query string, limit int) (Result, error) {
	query = strings.TrimSpace(query)
	result := Result{Query: query, Hits: []Hit{}}
	if query == "" {
		return result, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	req.Fields = []string{"full_path", "title"}

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return result, fmt.Errorf("search failed: %w", err)
	}

	result.Total = res.Total
	for _, hit := range res.Hits {
		id, convErr := strconv.ParseUint(hit.ID, 10, 64)
		if convErr != nil {
			continue
		}
		h := Hit{PageID: uint(id), Score: hit.Score}
		if v, ok := hit.Fields["full_path"].(string); ok {
			h.FullPath = v
		}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// DocCount returns the number of indexed pages.
func (i *Indexer) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

func (i *Indexer) allIDs() ([]string, error) {
	count, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func countKept(ids []string, keep map[string]struct{}) int {
	n := 0
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			n++
		}
	}
	return n
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
