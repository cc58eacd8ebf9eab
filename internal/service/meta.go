package service

import (
	"context"
	"errors"

	"github.com/novapages/internal/db"
	"gorm.io/gorm"
)

// MetaRecord holds the four meta fields a page template reads.
type MetaRecord struct {
	PageTitle       string `json:"page_title"`
	BrowserTitle    string `json:"browser_title"`
	MetaDescription string `json:"meta_description"`
	H1              string `json:"h1"`
}

// MetaDefault is the fallback used by Meta when no page matches.
// Implemented by MetaText and MetaRecord; nil means four empty fields.
type MetaDefault interface {
	metaRecord() MetaRecord
}

// MetaText expands a single string into all four meta fields.
type MetaText string

func (t MetaText) metaRecord() MetaRecord {
	v := string(t)
	return MetaRecord{PageTitle: v, BrowserTitle: v, MetaDescription: v, H1: v}
}

func (r MetaRecord) metaRecord() MetaRecord { return r }

// NormalizeMetaDefault expands def into a full record.
func NormalizeMetaDefault(def MetaDefault) MetaRecord {
	if def == nil {
		return MetaRecord{}
	}
	return def.metaRecord()
}

// MetaResult is either a matched page (Page set, fields taken from the page)
// or the normalized default (Page nil).
type MetaResult struct {
	Page *db.Page `json:"page,omitempty"`
	MetaRecord
}

// Found reports whether a page matched.
func (r MetaResult) Found() bool {
	return r.Page != nil
}

// Meta returns the page whose full path equals slug, with its parent loaded,
// so static routes (e.g. a listing index) can carry editable meta fields.
// When no page matches, the default is returned; that is not an error.
func (s *PageService) Meta(ctx context.Context, slug string, def MetaDefault) (MetaResult, error) {
	var page db.Page
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Where("full_path = ?", normalizeFullPath(slug)).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.observeMeta(false)
			return MetaResult{MetaRecord: NormalizeMetaDefault(def)}, nil
		}
		return MetaResult{}, err
	}

	s.observeMeta(true)
	return MetaResult{Page: &page, MetaRecord: MetaRecord(page.MetaFields())}, nil
}

func (s *PageService) observeMeta(found bool) {
	if s.metrics != nil {
		s.metrics.MetaLookup(found)
	}
}
