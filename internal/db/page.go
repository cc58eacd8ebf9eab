package db

import (
	"strings"

	"gorm.io/gorm"
)

// Page is a node in the tree of content pages.
type Page struct {
	gorm.Model
	ParentID        *uint  `gorm:"index"`
	Parent          *Page  `gorm:"foreignKey:ParentID"`
	Children        []Page `gorm:"foreignKey:ParentID"`
	Slug            string `gorm:"size:191;not null"`
	FullPath        string `gorm:"size:1024;uniqueIndex;not null"`
	NavTitle        string
	H1              string `gorm:"column:h1"`
	PageTitle       string
	BrowserTitle    string
	MetaDescription string `gorm:"type:text"`
	Image           string
	Active          bool `gorm:"not null;index"`
	Featured        bool `gorm:"default:false"`
	Priority        int  `gorm:"default:0;index"`
	Canonical       string
	Meta            map[string]string `gorm:"serializer:json"`
	Blocks          []RepeaterBlock   `gorm:"foreignKey:PageID"`
}

// TableName pins the table name used by migrations and raw queries.
func (Page) TableName() string {
	return "pages"
}

// MetaFields mirrors the four meta columns of a page into a plain record.
type MetaFields struct {
	PageTitle       string `json:"page_title"`
	BrowserTitle    string `json:"browser_title"`
	MetaDescription string `json:"meta_description"`
	H1              string `json:"h1"`
}

// FullURL is the absolute path form of FullPath, used when resolving the page route.
func (p *Page) FullURL() string {
	return "/" + strings.TrimPrefix(p.FullPath, "/")
}

func (p *Page) GetSlug() string     { return p.Slug }
func (p *Page) GetFullPath() string { return p.FullPath }
func (p *Page) GetParentID() *uint  { return p.ParentID }
func (p *Page) IsActive() bool      { return p.Active }
func (p *Page) IsFeatured() bool    { return p.Featured }
func (p *Page) PriorityWeight() int { return p.Priority }

// CanonicalOverride returns the stored canonical URL, if any.
func (p *Page) CanonicalOverride() string {
	return strings.TrimSpace(p.Canonical)
}

// MetaTags returns additional meta tags stored with the page.
func (p *Page) MetaTags() map[string]string {
	if p.Meta == nil {
		return map[string]string{}
	}
	return p.Meta
}

// RepeaterBlocks returns the loaded content blocks.
func (p *Page) RepeaterBlocks() []RepeaterBlock {
	return p.Blocks
}

// MetaFields returns the page's meta fields with empty ones falling back:
// h1 to nav_title, page_title to h1, browser_title to page_title.
func (p *Page) MetaFields() MetaFields {
	h1 := firstNonEmpty(p.H1, p.NavTitle)
	pageTitle := firstNonEmpty(p.PageTitle, h1)
	return MetaFields{
		PageTitle:       pageTitle,
		BrowserTitle:    firstNonEmpty(p.BrowserTitle, pageTitle),
		MetaDescription: strings.TrimSpace(p.MetaDescription),
		H1:              h1,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
