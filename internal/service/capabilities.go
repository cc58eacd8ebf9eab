package service

import "github.com/novapages/internal/db"

// Capabilities composed onto a page. db.Page implements all of them; helpers
// accept the narrowest one they need.

type Sluggable interface {
	GetSlug() string
	GetFullPath() string
}

type ParentedTree interface {
	GetParentID() *uint
}

type ActiveStateful interface {
	IsActive() bool
}

type Featurable interface {
	IsFeatured() bool
}

type Prioritised interface {
	PriorityWeight() int
}

type MetaBearing interface {
	MetaFields() db.MetaFields
	MetaTags() map[string]string
}

type CanonicalBearing interface {
	CanonicalOverride() string
}

type BlockBearing interface {
	RepeaterBlocks() []db.RepeaterBlock
}

// PageEntity is the full set of capabilities a page carries.
type PageEntity interface {
	Sluggable
	ParentedTree
	ActiveStateful
	Featurable
	Prioritised
	MetaBearing
	CanonicalBearing
	BlockBearing
}

var _ PageEntity = (*db.Page)(nil)
