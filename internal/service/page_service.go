package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound     = errors.New("page not found")
	ErrPageInvalid      = errors.New("page requires a nav title or h1")
	ErrParentNotFound   = errors.New("parent page not found")
	ErrParentCycle      = errors.New("parent chain contains a cycle")
	ErrPageTooDeep      = errors.New("page hierarchy exceeds maximum depth")
	ErrPageHasChildren  = errors.New("page still has child pages")
	ErrBlockTypeInvalid = errors.New("repeater block type is invalid")
)

const (
	defaultMaxDepth         = 32
	defaultLargeImageWidth  = 1200
	defaultLargeImageHeight = 630
)

// PageRouter resolves the public URL of a page (the "pages.show" route).
type PageRouter interface {
	PageURL(fullURL string) string
}

// PageIndexer keeps an external search index in sync with page writes.
type PageIndexer interface {
	IndexPage(page *db.Page) error
	RemovePage(id uint) error
}

// PageMetrics receives read-path observations.
type PageMetrics interface {
	MetaLookup(found bool)
	BreadcrumbDepth(ancestors int)
}

// PageServiceOptions wires collaborators and settings into a PageService.
// Zero values fall back to sensible defaults.
type PageServiceOptions struct {
	Router           PageRouter
	Images           imagecdn.Transformer
	Indexer          PageIndexer
	Metrics          PageMetrics
	Logger           *zap.Logger
	BaseSeeds        []Seed
	LargeImageWidth  int
	LargeImageHeight int
	MaxDepth         int
}

// PageService provides access to the page tree.
type PageService struct {
	db       *gorm.DB
	router   PageRouter
	images   imagecdn.Transformer
	indexer  PageIndexer
	metrics  PageMetrics
	logger   *zap.Logger
	base     []Seed
	imageW   int
	imageH   int
	maxDepth int
}

// PageInput represents fields accepted when creating or updating a page.
type PageInput struct {
	ParentID        *uint             `json:"parent_id"`
	Slug            string            `json:"slug"`
	NavTitle        string            `json:"nav_title"`
	H1              string            `json:"h1"`
	PageTitle       string            `json:"page_title"`
	BrowserTitle    string            `json:"browser_title"`
	MetaDescription string            `json:"meta_description"`
	Image           string            `json:"image"`
	Canonical       string            `json:"canonical"`
	Active          *bool             `json:"active"`
	Featured        bool              `json:"featured"`
	Priority        int               `json:"priority"`
	Meta            map[string]string `json:"meta"`
}

// BlockInput is one repeater block in a ReplaceBlocks call.
type BlockInput struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewPageService returns a new PageService instance.
func NewPageService(gdb *gorm.DB, opts PageServiceOptions) *PageService {
	s := &PageService{
		db:       gdb,
		router:   opts.Router,
		images:   opts.Images,
		indexer:  opts.Indexer,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		base:     opts.BaseSeeds,
		imageW:   opts.LargeImageWidth,
		imageH:   opts.LargeImageHeight,
		maxDepth: opts.MaxDepth,
	}
	if s.router == nil {
		s.router = PathRouter{Prefix: "/pages"}
	}
	if s.images == nil {
		s.images = imagecdn.NewCloudinary("demo")
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.base == nil {
		s.base = []Seed{{Name: "Home", URL: "/"}}
	}
	if s.maxDepth <= 0 {
		s.maxDepth = defaultMaxDepth
	}
	if s.imageW <= 0 {
		s.imageW = defaultLargeImageWidth
	}
	if s.imageH <= 0 {
		s.imageH = defaultLargeImageHeight
	}
	return s
}

// PathRouter is a PageRouter that mounts pages under a fixed path prefix.
type PathRouter struct {
	Prefix string
}

func (r PathRouter) PageURL(fullURL string) string {
	return strings.TrimRight(r.Prefix, "/") + "/" + strings.TrimLeft(fullURL, "/")
}

// URL resolves the public pages.show URL of page.
func (s *PageService) URL(page *db.Page) string {
	return s.router.PageURL(page.FullURL())
}

func orderedBlocks(tx *gorm.DB) *gorm.DB {
	return tx.Order("sort_order asc").Order("id asc")
}

// GetByID fetches a page with its parent and blocks.
func (s *PageService) GetByID(ctx context.Context, id uint) (*db.Page, error) {
	var page db.Page
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Preload("Blocks", orderedBlocks).
		First(&page, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// GetByFullPath fetches a page by its slug chain, e.g. "about/team".
func (s *PageService) GetByFullPath(ctx context.Context, fullPath string) (*db.Page, error) {
	var page db.Page
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Preload("Blocks", orderedBlocks).
		Where("full_path = ?", normalizeFullPath(fullPath)).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// Parent returns the immediate ancestor, or nil for a root page.
func (s *PageService) Parent(ctx context.Context, page *db.Page) (*db.Page, error) {
	if page == nil || page.ParentID == nil {
		return nil, nil
	}
	if page.Parent != nil && page.Parent.ID == *page.ParentID {
		return page.Parent, nil
	}

	var parent db.Page
	if err := s.db.WithContext(ctx).First(&parent, *page.ParentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &parent, nil
}

// Children returns the immediate descendants in store order.
func (s *PageService) Children(ctx context.Context, page *db.Page) ([]db.Page, error) {
	var children []db.Page
	if err := s.db.WithContext(ctx).Where("parent_id = ?", page.ID).Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

// ActiveChildren returns active descendants ordered by priority, for navigation.
func (s *PageService) ActiveChildren(ctx context.Context, page *db.Page) ([]db.Page, error) {
	var children []db.Page
	err := s.db.WithContext(ctx).
		Where("parent_id = ? AND active = ?", page.ID, true).
		Order("priority desc").Order("id asc").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

// List returns every page ordered by full path.
func (s *PageService) List(ctx context.Context) ([]db.Page, error) {
	var pages []db.Page
	if err := s.db.WithContext(ctx).Order("full_path asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// ListActive returns all active pages with blocks, highest priority first.
func (s *PageService) ListActive(ctx context.Context) ([]db.Page, error) {
	var pages []db.Page
	err := s.db.WithContext(ctx).
		Preload("Blocks", orderedBlocks).
		Where("active = ?", true).
		Order("priority desc").Order("id asc").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ListFeatured returns active featured pages, highest priority first.
func (s *PageService) ListFeatured(ctx context.Context, limit int) ([]db.Page, error) {
	query := s.db.WithContext(ctx).
		Where("active = ? AND featured = ?", true, true).
		Order("priority desc").Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pages []db.Page
	if err := query.Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// ListRoots returns pages without a parent.
func (s *PageService) ListRoots(ctx context.Context) ([]db.Page, error) {
	var pages []db.Page
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("priority desc").Order("id asc").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// Create inserts a new page under input.ParentID (or as a root).
func (s *PageService) Create(ctx context.Context, input PageInput) (*db.Page, error) {
	if err := validatePageInput(input); err != nil {
		return nil, err
	}

	var page db.Page
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := loadParent(tx, input.ParentID)
		if err != nil {
			return err
		}

		applyPageInput(&page, input)
		page.Active = true
		if input.Active != nil {
			page.Active = *input.Active
		}

		slug, err := uniqueSlug(tx, input.ParentID, baseSlug(input), 0)
		if err != nil {
			return err
		}
		page.Slug = slug
		page.FullPath = joinPath(parentPath(parent), slug)
		if depthOf(page.FullPath) > s.maxDepth {
			return ErrPageTooDeep
		}

		return tx.Create(&page).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("page created", zap.Uint("id", page.ID), zap.String("full_path", page.FullPath))
	s.reindex(&page)
	return &page, nil
}

// Update modifies an existing page. Moving a page under itself or one of its
// descendants is rejected with ErrParentCycle. Full paths of the whole subtree
// are recomputed when the slug or parent changes.
func (s *PageService) Update(ctx context.Context, id uint, input PageInput) (*db.Page, error) {
	if err := validatePageInput(input); err != nil {
		return nil, err
	}

	var page db.Page
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&page, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}

		parent, err := loadParent(tx, input.ParentID)
		if err != nil {
			return err
		}
		if parent != nil {
			if err := s.ensureNotDescendant(tx, parent, page.ID); err != nil {
				return err
			}
		}

		oldPath := page.FullPath
		base := Slugify(input.Slug)
		if base == "" {
			// a page keeps its address unless a new slug is given explicitly
			base = page.Slug
		}
		applyPageInput(&page, input)
		if input.Active != nil {
			page.Active = *input.Active
		}
		if base == "" {
			base = baseSlug(input)
		}

		slug, err := uniqueSlug(tx, input.ParentID, base, page.ID)
		if err != nil {
			return err
		}
		page.Slug = slug
		page.FullPath = joinPath(parentPath(parent), slug)

		if depthOf(page.FullPath) > s.maxDepth {
			return ErrPageTooDeep
		}
		if err := tx.Save(&page).Error; err != nil {
			return err
		}
		if oldPath != page.FullPath {
			return s.rewriteDescendantPaths(tx, &page)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("page updated", zap.Uint("id", page.ID), zap.String("full_path", page.FullPath))
	if fresh, err := s.GetByID(ctx, page.ID); err == nil {
		s.reindex(fresh)
		return fresh, nil
	}
	return &page, nil
}

// Delete removes a leaf page and its blocks.
func (s *PageService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page db.Page
		if err := tx.First(&page, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}

		var children int64
		if err := tx.Model(&db.Page{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return ErrPageHasChildren
		}

		if err := tx.Unscoped().Where("page_id = ?", id).Delete(&db.RepeaterBlock{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&page).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info("page deleted", zap.Uint("id", id))
	if s.indexer != nil {
		if err := s.indexer.RemovePage(id); err != nil {
			s.logger.Warn("failed to remove page from search index", zap.Uint("id", id), zap.Error(err))
		}
	}
	return nil
}

// ReplaceBlocks swaps the repeater blocks of a page for the given list, in order.
func (s *PageService) ReplaceBlocks(ctx context.Context, pageID uint, blocks []BlockInput) (*db.Page, error) {
	records := make([]db.RepeaterBlock, 0, len(blocks))
	for i, block := range blocks {
		blockType := strings.ToLower(strings.TrimSpace(block.Type))
		if blockType == "" {
			blockType = db.BlockTypeMarkdown
		}
		switch blockType {
		case db.BlockTypeMarkdown, db.BlockTypeHTML, db.BlockTypeImage:
		case db.BlockTypeVideo:
			if _, ok := parseVideoEmbed(block.Content); !ok {
				return nil, fmt.Errorf("%w: unsupported video url %q", ErrBlockTypeInvalid, block.Content)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrBlockTypeInvalid, block.Type)
		}
		records = append(records, db.RepeaterBlock{
			PageID:    pageID,
			Type:      blockType,
			Content:   block.Content,
			SortOrder: i,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Page{}).Where("id = ?", pageID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPageNotFound
		}
		if err := tx.Unscoped().Where("page_id = ?", pageID).Delete(&db.RepeaterBlock{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return nil, err
	}

	page, err := s.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.reindex(page)
	return page, nil
}

func (s *PageService) reindex(page *db.Page) {
	if s.indexer == nil || page == nil {
		return
	}
	if err := s.indexer.IndexPage(page); err != nil {
		s.logger.Warn("failed to index page", zap.Uint("id", page.ID), zap.Error(err))
	}
}

// ensureNotDescendant walks up from candidate and fails if it reaches pageID.
func (s *PageService) ensureNotDescendant(tx *gorm.DB, candidate *db.Page, pageID uint) error {
	current := candidate
	for depth := 0; current != nil; depth++ {
		if current.ID == pageID {
			return ErrParentCycle
		}
		if depth >= s.maxDepth {
			return ErrPageTooDeep
		}
		if current.ParentID == nil {
			return nil
		}
		var next db.Page
		if err := tx.First(&next, *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		current = &next
	}
	return nil
}

// rewriteDescendantPaths recomputes full_path for every page below root.
func (s *PageService) rewriteDescendantPaths(tx *gorm.DB, root *db.Page) error {
	queue := []db.Page{*root}
	seen := map[uint]struct{}{root.ID: {}}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		var children []db.Page
		if err := tx.Where("parent_id = ?", parent.ID).Find(&children).Error; err != nil {
			return err
		}
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				return ErrParentCycle
			}
			seen[child.ID] = struct{}{}

			child.FullPath = joinPath(parent.FullPath, child.Slug)
			if depthOf(child.FullPath) > s.maxDepth {
				return ErrPageTooDeep
			}
			if err := tx.Model(&db.Page{}).Where("id = ?", child.ID).Update("full_path", child.FullPath).Error; err != nil {
				return err
			}
			queue = append(queue, child)
		}
	}
	return nil
}

func depthOf(fullPath string) int {
	if fullPath == "" {
		return 0
	}
	return strings.Count(fullPath, "/") + 1
}

func validatePageInput(input PageInput) error {
	if strings.TrimSpace(input.NavTitle) == "" && strings.TrimSpace(input.H1) == "" {
		return ErrPageInvalid
	}
	if baseSlug(input) == "" {
		return fmt.Errorf("%w: slug is empty", ErrPageInvalid)
	}
	return nil
}

func applyPageInput(page *db.Page, input PageInput) {
	page.ParentID = input.ParentID
	page.Parent = nil
	page.NavTitle = strings.TrimSpace(input.NavTitle)
	page.H1 = strings.TrimSpace(input.H1)
	page.PageTitle = strings.TrimSpace(input.PageTitle)
	page.BrowserTitle = strings.TrimSpace(input.BrowserTitle)
	page.MetaDescription = strings.TrimSpace(input.MetaDescription)
	page.Image = strings.TrimSpace(input.Image)
	page.Canonical = strings.TrimSpace(input.Canonical)
	page.Featured = input.Featured
	page.Priority = input.Priority
	page.Meta = input.Meta
}

func baseSlug(input PageInput) string {
	for _, candidate := range []string{input.Slug, input.NavTitle, input.H1} {
		if slug := Slugify(candidate); slug != "" {
			return slug
		}
	}
	return ""
}

func loadParent(tx *gorm.DB, parentID *uint) (*db.Page, error) {
	if parentID == nil {
		return nil, nil
	}
	var parent db.Page
	if err := tx.First(&parent, *parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParentNotFound
		}
		return nil, err
	}
	return &parent, nil
}

func parentPath(parent *db.Page) string {
	if parent == nil {
		return ""
	}
	return parent.FullPath
}

// uniqueSlug appends -2, -3, ... until no sibling other than excludeID uses the slug.
func uniqueSlug(tx *gorm.DB, parentID *uint, base string, excludeID uint) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		query := tx.Model(&db.Page{}).Where("slug = ?", candidate)
		if parentID == nil {
			query = query.Where("parent_id IS NULL")
		} else {
			query = query.Where("parent_id = ?", *parentID)
		}
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}

		var count int64
		if err := query.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
