package service

import (
	"context"
	"errors"

	"github.com/novapages/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seed is one breadcrumb entry.
type Seed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Seeds builds the breadcrumb trail for page: base seeds, then ancestors from
// the root down to the immediate parent, then the page itself.
//
// Ancestors are labelled with their H1 and link to their raw full path; the
// page itself uses its nav title and the resolved pages.show route.
func (s *PageService) Seeds(ctx context.Context, page *db.Page) ([]Seed, error) {
	ancestors, err := s.Ancestors(ctx, page)
	if err != nil {
		return nil, err
	}

	trail := make([]Seed, 0, len(s.base)+len(ancestors)+1)
	trail = append(trail, s.base...)
	for _, ancestor := range ancestors {
		trail = append(trail, Seed{Name: ancestor.H1, URL: ancestor.FullPath})
	}
	trail = append(trail, Seed{Name: page.NavTitle, URL: s.router.PageURL(page.FullURL())})

	if s.metrics != nil {
		s.metrics.BreadcrumbDepth(len(ancestors))
	}
	return trail, nil
}

// Ancestors returns the parent chain of page ordered root first. A chain that
// revisits a page fails with ErrParentCycle; one longer than the configured
// maximum depth fails with ErrPageTooDeep. A dangling parent id ends the chain.
func (s *PageService) Ancestors(ctx context.Context, page *db.Page) ([]db.Page, error) {
	if page == nil {
		return nil, nil
	}

	visited := map[uint]struct{}{}
	if page.ID != 0 {
		visited[page.ID] = struct{}{}
	}

	var chain []db.Page
	preloaded := page.Parent
	parentID := page.ParentID
	for parentID != nil {
		if _, seen := visited[*parentID]; seen {
			s.logger.Error("page parent chain contains a cycle", zap.Uint("page_id", page.ID), zap.Uint("repeated_id", *parentID))
			return nil, ErrParentCycle
		}
		if len(chain) >= s.maxDepth {
			return nil, ErrPageTooDeep
		}

		var parent db.Page
		if preloaded != nil && preloaded.ID == *parentID {
			parent = *preloaded
		} else if err := s.db.WithContext(ctx).First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("page parent is missing", zap.Uint("page_id", page.ID), zap.Uint("parent_id", *parentID))
				break
			}
			return nil, err
		}
		preloaded = nil

		visited[parent.ID] = struct{}{}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
