package handler

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
	"github.com/novapages/internal/service"
	"go.uber.org/zap"
)

type childLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// pageView is everything a page template needs.
type pageView struct {
	ID            uint                 `json:"id"`
	FullPath      string               `json:"full_path"`
	NavTitle      string               `json:"nav_title"`
	Meta          service.MetaRecord   `json:"meta"`
	MetaTags      map[string]string    `json:"meta_tags"`
	Canonical     string               `json:"canonical"`
	Breadcrumbs   []service.Seed       `json:"breadcrumbs"`
	FeaturedImage *imagecdn.Descriptor `json:"featured_image,omitempty"`
	Content       template.HTML        `json:"content"`
	Children      []childLink          `json:"children"`
}

// loadActivePage resolves the catch-all path parameter to an active page.
// It writes the error response itself and returns nil on failure.
func (a *API) loadActivePage(c *gin.Context, respond func(status int)) *db.Page {
	page, err := a.pages.GetByFullPath(c.Request.Context(), c.Param("path"))
	if err != nil {
		if errors.Is(err, service.ErrPageNotFound) {
			a.metrics.PageView("not_found")
			respond(http.StatusNotFound)
			return nil
		}
		c.Error(err)
		a.metrics.PageView("error")
		respond(http.StatusInternalServerError)
		return nil
	}
	if !page.IsActive() {
		a.metrics.PageView("inactive")
		respond(http.StatusNotFound)
		return nil
	}
	return page
}

func (a *API) buildPageView(c *gin.Context, page *db.Page) (pageView, error) {
	ctx := c.Request.Context()

	seeds, err := a.pages.Seeds(ctx, page)
	if err != nil {
		return pageView{}, err
	}

	content, err := a.blocks.Render(page.RepeaterBlocks())
	if err != nil {
		a.logger.Warn("skipped unrenderable page blocks", zap.Uint("page_id", page.ID), zap.Error(err))
	}

	children, err := a.pages.ActiveChildren(ctx, page)
	if err != nil {
		return pageView{}, err
	}
	links := make([]childLink, 0, len(children))
	for i := range children {
		links = append(links, childLink{
			Name: children[i].NavTitle,
			URL:  a.pages.URL(&children[i]),
		})
	}

	return pageView{
		ID:            page.ID,
		FullPath:      page.FullPath,
		NavTitle:      page.NavTitle,
		Meta:          service.MetaRecord(page.MetaFields()),
		MetaTags:      page.MetaTags(),
		Canonical:     service.CanonicalURL(page, c.Request, a.proxies),
		Breadcrumbs:   seeds,
		FeaturedImage: a.pages.FeaturedImageLarge(page),
		Content:       content,
		Children:      links,
	}, nil
}

// ShowPage renders an active page by its full path (route "pages.show").
func (a *API) ShowPage(c *gin.Context) {
	page := a.loadActivePage(c, func(status int) {
		a.renderHTML(c, status, "error.html", gin.H{"status": status})
	})
	if page == nil {
		return
	}

	view, err := a.buildPageView(c, page)
	if err != nil {
		a.logger.Error("failed to build page view", zap.Uint("page_id", page.ID), zap.Error(err))
		c.Error(err)
		a.metrics.PageView("error")
		a.renderHTML(c, http.StatusInternalServerError, "error.html", gin.H{"status": http.StatusInternalServerError})
		return
	}

	a.metrics.PageView("ok")
	a.renderHTML(c, http.StatusOK, "page.html", gin.H{"page": view})
}

// GetPageJSON returns the same view model as ShowPage as JSON.
func (a *API) GetPageJSON(c *gin.Context) {
	page := a.loadActivePage(c, func(status int) {
		if status == http.StatusNotFound {
			respondError(c, status, "page not found")
			return
		}
		respondError(c, status, "internal error")
	})
	if page == nil {
		return
	}

	view, err := a.buildPageView(c, page)
	if err != nil {
		a.metrics.PageView("error")
		a.respondPageError(c, err)
		return
	}

	a.metrics.PageView("ok")
	c.JSON(http.StatusOK, view)
}
