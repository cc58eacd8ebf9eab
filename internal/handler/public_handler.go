package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/novapages/internal/service"
)

type featuredItem struct {
	ID       uint   `json:"id"`
	NavTitle string `json:"nav_title"`
	URL      string `json:"url"`
	Image    string `json:"image,omitempty"`
	Priority int    `json:"priority"`
}

// GetMeta returns meta fields for a static route. The "default" query value,
// when present, is used for all four fields if no page matches.
func (a *API) GetMeta(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		respondError(c, http.StatusBadRequest, "slug is required")
		return
	}

	var def service.MetaDefault
	if value, ok := c.GetQuery("default"); ok {
		def = service.MetaText(value)
	}

	result, err := a.pages.Meta(c.Request.Context(), slug, def)
	if err != nil {
		a.respondPageError(c, err)
		return
	}

	payload := gin.H{
		"found":            result.Found(),
		"page_title":       result.PageTitle,
		"browser_title":    result.BrowserTitle,
		"meta_description": result.MetaDescription,
		"h1":               result.H1,
	}
	if result.Page != nil {
		payload["page_id"] = result.Page.ID
		payload["full_path"] = result.Page.FullPath
	}
	c.JSON(http.StatusOK, payload)
}

// SearchPages runs a full text query over active pages.
func (a *API) SearchPages(c *gin.Context) {
	if a.search == nil {
		respondError(c, http.StatusServiceUnavailable, "search is unavailable")
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	limit := parsePositiveInt(c.DefaultQuery("limit", "10"), 10)

	result, err := a.search.Search(query, limit)
	if err != nil {
		a.metrics.SearchQuery(false)
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "search failed")
		return
	}

	a.metrics.SearchQuery(true)
	c.JSON(http.StatusOK, result)
}

// ListFeatured returns active featured pages ordered by priority.
func (a *API) ListFeatured(c *gin.Context) {
	limit := parsePositiveInt(c.DefaultQuery("limit", "6"), 6)
	pages, err := a.pages.ListFeatured(c.Request.Context(), limit)
	if err != nil {
		a.respondPageError(c, err)
		return
	}

	items := make([]featuredItem, 0, len(pages))
	for i := range pages {
		item := featuredItem{
			ID:       pages[i].ID,
			NavTitle: pages[i].NavTitle,
			URL:      a.pages.URL(&pages[i]),
			Priority: pages[i].Priority,
		}
		if img := a.pages.FeaturedImageLarge(&pages[i]); img != nil {
			item.Image = img.URL
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"pages": items})
}
