package service

import (
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
)

// LargeImageOptions are the transformation settings used for featured images.
func (s *PageService) LargeImageOptions() imagecdn.Options {
	return imagecdn.Options{
		Width:       s.imageW,
		Height:      s.imageH,
		Crop:        "fill",
		Gravity:     "auto",
		FetchFormat: "auto",
	}
}

// FeaturedImageLarge returns the large featured image, or nil when the page has no image.
func (s *PageService) FeaturedImageLarge(page *db.Page) *imagecdn.Descriptor {
	if page == nil || page.Image == "" {
		return nil
	}
	return s.images.Transform(page.Image, s.LargeImageOptions())
}
