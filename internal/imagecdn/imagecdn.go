// Package imagecdn builds delivery URLs for images hosted on, or fetched
// through, a Cloudinary-style image CDN. No image bytes are touched here.
package imagecdn

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Options describes a transformation request.
type Options struct {
	Width       int
	Height      int
	Crop        string
	Gravity     string
	FetchFormat string
}

// Descriptor is a renderable reference to a transformed image.
type Descriptor struct {
	URL     string  `json:"url"`
	Source  string  `json:"source"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Options Options `json:"-"`
}

// Transformer turns an image reference plus options into a descriptor.
type Transformer interface {
	Transform(ref string, opts Options) *Descriptor
}

// Cloudinary assembles res.cloudinary.com delivery URLs.
type Cloudinary struct {
	CloudName string
	// BaseURL defaults to https://res.cloudinary.com.
	BaseURL string
	// Origin is the public base URL of this site. Root-relative references
	// such as /static/uploads/x.png are resolved against it and fetched.
	Origin string
}

// NewCloudinary returns a transformer for the given cloud name.
func NewCloudinary(cloudName string) *Cloudinary {
	return &Cloudinary{CloudName: strings.TrimSpace(cloudName)}
}

// WithOrigin returns a copy of c that resolves root-relative references
// against origin.
func (c *Cloudinary) WithOrigin(origin string) *Cloudinary {
	clone := *c
	clone.Origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	return &clone
}

// Transform returns nil for an empty reference. Absolute http(s) references,
// and root-relative ones when an Origin is set, are delivered through the
// fetch type; everything else is treated as an uploaded public id.
func (c *Cloudinary) Transform(ref string, opts Options) *Descriptor {
	ref = c.resolve(strings.TrimSpace(ref))
	if ref == "" {
		return nil
	}

	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://res.cloudinary.com"
	}

	deliveryType := "upload"
	source := strings.TrimPrefix(ref, "/")
	if isRemote(ref) {
		deliveryType = "fetch"
		source = url.PathEscape(ref)
	}

	segments := []string{base, c.CloudName, "image", deliveryType}
	if transforms := transformation(opts); transforms != "" {
		segments = append(segments, transforms)
	}
	segments = append(segments, source)

	return &Descriptor{
		URL:     strings.Join(segments, "/"),
		Source:  ref,
		Width:   opts.Width,
		Height:  opts.Height,
		Options: opts,
	}
}

// transformation renders options as a Cloudinary transformation component,
// parameters sorted by key.
func transformation(opts Options) string {
	params := map[string]string{}
	if opts.Width > 0 {
		params["w"] = strconv.Itoa(opts.Width)
	}
	if opts.Height > 0 {
		params["h"] = strconv.Itoa(opts.Height)
	}
	if v := strings.TrimSpace(opts.Crop); v != "" {
		params["c"] = v
	}
	if v := strings.TrimSpace(opts.Gravity); v != "" {
		params["g"] = v
	}
	if v := strings.TrimSpace(opts.FetchFormat); v != "" {
		params["f"] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s_%s", k, params[k]))
	}
	return strings.Join(parts, ",")
}

func (c *Cloudinary) resolve(ref string) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "/") && c.Origin != "":
		return strings.TrimRight(c.Origin, "/") + ref
	}
	return ref
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
