package service

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// BlockRenderer turns repeater blocks into sanitized HTML.
type BlockRenderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
	images    imagecdn.Transformer
	imageOpts imagecdn.Options
}

// NewBlockRenderer builds a renderer; image blocks are delivered through images with opts.
func NewBlockRenderer(images imagecdn.Transformer, opts imagecdn.Options) *BlockRenderer {
	if images == nil {
		images = imagecdn.NewCloudinary("demo")
	}
	return &BlockRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		sanitizer: blockSanitizer(),
		images:    images,
		imageOpts: opts,
	}
}

// Render concatenates the rendered blocks in order. A block that fails to
// render is left out; the returned HTML still holds every other block and the
// error joins the individual failures.
func (r *BlockRenderer) Render(blocks []db.RepeaterBlock) (template.HTML, error) {
	var out bytes.Buffer
	var errs []error
	for _, block := range blocks {
		rendered, err := r.renderBlock(block)
		if err != nil {
			errs = append(errs, fmt.Errorf("render block %d: %w", block.ID, err))
			continue
		}
		out.WriteString(`<section class="block block-` + template.HTMLEscapeString(block.Type) + `">`)
		out.Write(rendered)
		out.WriteString("</section>\n")
	}
	return template.HTML(out.String()), errors.Join(errs...)
}

func (r *BlockRenderer) renderBlock(block db.RepeaterBlock) ([]byte, error) {
	switch block.Type {
	case db.BlockTypeHTML:
		return r.sanitizer.SanitizeBytes([]byte(block.Content)), nil
	case db.BlockTypeImage:
		desc := r.images.Transform(block.Content, r.imageOpts)
		if desc == nil {
			return nil, nil
		}
		return []byte(fmt.Sprintf(`<figure><img src="%s" alt="" loading="lazy"></figure>`, template.HTMLEscapeString(desc.URL))), nil
	case db.BlockTypeVideo:
		embed, ok := parseVideoEmbed(block.Content)
		if !ok {
			return nil, fmt.Errorf("unsupported video url %q", block.Content)
		}
		return r.sanitizer.SanitizeBytes([]byte(embed.HTML())), nil
	default:
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(block.Content), &buf); err != nil {
			return nil, err
		}
		return r.sanitizer.SanitizeBytes(buf.Bytes()), nil
	}
}
