package service

import (
	"net/url"
	"strings"
	"testing"

	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseVideoEmbed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          string
		wantPlatform string
		wantURL      string
	}{
		{
			name:         "youtube watch",
			raw:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1m30s",
			wantPlatform: "youtube",
			wantURL:      "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?playsinline=1&rel=0&start=90",
		},
		{
			name:         "youtube short link",
			raw:          "youtu.be/dQw4w9WgXcQ",
			wantPlatform: "youtube",
			wantURL:      "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?playsinline=1&rel=0",
		},
		{
			name:         "vimeo",
			raw:          "https://vimeo.com/76979871",
			wantPlatform: "vimeo",
			wantURL:      "https://player.vimeo.com/video/76979871",
		},
		{
			name:         "bilibili",
			raw:          "<https://www.bilibili.com/video/BV1x5411c7mD?p=2>",
			wantPlatform: "bilibili",
			wantURL:      "https://player.bilibili.com/player.html?autoplay=0&bvid=BV1x5411c7mD&page=2",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			embed, ok := parseVideoEmbed(tt.raw)
			require.True(t, ok)
			require.Equal(t, tt.wantPlatform, embed.Platform)
			require.Equal(t, tt.wantURL, embed.EmbedURL)
		})
	}
}

func TestParseVideoEmbedRejectsUnknownHosts(t *testing.T) {
	for _, raw := range []string{"", "https://example.com/video/1", "ftp://youtube.com/watch?v=x", "https://vimeo.com/channels/staff"} {
		_, ok := parseVideoEmbed(raw)
		require.False(t, ok, raw)
	}
}

func TestVideoStartSeconds(t *testing.T) {
	require.Equal(t, 42, videoStartSeconds(url.Values{"t": {"42"}}))
	require.Equal(t, 3723, videoStartSeconds(url.Values{"start": {"1h2m3s"}}))
	require.Zero(t, videoStartSeconds(url.Values{}))
}

func TestBlockRendererKeepsVideoIframe(t *testing.T) {
	renderer := NewBlockRenderer(nil, imagecdn.Options{Width: 640})
	out, err := renderer.Render([]db.RepeaterBlock{
		{Type: db.BlockTypeVideo, Content: "https://vimeo.com/76979871"},
		{Type: db.BlockTypeHTML, Content: `<iframe src="https://evil.example/x"></iframe>`},
	})
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, `<iframe src="https://player.vimeo.com/video/76979871"`)
	require.Equal(t, 1, strings.Count(html, "<iframe"))
	require.NotContains(t, html, "evil.example")
}

func TestBlockRendererSkipsUnsupportedVideo(t *testing.T) {
	renderer := NewBlockRenderer(nil, imagecdn.Options{Width: 640})
	out, err := renderer.Render([]db.RepeaterBlock{
		{Type: db.BlockTypeMarkdown, Content: "before"},
		{Model: gorm.Model{ID: 7}, Type: db.BlockTypeVideo, Content: "https://example.com/clip"},
		{Type: db.BlockTypeMarkdown, Content: "after"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "render block 7")

	html := string(out)
	require.Contains(t, html, "<p>before</p>")
	require.Contains(t, html, "<p>after</p>")
	require.NotContains(t, html, "block-video")
}
