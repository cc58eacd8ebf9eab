package service

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	videoEmbedSrcPattern = regexp.MustCompile(
		`^https://(?:www\.youtube-nocookie\.com/embed/|player\.vimeo\.com/video/|player\.bilibili\.com/player\.html\?)`,
	)
	videoTimePattern = regexp.MustCompile(`(?i)(\d+)(h|m|s)`)
)

// blockSanitizer 在 UGC 策略上额外放行受信任的视频 iframe。
func blockSanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("iframe")
	policy.AllowAttrs("class", "data-video-platform").OnElements("div")
	policy.AllowAttrs("src").Matching(videoEmbedSrcPattern).OnElements("iframe")
	policy.AllowAttrs("title", "allow", "allowfullscreen", "loading", "referrerpolicy").OnElements("iframe")
	return policy
}

type videoEmbed struct {
	Platform string
	EmbedURL string
}

func (v videoEmbed) HTML() string {
	return fmt.Sprintf(
		`<div class="video-embed" data-video-platform="%s"><iframe src="%s" title="%s video" loading="lazy" allow="encrypted-media; picture-in-picture; fullscreen" allowfullscreen referrerpolicy="strict-origin-when-cross-origin"></iframe></div>`,
		html.EscapeString(v.Platform),
		html.EscapeString(v.EmbedURL),
		html.EscapeString(v.Platform),
	)
}

// parseVideoEmbed 将视频页面链接转换为可嵌入的播放器地址。
func parseVideoEmbed(raw string) (videoEmbed, bool) {
	value := strings.Trim(strings.TrimSpace(raw), "<>")
	if value == "" {
		return videoEmbed{}, false
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return videoEmbed{}, false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be" || isHostOrSubdomain(host, "youtube.com"):
		return youtubeEmbed(u)
	case isHostOrSubdomain(host, "vimeo.com"):
		return vimeoEmbed(u)
	case isHostOrSubdomain(host, "bilibili.com"):
		return bilibiliEmbed(u)
	}
	return videoEmbed{}, false
}

func youtubeEmbed(u *url.URL) (videoEmbed, bool) {
	path := strings.Trim(u.Path, "/")
	var id string
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		id = path
	} else if path == "watch" {
		id = u.Query().Get("v")
	} else {
		for _, prefix := range []string{"shorts/", "embed/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				id = strings.TrimPrefix(path, prefix)
				break
			}
		}
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return videoEmbed{}, false
	}

	params := url.Values{}
	params.Set("rel", "0")
	params.Set("playsinline", "1")
	if start := videoStartSeconds(u.Query()); start > 0 {
		params.Set("start", strconv.Itoa(start))
	}
	return videoEmbed{
		Platform: "youtube",
		EmbedURL: "https://www.youtube-nocookie.com/embed/" + url.PathEscape(id) + "?" + params.Encode(),
	}, true
}

func vimeoEmbed(u *url.URL) (videoEmbed, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := segments[len(segments)-1]
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return videoEmbed{}, false
	}
	return videoEmbed{Platform: "vimeo", EmbedURL: "https://player.vimeo.com/video/" + id}, true
}

func bilibiliEmbed(u *url.URL) (videoEmbed, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "video" || segments[1] == "" {
		return videoEmbed{}, false
	}

	params := url.Values{}
	id := segments[1]
	switch lower := strings.ToLower(id); {
	case strings.HasPrefix(lower, "bv"):
		params.Set("bvid", id)
	case strings.HasPrefix(lower, "av"):
		params.Set("aid", strings.TrimPrefix(lower, "av"))
	default:
		return videoEmbed{}, false
	}
	page := 1
	if p, err := strconv.Atoi(u.Query().Get("p")); err == nil && p > 0 {
		page = p
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("autoplay", "0")
	return videoEmbed{Platform: "bilibili", EmbedURL: "https://player.bilibili.com/player.html?" + params.Encode()}, true
}

// videoStartSeconds 解析 t=90 或 t=1h2m3s 形式的起始时间。
func videoStartSeconds(query url.Values) int {
	value := query.Get("start")
	if value == "" {
		value = query.Get("t")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return max(seconds, 0)
	}

	total := 0
	for _, match := range videoTimePattern.FindAllStringSubmatch(value, -1) {
		n, _ := strconv.Atoi(match[1])
		switch strings.ToLower(match[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

func isHostOrSubdomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
