package service

import (
	"crypto/tls"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/novapages/internal/db"
	"github.com/novapages/internal/imagecdn"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "About Us", want: "about-us"},
		{in: "  --Hello,   World!-- ", want: "hello-world"},
		{in: "Crème brûlée 2024", want: "creme-brulee-2024"},
		{in: "关于", want: ""},
		{in: "already-a-slug", want: "already-a-slug"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestBaseCanonicalDropsQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com/pages/about?utm=1", nil)
	require.Equal(t, "http://example.com/pages/about", BaseCanonical(req, nil))

	tlsReq := httptest.NewRequest("GET", "https://secure.example.com/pages/x", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	require.Equal(t, "https://secure.example.com/pages/x", BaseCanonical(tlsReq, nil))

	require.Empty(t, BaseCanonical(nil, nil))
}

func TestBaseCanonicalForwardedProtoFromTrustedProxyOnly(t *testing.T) {
	proxies, err := NewProxyTrust([]string{"10.0.0.0/8", "192.168.1.5"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		proto   string
		proxies *ProxyTrust
		want    string
	}{
		{name: "trusted range", remote: "10.1.2.3:4321", proto: "https, http", proxies: proxies, want: "https://example.com/pages/about"},
		{name: "trusted single address", remote: "192.168.1.5:80", proto: "https", proxies: proxies, want: "https://example.com/pages/about"},
		{name: "untrusted client spoofing", remote: "203.0.113.9:5555", proto: "https", proxies: proxies, want: "http://example.com/pages/about"},
		{name: "no proxies configured", remote: "10.1.2.3:4321", proto: "https", proxies: nil, want: "http://example.com/pages/about"},
		{name: "unknown scheme ignored", remote: "10.1.2.3:4321", proto: "javascript", proxies: proxies, want: "http://example.com/pages/about"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://example.com/pages/about?utm=1", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-Proto", tt.proto)
			require.Equal(t, tt.want, BaseCanonical(req, tt.proxies))
		})
	}
}

func TestNewProxyTrustRejectsGarbage(t *testing.T) {
	_, err := NewProxyTrust([]string{"not-an-ip"})
	require.Error(t, err)

	_, err = NewProxyTrust([]string{"10.0.0.0/99"})
	require.Error(t, err)

	trust, err := NewProxyTrust([]string{" ", ""})
	require.NoError(t, err)
	require.False(t, trust.Trusts(httptest.NewRequest("GET", "/", nil)))
}

func TestCanonicalURLPrefersOverride(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com/pages/about?x=1", nil)

	require.Equal(t, "http://example.com/pages/about", CanonicalURL(&db.Page{}, req, nil))
	require.Equal(t, "https://other.example/about", CanonicalURL(&db.Page{Canonical: "https://other.example/about"}, req, nil))
	require.Equal(t, "http://example.com/about-us", CanonicalURL(&db.Page{Canonical: "/about-us"}, req, nil))
}

func TestBlockRendererSanitizesAndOrders(t *testing.T) {
	r := NewBlockRenderer(imagecdn.NewCloudinary("acme"), imagecdn.Options{Width: 640})

	html, err := r.Render([]db.RepeaterBlock{
		{Type: db.BlockTypeMarkdown, Content: "## Heading\n\n<script>alert(1)</script>text"},
		{Type: db.BlockTypeHTML, Content: `<p onclick="x()">raw</p>`},
		{Type: db.BlockTypeImage, Content: "hero.jpg"},
	})
	require.NoError(t, err)

	out := string(html)
	require.Contains(t, out, "<h2")
	require.NotContains(t, out, "<script>")
	require.NotContains(t, out, "onclick")
	require.Contains(t, out, "https://res.cloudinary.com/acme/image/upload/w_640/hero.jpg")
	require.Less(t, strings.Index(out, "Heading"), strings.Index(out, "raw"))
}
