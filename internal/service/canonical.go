package service

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// ProxyTrust lists the peers whose X-Forwarded-Proto header is honoured.
// A nil ProxyTrust trusts nobody.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust parses proxies given as IP addresses or CIDR ranges, the same
// form gin.Engine.SetTrustedProxies accepts.
func NewProxyTrust(proxies []string) (*ProxyTrust, error) {
	trust := &ProxyTrust{}
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			trust.prefixes = append(trust.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		trust.prefixes = append(trust.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return trust, nil
}

// Trusts reports whether the direct peer of r is a trusted proxy.
func (p *ProxyTrust) Trusts(r *http.Request) bool {
	if p == nil || r == nil || len(p.prefixes) == 0 {
		return false
	}
	addr, err := remoteAddr(r.RemoteAddr)
	if err != nil {
		return false
	}
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteAddr(raw string) (netip.Addr, error) {
	if addrPort, err := netip.ParseAddrPort(strings.TrimSpace(raw)); err == nil {
		return addrPort.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// BaseCanonical returns the absolute URL of the inbound request without its
// query string. X-Forwarded-Proto only counts when proxies trusts the peer.
func BaseCanonical(r *http.Request, proxies *ProxyTrust) string {
	if r == nil || r.URL == nil {
		return ""
	}
	u := url.URL{
		Scheme: requestScheme(r, proxies),
		Host:   r.Host,
		Path:   r.URL.Path,
	}
	return u.String()
}

// CanonicalURL returns the page's canonical override when set, resolving
// relative overrides against the request origin, and BaseCanonical otherwise.
func CanonicalURL(page CanonicalBearing, r *http.Request, proxies *ProxyTrust) string {
	base := BaseCanonical(r, proxies)
	if page == nil {
		return base
	}
	override := page.CanonicalOverride()
	if override == "" {
		return base
	}

	ref, err := url.Parse(override)
	if err != nil {
		return base
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	origin, err := url.Parse(base)
	if err != nil {
		return override
	}
	return origin.ResolveReference(ref).String()
}

func requestScheme(r *http.Request, proxies *ProxyTrust) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proxies.Trusts(r) {
		switch scheme := strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0])); scheme {
		case "http", "https":
			return scheme
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
