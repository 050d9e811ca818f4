// Package webtext fetches a web page and extracts annotatable text from it.
// It guards against SSRF (HTTPS-only, private-IP and DNS-rebinding checks,
// validated redirects) and reduces the page to its readable article content
// before the text reaches the annotation pipeline.
package webtext

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pre-compiled CIDR networks for reserved ranges not covered by net.IP helpers.
var (
	cgnat    *net.IPNet // 100.64.0.0/10 carrier-grade NAT
	v6unique *net.IPNet // fc00::/7 IPv6 unique local
	v6link   *net.IPNet // fe80::/10 IPv6 link-local
)

func init() {
	for _, cidr := range []struct {
		s      string
		target **net.IPNet
	}{
		{"100.64.0.0/10", &cgnat},
		{"fc00::/7", &v6unique},
		{"fe80::/10", &v6link},
	} {
		_, parsed, err := net.ParseCIDR(cidr.s)
		if err != nil {
			panic("invalid reserved CIDR: " + err.Error())
		}
		*cidr.target = parsed
	}
}

// ValidateURL checks a URL is safe to fetch: HTTPS, not localhost, not a
// local domain, not a private IP literal.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

// IsPrivateIP reports whether an IP is in a private or reserved range,
// including IPv6-mapped IPv4 addresses.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return true
		}
	}
	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 8 * 1024 * 1024 // 8MB
	defaultUserAgent   = "semtag/0.1"
)

// Fetcher retrieves web pages with the SSRF checks applied at dial time,
// so DNS rebinding cannot bypass ValidateURL.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the request User-Agent.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize caps the response body size in bytes.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithTimeout sets the total fetch timeout.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = timeout
	}
}

// NewFetcher creates a web fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	f := &Fetcher{
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext:         safeDialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if err := ValidateURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch validates and retrieves a page, returning its body and final URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, nil, fmt.Errorf("page exceeds %d bytes", f.maxBodySize)
	}
	return body, resp.Request.URL, nil
}

// Text fetches a page and extracts its annotatable text.
func (f *Fetcher) Text(ctx context.Context, rawURL string) (string, error) {
	body, finalURL, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	doc, err := Extract(body, finalURL)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}
