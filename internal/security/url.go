// Package security guards outbound network access made on behalf of the
// model. Agents fetch model-chosen URLs, so every request goes through SSRF
// validation: private ranges, loopback, link-local, and cloud metadata
// endpoints are refused both at parse time and again at dial time, after
// DNS resolution, to defeat rebinding.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnsafeURL marks a URL rejected by SSRF validation.
var ErrUnsafeURL = errors.New("unsafe URL")

// maxRedirects bounds redirect chains; each hop is re-validated.
const maxRedirects = 3

// MaxResponseSize caps how much of a fetched body agents will read.
const MaxResponseSize int64 = 5 * 1024 * 1024

// blockedHostnames are refused regardless of what they resolve to.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata":                 true,
	"metadata.google.internal": true,
	"metadata.gce.internal":    true,
}

// URLValidator checks outbound URLs and builds hardened HTTP clients.
// The zero value is not usable; construct with NewURLValidator.
type URLValidator struct {
	allowedSchemes map[string]bool
}

// NewURLValidator creates a validator permitting http and https only.
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// Validate statically checks rawURL: scheme, hostname, and literal IPs.
// Hostnames that require DNS are checked again at dial time by Client.
func (v *URLValidator) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if !v.allowedSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("%w: scheme %q not allowed", ErrUnsafeURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrUnsafeURL)
	}
	if blockedHostnames[host] {
		return fmt.Errorf("%w: blocked hostname %q", ErrUnsafeURL, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}
	return nil
}

// Client returns an HTTP client that re-validates resolved IPs at dial time
// and every redirect hop.
func (v *URLValidator) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         v.dialContext,
			MaxIdleConns:        32,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return v.Validate(req.URL.String())
		},
	}
}

// dialContext resolves the target and refuses connections to unsafe IPs.
// Connecting to the checked IP, not the hostname, closes the window between
// validation and connect.
func (v *URLValidator) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := checkIP(ip); err != nil {
			return nil, err
		}
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return nil, fmt.Errorf("%s resolved to unsafe address: %w", host, err)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses resolved for %s", host)
	}

	target := ips[0].String()
	if port != "" {
		target = net.JoinHostPort(target, port)
	}
	return (&net.Dialer{}).DialContext(ctx, network, target)
}

// checkIP refuses addresses outside the public unicast space.
func checkIP(ip net.IP) error {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrUnsafeURL, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrUnsafeURL, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// Covers 169.254.169.254, the cloud metadata endpoint.
		return fmt.Errorf("%w: link-local address %s", ErrUnsafeURL, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrUnsafeURL, ip)
	case ip.IsMulticast():
		return fmt.Errorf("%w: multicast address %s", ErrUnsafeURL, ip)
	}
	return nil
}
