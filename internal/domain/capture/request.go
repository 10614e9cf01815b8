package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// WaitStrategy selects the navigation event to wait for before capturing.
type WaitStrategy string

const (
	WaitLoad             WaitStrategy = "load"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitNetworkIdle      WaitStrategy = "networkidle"
)

// IsValid reports whether the strategy is a known value.
func (w WaitStrategy) IsValid() bool {
	switch w {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
		return true
	}
	return false
}

// RenderRequest describes one screenshot request.
type RenderRequest struct {
	URL           string
	Wait          WaitStrategy
	FullPage      bool
	ExtraWait     time.Duration
	AllowExplicit bool
}

// Normalize fills in defaults for zero-valued options.
func (r RenderRequest) Normalize() RenderRequest {
	if r.Wait == "" {
		r.Wait = WaitLoad
	}
	return r
}

// Validate checks URL syntax and scheme, and rejects targets that would let
// the renderer probe its own network. Returns ErrInvalidURL or
// ErrForbiddenTarget.
func (r RenderRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if isInternalHost(host) {
		return fmt.Errorf("%w: %s", ErrForbiddenTarget, host)
	}
	if r.Wait != "" && !r.Wait.IsValid() {
		return fmt.Errorf("%w: unknown wait strategy %q", ErrInvalidURL, r.Wait)
	}
	if r.ExtraWait < 0 {
		return fmt.Errorf("%w: negative extra wait", ErrInvalidURL)
	}
	return nil
}

// Fingerprint returns the deterministic cache key for this request. Only
// render-affecting options participate; the key is a canonical sorted form,
// never a serialized map.
func (r RenderRequest) Fingerprint() string {
	r = r.Normalize()
	canonical := strings.Join([]string{
		"extra_wait=" + r.ExtraWait.String(),
		"full_page=" + fmt.Sprintf("%t", r.FullPage),
		"url=" + r.URL,
		"wait=" + string(r.Wait),
	}, "&")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func isInternalHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified()
	}
	return false
}

// internalContentMarkers are strings that only show up when the renderer was
// tricked into loading an internal-network or metadata endpoint through a
// public-looking name.
var internalContentMarkers = []string{
	"metadata.google.internal",
	"169.254.169.254",
	"computeMetadata/v1",
	"latest/meta-data",
	"ERR_CONNECTION_REFUSED",
	"ERR_NAME_NOT_RESOLVED",
}

// LooksInternal heuristically flags rendered content that came from an
// internal-network or loopback response.
func LooksInternal(content string) bool {
	for _, marker := range internalContentMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
