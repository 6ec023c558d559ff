package middleware

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
)

// MaxXFFHeaderLength is the maximum allowed length for X-Forwarded-For header
// to prevent header injection attacks.
const MaxXFFHeaderLength = 500

type clientMetadataKey struct{}

type clientMetadata struct {
	ip        string
	userAgent string
}

// WithClientMetadata stores request provenance on the context. Exposed for
// tests and non-HTTP callers; the Metadata middleware is the normal producer.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientMetadataKey{}, clientMetadata{ip: ip, userAgent: userAgent})
}

// ClientIP returns the client IP recorded on the context, or "".
func ClientIP(ctx context.Context) string {
	if md, ok := ctx.Value(clientMetadataKey{}).(clientMetadata); ok {
		return md.ip
	}
	return ""
}

// UserAgent returns the User-Agent recorded on the context, or "".
func UserAgent(ctx context.Context) string {
	if md, ok := ctx.Value(clientMetadataKey{}).(clientMetadata); ok {
		return md.userAgent
	}
	return ""
}

// MetadataConfig holds configuration for the metadata middleware.
type MetadataConfig struct {
	// TrustedProxies is a list of IP prefixes (CIDR notation) that are trusted
	// to set X-Forwarded-For headers. If empty, XFF is never trusted.
	TrustedProxies []netip.Prefix
}

// Metadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
func Metadata(cfg *MetadataConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &MetadataConfig{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractClientIP(r, cfg.TrustedProxies)
			userAgent := r.Header.Get("User-Agent")

			ctx := WithClientMetadata(r.Context(), ip, userAgent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractClientIP extracts the client IP with trusted proxy validation.
func extractClientIP(r *http.Request, trusted []netip.Prefix) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := r.Header.Get("X-Real-IP"); xri != "" && isTrustedProxy(remoteIP, trusted) {
			if len(xri) <= MaxXFFHeaderLength {
				return strings.TrimSpace(xri)
			}
		}
		return remoteIP
	}

	// XFF header present - only trust if request came from trusted proxy
	if !isTrustedProxy(remoteIP, trusted) {
		return remoteIP
	}

	// Size limit to prevent header injection attacks
	if len(xff) > MaxXFFHeaderLength {
		return remoteIP
	}

	// Parse first IP in XFF chain (original client)
	var clientIP string
	if before, _, ok := strings.Cut(xff, ","); ok {
		clientIP = strings.TrimSpace(before)
	} else {
		clientIP = strings.TrimSpace(xff)
	}

	if _, err := netip.ParseAddr(clientIP); err != nil {
		return remoteIP
	}

	return clientIP
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr extracts the IP from RemoteAddr (strips port).
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}

	// Handle IPv6 with brackets: [::1]:port
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(strings.Split(remoteAddr, "]:")[0], "[]")
	}

	// Handle IPv4: 127.0.0.1:port
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}

	return remoteAddr
}
