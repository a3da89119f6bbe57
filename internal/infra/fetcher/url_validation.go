// Package fetcher retrieves article pages and extracts their readable text.
package fetcher

import (
	"fmt"
	"net"
	"net/url"
)

// validateURL validates a URL before making an HTTP request. When
// denyPrivateIPs is set the hostname is resolved and every address must be
// public.
//
// Blocked IP ranges (when denyPrivateIPs is true):
//   - 127.0.0.0/8, ::1 (loopback)
//   - 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, fc00::/7 (private)
//   - 169.254.0.0/16, fe80::/10 (link-local)
//   - 0.0.0.0, :: (unspecified)
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme '%s' not allowed (only http/https)", ErrInvalidURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrInvalidURL)
	}

	if !denyPrivateIPs {
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", ErrInvalidURL, hostname, err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname '%s' resolves to private IP %s", ErrPrivateIP, hostname, ip.String())
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is loopback, private, link-local or unspecified.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
