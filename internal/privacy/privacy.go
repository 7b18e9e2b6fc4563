// Package privacy anonymizes endpoints and identities in text that leaves
// the process, such as telemetry events.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`\b(?:https?|wss?|tcp|ssl|mqtts?)://\S+`)
	accountPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// ScrubMessage anonymizes URLs and replaces account addresses and email
// addresses with placeholders
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = accountPattern.ReplaceAllString(message, "0x[ACCOUNT]")
	return emailPattern.ReplaceAllString(message, "[EMAIL]")
}

// AnonymizeURL keeps the scheme and the kind of host and replaces the rest
// with a stable hash, so the same endpoint always maps to the same token
func AnonymizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "url-" + shortHash(raw)
	}
	normalized := strings.ToLower(u.Scheme + "://" + u.Host + u.Path)
	return fmt.Sprintf("url-%s-%s-%s", strings.ToLower(u.Scheme), hostKind(u.Hostname()), shortHash(normalized))
}

func hostKind(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return "domain"
	case ip.IsLoopback():
		return "localhost"
	case ip.IsPrivate(), ip.IsLinkLocalUnicast():
		return "private"
	default:
		return "public"
	}
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:4])
}
