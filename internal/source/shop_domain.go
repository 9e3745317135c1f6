package source

import (
	"regexp"
	"strings"
)

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,61}\.myshopify\.com$`)

// NormalizeShopDomain lowercases the domain and strips scheme and trailing
// slashes, then checks it is a *.myshopify.com hostname.
func NormalizeShopDomain(domain string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(domain))
	normalized = strings.TrimPrefix(normalized, "https://")
	normalized = strings.TrimPrefix(normalized, "http://")
	normalized = strings.TrimRight(normalized, "/")
	if !shopDomainPattern.MatchString(normalized) {
		return "", ErrInvalidShopDomain
	}
	return normalized, nil
}
