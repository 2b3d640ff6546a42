package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// LocaleParam is the query parameter the storefront uses to force a
	// display language.
	LocaleParam = "language"
	// PageParam selects a page of a series listing.
	PageParam = "pageNumber"
)

// StripLocale removes the locale query parameter and re-encodes the remaining
// parameters. Unparsable input is returned unchanged.
func StripLocale(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if _, ok := q[LocaleParam]; !ok {
		return raw
	}
	q.Del(LocaleParam)
	u.RawQuery = q.Encode()
	return u.String()
}

// WithPage returns seriesURL with the page parameter set to page, every other
// parameter preserved, and the locale parameter removed.
func WithPage(seriesURL string, page int) (string, error) {
	u, err := url.Parse(seriesURL)
	if err != nil {
		return "", fmt.Errorf("parse series url: %w", err)
	}
	q := u.Query()
	q.Set(PageParam, strconv.Itoa(page))
	q.Del(LocaleParam)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Resolve joins href against base the way a browser would.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return b.ResolveReference(ref).String(), nil
}

// BookURLs lists the candidate detail page URLs for id in try order:
// primary locale first, secondary locale second.
func BookURLs(base, id string) []string {
	base = strings.TrimRight(base, "/")
	return []string{
		StripLocale(base + "/dp/" + id),
		StripLocale(base + "/zh/dp/" + id),
	}
}

// IdentifierFromURL extracts the product identifier that follows /dp/.
func IdentifierFromURL(raw string) (string, bool) {
	_, rest, ok := strings.Cut(raw, "/dp/")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return "", false
	}
	return id, true
}

// IsURL reports whether the operator input should be treated as a URL.
func IsURL(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "http")
}
