package pattern

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/common"
)

var internalPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
}

// IsPlatformInternal reports whether rawURL is a browser-internal page such as
// the new-tab page. It is pure string matching.
func IsPlatformInternal(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ExtractDomain returns the lowercased hostname of rawURL without a leading "www.".
// Unparseable input is returned unchanged.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// NormalizeURL drops the query string and fragment.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Validate checks that rawURL is absolute.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: %q is not absolute", common.ErrInvalidURL, rawURL)
	}
	return nil
}
