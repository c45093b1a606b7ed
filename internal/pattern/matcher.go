package pattern

import (
	"regexp"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/model"
)

// GlobMatcher matches domains against glob patterns where '*' stands for any
// run of characters. A pattern matches the whole domain or any of its
// subdomains, so "wikipedia.org" matches "en.wikipedia.org" but "x.com" does
// not match "dropbox.com". Patterns are lowercased; domains are expected to
// arrive lowercased from ExtractDomain.
type GlobMatcher struct {
	compiled []*regexp.Regexp
}

// NewGlobMatcher pre-compiles the given patterns. Empty patterns are skipped.
func NewGlobMatcher(patterns []string) *GlobMatcher {
	m := &GlobMatcher{
		compiled: make([]*regexp.Regexp, 0, len(patterns)),
	}

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m.compiled = append(m.compiled, compileGlob(strings.ToLower(p)))
	}

	return m
}

// compileGlob quotes everything except '*', which becomes ".*", and anchors
// the result at a label boundary.
func compileGlob(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile(`^(?:.*\.)?` + strings.Join(parts, ".*") + `$`)
}

// Matches reports whether domain matches any pattern. An empty matcher never matches.
func (m *GlobMatcher) Matches(domain string) bool {
	for _, re := range m.compiled {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// Matches reports whether domain matches any of patterns.
func Matches(domain string, patterns []string) bool {
	return NewGlobMatcher(patterns).Matches(domain)
}

// Rules is a compiled snapshot of a session rule set. The built-in
// distraction list is merged into the deny patterns once, at construction.
type Rules struct {
	allow      *GlobMatcher
	deny       *GlobMatcher
	Strictness model.Strictness
}

// CompileRules builds the allow and deny matchers for a rule set.
func CompileRules(rs model.RuleSet) *Rules {
	deny := make([]string, 0, len(rs.BlockedDomains)+len(DefaultDistractions))
	deny = append(deny, rs.BlockedDomains...)
	deny = append(deny, DefaultDistractions...)

	strictness := rs.Strictness
	if strictness == "" {
		strictness = model.StrictnessStandard
	}

	return &Rules{
		allow:      NewGlobMatcher(rs.AllowedDomains),
		deny:       NewGlobMatcher(deny),
		Strictness: strictness,
	}
}

// Allowed reports whether the domain is on the allow list.
func (r *Rules) Allowed(domain string) bool {
	return r.allow.Matches(domain)
}

// Denied reports whether the domain is on the deny list or the built-in
// distraction list. Callers must check Allowed first: allow always wins.
func (r *Rules) Denied(domain string) bool {
	return r.deny.Matches(domain)
}
