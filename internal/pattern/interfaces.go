// Package pattern decides whether hostnames match domain glob patterns and
// holds the URL helpers shared by the decision pipeline.
package pattern

// DomainMatcher reports whether a normalized domain matches any of its patterns.
type DomainMatcher interface {
	Matches(domain string) bool
}

// DefaultDistractions are well-known distracting sites blocked during every
// session unless explicitly allowed.
var DefaultDistractions = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"tiktok.com", "reddit.com", "netflix.com", "twitch.tv",
	"steam.com", "discord.com", "snapchat.com", "pinterest.com",
}
