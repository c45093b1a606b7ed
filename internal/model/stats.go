package model

import (
	"sort"
	"time"
)

// Stats aggregates blocking and focus-time counters across sessions.
type Stats struct {
	LastUpdated       time.Time      `json:"lastUpdated"`
	WebsitesBlocked   map[string]int `json:"websitesBlocked"`
	TotalBlocked      int            `json:"totalBlocked"`
	TotalFocusTime    time.Duration  `json:"totalFocusTime"`
	SessionsCompleted int            `json:"sessionsCompleted"`
}

// NewStats returns zeroed statistics.
func NewStats(now time.Time) Stats {
	return Stats{
		WebsitesBlocked: make(map[string]int),
		LastUpdated:     now,
	}
}

// DomainCount pairs a domain with the number of times it was blocked.
type DomainCount struct {
	Domain string
	Count  int
}

// TopBlocked returns up to n domains ordered by block count, highest first.
// A non-positive n returns every domain.
func (s Stats) TopBlocked(n int) []DomainCount {
	counts := make([]DomainCount, 0, len(s.WebsitesBlocked))
	for domain, count := range s.WebsitesBlocked {
		counts = append(counts, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Domain < counts[j].Domain
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
