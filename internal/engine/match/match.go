// Package match ranks journalist profiles against an announcement's beat tags.
// Scoring is pure: candidates in, ordered matches out, no storage access.
package match

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"exclusivewire/internal/domain"
)

// MaxMatches bounds the result list.
const MaxMatches = 20

// Match is one ranked candidate with the human-readable rationale.
type Match struct {
	JournalistID  string   `json:"journalist_id"`
	Score         int      `json:"score"`
	MatchingBeats []string `json:"matching_beats"`
	Reasons       []string `json:"reasons"`
}

// Rank scores candidates against the announcement's beat tags and returns at
// most MaxMatches results, highest score first. Only candidates covering at
// least one of the required beats are eligible; the rest are dropped before
// ranking. Ties break on ascending journalist ID so repeated calls return
// the same order.
func Rank(candidates []domain.JournalistProfile, beatTags []string, now time.Time) []Match {
	wanted := make(map[string]bool, len(beatTags))
	for _, tag := range beatTags {
		wanted[tag] = true
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		m := score(c, wanted, now)
		if len(m.MatchingBeats) == 0 {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].JournalistID < matches[j].JournalistID
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}

func score(c domain.JournalistProfile, wanted map[string]bool, now time.Time) Match {
	var matching []string
	expertCount := 0
	for _, beat := range c.Beats {
		if !wanted[beat.Category] {
			continue
		}
		matching = append(matching, beat.Category)
		if beat.Expertise == domain.ExpertiseExpert {
			expertCount++
		}
	}

	total := float64(len(matching)*10 + expertCount*10)

	switch c.ResponseTime {
	case "immediate":
		total += 15
	case "same-day":
		total += 10
	case "within-week":
		total += 5
	}

	switch c.ExclusiveInterest {
	case "high":
		total += 15
	case "medium":
		total += 10
	default:
		total += 5
	}

	total += float64(c.TrustScore) * 0.1

	if lastActive, err := time.Parse(time.RFC3339, c.LastActiveAt); err == nil {
		days := now.Sub(lastActive).Hours() / 24
		if days <= 7 {
			total += 5
		} else if days <= 30 {
			total += 3
		}
	}

	total += float64(c.Completeness) * 0.05

	return Match{
		JournalistID:  c.UserID,
		Score:         int(math.Round(total)),
		MatchingBeats: matching,
		Reasons:       reasons(c, matching, expertCount),
	}
}

func reasons(c domain.JournalistProfile, matching []string, expertCount int) []string {
	var out []string
	if len(matching) > 0 {
		out = append(out, fmt.Sprintf("Covers %s", strings.Join(matching, ", ")))
	}
	if expertCount > 0 {
		out = append(out, "Expert-level knowledge in relevant beats")
	}
	if c.ResponseTime == "immediate" {
		out = append(out, "Fast response time")
	}
	if c.ExclusiveInterest == "high" {
		out = append(out, "High interest in exclusives")
	}
	if c.Verified {
		out = append(out, "Verified journalist")
	}
	if c.TrustScore > 80 {
		out = append(out, "High trust score")
	}
	return out
}
