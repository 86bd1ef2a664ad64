package match

import (
	"fmt"
	"testing"
	"time"

	"exclusivewire/internal/domain"
)

var rankNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func profile(id string, beats ...string) domain.JournalistProfile {
	p := domain.JournalistProfile{
		UserID:            id,
		ResponseTime:      "flexible",
		ExclusiveInterest: "low",
		TrustScore:        0,
		LastActiveAt:      rankNow.AddDate(0, -6, 0).Format(time.RFC3339),
	}
	for _, b := range beats {
		p.Beats = append(p.Beats, domain.BeatDetail{Category: b, Expertise: domain.ExpertiseIntermediate})
	}
	return p
}

func TestRankScoreComponents(t *testing.T) {
	p := profile("j1")
	p.Beats = []domain.BeatDetail{
		{Category: "fintech", Expertise: domain.ExpertiseExpert},
		{Category: "ai", Expertise: domain.ExpertiseIntermediate},
		{Category: "biotech", Expertise: domain.ExpertiseExpert},
	}
	p.ResponseTime = "immediate"
	p.ExclusiveInterest = "high"
	p.TrustScore = 90
	p.LastActiveAt = rankNow.Add(-48 * time.Hour).Format(time.RFC3339)
	p.Completeness = 80
	p.Verified = true

	got := Rank([]domain.JournalistProfile{p}, []string{"fintech", "ai"}, rankNow)
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	m := got[0]
	// two matching beats (20) + one expert match (10) + immediate (15) +
	// high interest (15) + trust 90*0.1 (9) + active within 7d (5) +
	// completeness 80*0.05 (4) = 78
	if m.Score != 78 {
		t.Fatalf("score = %d, want 78", m.Score)
	}
	wantBeats := []string{"fintech", "ai"}
	if len(m.MatchingBeats) != len(wantBeats) {
		t.Fatalf("matching beats = %v, want %v", m.MatchingBeats, wantBeats)
	}
	for i, b := range wantBeats {
		if m.MatchingBeats[i] != b {
			t.Fatalf("matching beats = %v, want %v", m.MatchingBeats, wantBeats)
		}
	}
	wantReasons := []string{
		"Covers fintech, ai",
		"Expert-level knowledge in relevant beats",
		"Fast response time",
		"High interest in exclusives",
		"Verified journalist",
		"High trust score",
	}
	if len(m.Reasons) != len(wantReasons) {
		t.Fatalf("reasons = %v, want %v", m.Reasons, wantReasons)
	}
	for i, r := range wantReasons {
		if m.Reasons[i] != r {
			t.Fatalf("reason[%d] = %q, want %q", i, m.Reasons[i], r)
		}
	}
}

func TestRankSingleExpertBeat(t *testing.T) {
	p := profile("j1")
	p.Beats = []domain.BeatDetail{{Category: "Technology", Expertise: domain.ExpertiseExpert}}
	p.ResponseTime = "immediate"
	p.ExclusiveInterest = "high"
	p.TrustScore = 90
	p.LastActiveAt = rankNow.Format(time.RFC3339)
	p.Completeness = 80

	got := Rank([]domain.JournalistProfile{p}, []string{"Technology"}, rankNow)
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	// one matching beat (10) + expert match (10) + immediate (15) +
	// high interest (15) + trust 90*0.1 (9) + active today (5) +
	// completeness 80*0.05 (4) = 68
	if got[0].Score != 68 {
		t.Fatalf("score = %d, want 68", got[0].Score)
	}
}

func TestRankExcludesOffBeatCandidates(t *testing.T) {
	offBeat := profile("j-sports", "Sports")
	offBeat.ResponseTime = "immediate"
	offBeat.ExclusiveInterest = "high"
	offBeat.TrustScore = 90
	onBeat := profile("j-tech", "Technology")

	got := Rank([]domain.JournalistProfile{offBeat, onBeat}, []string{"Technology"}, rankNow)
	if len(got) != 1 {
		t.Fatalf("expected only the on-beat candidate, got %d", len(got))
	}
	if got[0].JournalistID != "j-tech" {
		t.Fatalf("top = %s, want j-tech", got[0].JournalistID)
	}

	got = Rank([]domain.JournalistProfile{offBeat}, []string{"Technology"}, rankNow)
	if len(got) != 0 {
		t.Fatalf("off-beat candidate ranked: %+v", got)
	}
}

func TestRankRecencyTiers(t *testing.T) {
	within30 := profile("j1", "fintech")
	within30.LastActiveAt = rankNow.AddDate(0, 0, -20).Format(time.RFC3339)
	stale := profile("j2", "fintech")
	stale.LastActiveAt = rankNow.AddDate(0, 0, -90).Format(time.RFC3339)

	got := Rank([]domain.JournalistProfile{stale, within30}, []string{"fintech"}, rankNow)
	if len(got) != 2 {
		t.Fatalf("expected two matches, got %d", len(got))
	}
	// matching beat (10) + low interest (5) + within 30d (3) = 18
	if got[0].JournalistID != "j1" || got[0].Score != 18 {
		t.Fatalf("top = %s score %d, want j1 score 18", got[0].JournalistID, got[0].Score)
	}
	if got[1].Score != 15 {
		t.Fatalf("stale score = %d, want 15", got[1].Score)
	}
}

func TestRankTieBreaksOnJournalistID(t *testing.T) {
	a := profile("j-b", "fintech")
	b := profile("j-a", "fintech")
	got := Rank([]domain.JournalistProfile{a, b}, []string{"fintech"}, rankNow)
	if len(got) != 2 {
		t.Fatalf("expected two matches, got %d", len(got))
	}
	if got[0].JournalistID != "j-a" || got[1].JournalistID != "j-b" {
		t.Fatalf("order = %s, %s; want j-a first", got[0].JournalistID, got[1].JournalistID)
	}
}

func TestRankCapsAtMaxMatches(t *testing.T) {
	var candidates []domain.JournalistProfile
	for i := 0; i < MaxMatches+15; i++ {
		candidates = append(candidates, profile(fmt.Sprintf("j%03d", i), "fintech"))
	}
	got := Rank(candidates, []string{"fintech"}, rankNow)
	if len(got) != MaxMatches {
		t.Fatalf("len = %d, want %d", len(got), MaxMatches)
	}
}
