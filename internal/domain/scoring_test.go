package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestKeywordScorer(t *testing.T) {
	scorer := KeywordScorer{}
	now := time.Now()

	t.Run("no keyword hits", func(t *testing.T) {
		s := scorer.Score("geopolitics", "Quiet day in parliament", "", now)
		assert.Equal(t, 20, s.Severity)
		assert.Equal(t, 55, s.Confidence)
		// 20*0.7 + 55*0.3 = 30.5 → 30
		assert.Equal(t, 30, s.Priority)
	})

	t.Run("cti keywords use cti list and base", func(t *testing.T) {
		s := scorer.Score("cti", "New ransomware exploits CVE in the wild", "", now)
		// hits: ransomware, cve, exploit = 3
		assert.Equal(t, 65, s.Severity)
		assert.Equal(t, 84, s.Confidence)
		assert.Equal(t, 70, s.Priority) // 65*0.7 + 84*0.3 = 70.7 → 70
	})

	t.Run("geo keywords ignored for cti", func(t *testing.T) {
		s := scorer.Score("cti", "Missile strike at the border", "", now)
		assert.Equal(t, 20, s.Severity)
	})

	t.Run("severity clamps at 100", func(t *testing.T) {
		s := scorer.Score("cti", "phishing ransomware malware cve breach ddos apt exploit", "", now)
		assert.Equal(t, 100, s.Severity)
		assert.Equal(t, 100, s.Confidence)
		assert.Equal(t, 100, s.Priority)
	})

	t.Run("scores stay in range", func(t *testing.T) {
		for _, text := range []string{"", "war missile strike protest ceasefire border sanctions military", "x"} {
			s := scorer.Score("geopolitics", text, text, now)
			assert.GreaterOrEqual(t, s.Severity, 0)
			assert.LessOrEqual(t, s.Severity, 100)
			assert.GreaterOrEqual(t, s.Confidence, 0)
			assert.LessOrEqual(t, s.Confidence, 100)
			assert.GreaterOrEqual(t, s.Priority, 0)
			assert.LessOrEqual(t, s.Priority, 100)
		}
	})
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	tests := []struct {
		name     string
		age      time.Duration
		expected int
	}{
		{"fresh event gets max", 0, 25},
		{"24h old keeps roughly half", 24 * time.Hour, 13}, // 25/2 = 12.5 → 13
		{"72h old decays low", 72 * time.Hour, 6},          // 25/4 = 6.25 → 6
		{"future timestamp clamps to max", -2 * time.Hour, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RecencyScore(now.Add(-tt.age), 25))
		})
	}

	t.Run("never reaches zero", func(t *testing.T) {
		// Asymptotic decay: even very old events keep a fractional score,
		// though rounding eventually lands on 0 points.
		assert.GreaterOrEqual(t, RecencyScore(now.Add(-30*24*time.Hour), 25), 0)
	})
}

func TestWatchlistScorer(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	scorer := WatchlistScorer{
		Watchlist: []string{"ransomware", "iran", "election"},
		Weights:   DefaultWeights(),
	}

	t.Run("fresh cti event with hits", func(t *testing.T) {
		s := scorer.Score("cti", "Ransomware gang hits Iran registry", "", now)
		// base 10 + recency 25 + watchlist min(25, 2*8)=16 + sev(10+10*1=20)*0.4=8 → 59
		assert.Equal(t, 20, s.Severity)
		assert.Equal(t, 60, s.Confidence)
		assert.Equal(t, 59, s.Priority)
		assert.ElementsMatch(t, []string{"ransomware", "iran"}, s.Tags)
	})

	t.Run("non-cti gets no base bonus", func(t *testing.T) {
		s := scorer.Score("geopolitics", "Election results announced", "", now)
		// recency 25 + watchlist min(25, 8)=8 + sev 10*0.4=4 → 37
		assert.Equal(t, 10, s.Severity)
		assert.Equal(t, 37, s.Priority)
		assert.Equal(t, []string{"election"}, s.Tags)
	})

	t.Run("watchlist points capped", func(t *testing.T) {
		scorer := WatchlistScorer{
			Watchlist: []string{"a1", "b2", "c3", "d4"},
			Weights:   DefaultWeights(),
		}
		s := scorer.Score("geopolitics", "a1 b2 c3 d4", "", now)
		// 4 hits * 8 = 32, capped at 25; recency 25; sev 10*0.4=4 → 54
		assert.Equal(t, 54, s.Priority)
	})

	t.Run("priority clamps at 100", func(t *testing.T) {
		scorer := WatchlistScorer{
			Watchlist: triggerWords,
			Weights:   Weights{WatchlistHit: 80, RecencyMax: 25, BaseDomainCTI: 10},
		}
		text := "exploit 0day zero-day ransomware breach apt sanction missile attack killed"
		s := scorer.Score("cti", text, "", now)
		assert.Equal(t, 100, s.Priority)
		assert.Equal(t, 100, s.Severity)
	})

	t.Run("no hits still scores recency", func(t *testing.T) {
		s := scorer.Score("geopolitics", "Nothing notable", "", now)
		// recency 25 + sev 10*0.4=4 → 29
		assert.Equal(t, 29, s.Priority)
		assert.Empty(t, s.Tags)
	})
}
