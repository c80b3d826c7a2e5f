package domain

import (
	"math"
	"strings"
	"time"
)

// Keyword vocabularies per source domain. BuildTags scans the combined list;
// KeywordScorer scans only the list matching the event's domain.
var (
	ctiKeywords = []string{"phishing", "ransomware", "malware", "cve", "breach", "ddos", "apt", "exploit"}
	geoKeywords = []string{"war", "missile", "strike", "protest", "ceasefire", "border", "sanctions", "military"}
)

// triggerWords drive the severity term of the watchlist heuristic.
var triggerWords = []string{
	"exploit", "0day", "zero-day", "ransomware", "breach",
	"apt", "sanction", "missile", "attack", "killed",
}

// Score holds the three clamped [0,100] scores for an event. Tags carries
// scorer-specific labels (watchlist term hits); nil for scorers that leave
// tagging to BuildTags.
type Score struct {
	Severity   int
	Confidence int
	Priority   int
	Tags       []string
}

// Scorer computes event scores from source domain, text, and timestamp.
// The two implementations are intentionally independent heuristics; call
// sites pick one, they are never blended.
type Scorer interface {
	Score(domain, title, summary string, ts time.Time) Score
}

// KeywordScorer scores by domain-specific keyword density. This is the
// primary heuristic used on the ingestion path.
type KeywordScorer struct{}

func (KeywordScorer) Score(domain, title, summary string, _ time.Time) Score {
	text := strings.ToLower(title + " " + summary)

	keywords := geoKeywords
	confidenceBase := 55
	if domain == "cti" {
		keywords = ctiKeywords
		confidenceBase = 60
	}

	hits := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			hits++
		}
	}

	severity := clampScore(20 + hits*15)
	confidence := clampScore(confidenceBase + hits*8)
	priority := clampScore(int(float64(severity)*0.7 + float64(confidence)*0.3))

	return Score{Severity: severity, Confidence: confidence, Priority: priority}
}

// Weights configures the watchlist heuristic.
type Weights struct {
	WatchlistHit  int `yaml:"watchlist_hit"`   // cap on watchlist points
	RecencyMax    int `yaml:"recency_max"`     // max recency points
	BaseDomainCTI int `yaml:"base_domain_cti"` // flat bonus for cti events
}

// DefaultWeights matches the stock configuration.
func DefaultWeights() Weights {
	return Weights{WatchlistHit: 25, RecencyMax: 25, BaseDomainCTI: 10}
}

// WatchlistScorer is the configuration-driven alternate heuristic: recency
// decay plus watchlist term hits plus trigger-word severity. Confidence is a
// flat 60; the matched watchlist terms come back as Tags.
type WatchlistScorer struct {
	Watchlist []string
	Weights   Weights
}

func (s WatchlistScorer) Score(domain, title, summary string, ts time.Time) Score {
	text := title + "\n" + summary
	low := strings.ToLower(text)

	var hits []string
	for _, w := range s.Watchlist {
		if strings.Contains(low, strings.ToLower(w)) {
			hits = append(hits, w)
		}
	}

	rscore := RecencyScore(ts, s.Weights.RecencyMax)
	wscore := min(s.Weights.WatchlistHit, len(hits)*8)

	base := 0
	if domain == "cti" {
		base = s.Weights.BaseDomainCTI
	}

	trig := 0
	for _, k := range triggerWords {
		if strings.Contains(low, k) {
			trig++
		}
	}
	severity := clampScore(10 + 10*trig)

	priority := clampScore(base + rscore + wscore + int(float64(severity)*0.4))

	return Score{
		Severity:   severity,
		Confidence: 60,
		Priority:   priority,
		Tags:       dedupeStrings(hits),
	}
}

// RecencyScore awards up to maxPoints for freshness, decaying as
// maxPoints/(1+hours/24): a 24-hour-old event keeps roughly half its credit,
// and the score approaches but never reaches zero.
func RecencyScore(ts time.Time, maxPoints int) int {
	hours := clock.Now().UTC().Sub(ts.UTC()).Hours()
	if hours < 0 {
		hours = 0
	}
	score := float64(maxPoints) / (1.0 + hours/24.0)
	if score > float64(maxPoints) {
		score = float64(maxPoints)
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
