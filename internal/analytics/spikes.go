// Package analytics computes time-bucketed aggregates over stored events:
// spike detection against per-group baselines and an "active situations"
// ranking of currently hot topics.
//
// A situation is a derived grouping key: each event contributes once per
// tag, and events with no tags contribute to one synthetic
// "untagged:<domain>" group. Both computations are stateless and recomputed
// from the full queried history on every call; nothing is persisted.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/osint-monitor/internal/domain"
)

// pctSpikeSentinel stands in for "infinite spike": recent activity against a
// zero baseline has no finite percentage.
const pctSpikeSentinel = 999.0

// SpikeParams tunes the spike detector windows and thresholds.
type SpikeParams struct {
	LookbackDays   int // daily-count window for mean/stddev
	BaselineDays   int // baseline window, ending 24h ago
	MinEventsTotal int // groups with fewer lookback events are dropped
	TopN           int
}

// DefaultSpikeParams matches the stock dashboard configuration.
func DefaultSpikeParams() SpikeParams {
	return SpikeParams{LookbackDays: 14, BaselineDays: 7, MinEventsTotal: 3, TopN: 12}
}

// Spike is one ranked anomalous group.
type Spike struct {
	Group         string  `json:"group"`
	Recent24h     int     `json:"recent_24h"`
	BaselineAvg   float64 `json:"baseline_avg"`    // 2 decimals
	PctVsBaseline float64 `json:"pct_vs_baseline"` // 1 decimal; 999 = spike from zero baseline
	ZToday        float64 `json:"z_today"`         // 2 decimals
	Total         int     `json:"total"`
}

// Situation is one row of the active-situations ranking.
type Situation struct {
	Situation   string    `json:"situation"`
	Events      int       `json:"events"`
	MaxPriority int       `json:"max_priority"`
	AvgPriority float64   `json:"avg_priority"`
	LastTS      time.Time `json:"last_ts"`
	TopSource   string    `json:"top_source"`
	Score       float64   `json:"score"`
}

// Detector runs the aggregations against an injectable clock so tests can
// pin "now".
type Detector struct {
	clock clockwork.Clock
}

// NewDetector creates a Detector. Pass nil for real time.
func NewDetector(clk clockwork.Clock) *Detector {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Detector{clock: clk}
}

// observation is one (group, timestamp) pair from tag explosion.
type observation struct {
	group string
	ts    time.Time
	event *domain.Event
}

// explode expands each event into one observation per tag, or a single
// synthetic untagged:<domain> observation when it has no tags.
func explode(events []domain.Event) []observation {
	var obs []observation
	for i := range events {
		ev := &events[i]
		tags := ev.TagList()
		if len(tags) == 0 {
			obs = append(obs, observation{group: "untagged:" + ev.Domain, ts: ev.TS.UTC(), event: ev})
			continue
		}
		for _, tag := range tags {
			obs = append(obs, observation{group: tag, ts: ev.TS.UTC(), event: ev})
		}
	}
	return obs
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DetectSpikes ranks groups whose recent activity is abnormal against their
// own lookback history. Zero-variance groups never register a z-anomaly;
// activity against an empty baseline scores the 999 sentinel percentage.
func (d *Detector) DetectSpikes(events []domain.Event, p SpikeParams) []Spike {
	obs := explode(events)
	if len(obs) == 0 {
		return nil
	}

	now := d.clock.Now().UTC()
	cutoffRecent := now.Add(-24 * time.Hour)
	cutoffLookback := now.AddDate(0, 0, -p.LookbackDays)
	cutoffBaselineStart := now.AddDate(0, 0, -(p.BaselineDays + 1))

	// Daily counts per group within the lookback window.
	daily := make(map[string]map[string]int)
	latestDate := ""
	for _, o := range obs {
		if o.ts.Before(cutoffLookback) {
			continue
		}
		day := dateKey(o.ts)
		if daily[o.group] == nil {
			daily[o.group] = make(map[string]int)
		}
		daily[o.group][day]++
		if day > latestDate {
			latestDate = day
		}
	}
	if latestDate == "" {
		return nil
	}

	recent := make(map[string]int)
	baselineDaily := make(map[string]map[string]int)
	for _, o := range obs {
		if !o.ts.Before(cutoffRecent) {
			recent[o.group]++
		}
		// Baseline explicitly excludes the trailing 24h so "recent" and
		// baseline never overlap.
		if !o.ts.Before(cutoffBaselineStart) && o.ts.Before(cutoffRecent) {
			day := dateKey(o.ts)
			if baselineDaily[o.group] == nil {
				baselineDaily[o.group] = make(map[string]int)
			}
			baselineDaily[o.group][day]++
		}
	}

	var spikes []Spike
	for group, days := range daily {
		mu, sigma, total := dailyStats(days)
		if total < p.MinEventsTotal {
			continue
		}

		baselineAvg := 0.0
		if bd := baselineDaily[group]; len(bd) > 0 {
			sum := 0
			for _, c := range bd {
				sum += c
			}
			baselineAvg = float64(sum) / float64(len(bd))
		}

		recent24h := recent[group]
		todayCount := days[latestDate]

		zToday := 0.0
		if sigma > 0 {
			zToday = (float64(todayCount) - mu) / sigma
		}

		var pct float64
		switch {
		case baselineAvg > 0:
			pct = (float64(recent24h) - baselineAvg) / baselineAvg * 100.0
		case recent24h > 0:
			pct = pctSpikeSentinel
		default:
			pct = 0
		}

		spikes = append(spikes, Spike{
			Group:         group,
			Recent24h:     recent24h,
			BaselineAvg:   roundTo(baselineAvg, 2),
			PctVsBaseline: roundTo(pct, 1),
			ZToday:        roundTo(zToday, 2),
			Total:         total,
		})
	}

	sort.SliceStable(spikes, func(i, j int) bool {
		si, sj := spikeScore(spikes[i]), spikeScore(spikes[j])
		if si != sj {
			return si > sj
		}
		// Map iteration order is random; break score ties by name so runs
		// are reproducible.
		return spikes[i].Group < spikes[j].Group
	})
	if p.TopN > 0 && len(spikes) > p.TopN {
		spikes = spikes[:p.TopN]
	}
	return spikes
}

// spikeScore is the composite ranking: z-anomaly dominates, raw recent
// volume matters, baseline percentage is a light tiebreaker.
func spikeScore(s Spike) float64 {
	return s.ZToday*10.0 + float64(s.Recent24h)*3.0 + s.PctVsBaseline*0.05
}

// dailyStats returns the mean and sample standard deviation of a group's
// daily counts, plus the total event count. Fewer than two active days
// yields sigma 0, so such groups never z-score.
func dailyStats(days map[string]int) (mu, sigma float64, total int) {
	n := len(days)
	if n == 0 {
		return 0, 0, 0
	}
	for _, c := range days {
		total += c
	}
	mu = float64(total) / float64(n)
	if n < 2 {
		return mu, 0, total
	}
	var ss float64
	for _, c := range days {
		d := float64(c) - mu
		ss += d * d
	}
	sigma = math.Sqrt(ss / float64(n-1))
	return mu, sigma, total
}

// ActiveSituations ranks groups by current weight regardless of trend:
// score = max_priority + events*2 + avg_priority*0.2.
func (d *Detector) ActiveSituations(events []domain.Event, topN int) []Situation {
	obs := explode(events)
	if len(obs) == 0 {
		return nil
	}

	type agg struct {
		events      int
		maxPriority int
		sumPriority int
		lastTS      time.Time
		sources     map[string]int
	}
	groups := make(map[string]*agg)
	for _, o := range obs {
		a := groups[o.group]
		if a == nil {
			a = &agg{sources: make(map[string]int)}
			groups[o.group] = a
		}
		a.events++
		a.sumPriority += o.event.Priority
		if o.event.Priority > a.maxPriority {
			a.maxPriority = o.event.Priority
		}
		if o.ts.After(a.lastTS) {
			a.lastTS = o.ts
		}
		a.sources[o.event.SourceName]++
	}

	situations := make([]Situation, 0, len(groups))
	for group, a := range groups {
		avg := float64(a.sumPriority) / float64(a.events)
		situations = append(situations, Situation{
			Situation:   group,
			Events:      a.events,
			MaxPriority: a.maxPriority,
			AvgPriority: roundTo(avg, 2),
			LastTS:      a.lastTS,
			TopSource:   topSource(a.sources),
			Score:       roundTo(float64(a.maxPriority)*1.0+float64(a.events)*2.0+avg*0.2, 2),
		})
	}

	sort.SliceStable(situations, func(i, j int) bool {
		si, sj := situations[i], situations[j]
		if si.Score != sj.Score {
			return si.Score > sj.Score
		}
		if si.MaxPriority != sj.MaxPriority {
			return si.MaxPriority > sj.MaxPriority
		}
		if si.Events != sj.Events {
			return si.Events > sj.Events
		}
		return si.Situation < sj.Situation
	})
	if topN > 0 && len(situations) > topN {
		situations = situations[:topN]
	}
	return situations
}

// topSource picks the most frequent source; ties break lexicographically for
// deterministic output.
func topSource(counts map[string]int) string {
	best, bestCount := "", -1
	for src, c := range counts {
		if c > bestCount || (c == bestCount && src < best) {
			best, bestCount = src, c
		}
	}
	return best
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
