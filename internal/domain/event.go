package domain

import (
	"context"
	"time"
)

// SourceFeed describes one configured RSS/Atom feed.
type SourceFeed struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	Domain string `yaml:"domain" json:"domain"` // "geopolitics" or "cti"
}

// RawEntry is a feed item normalized to the pipeline's canonical shape by
// the feed adapter. TS is already resolved (published → updated → now) and
// in UTC.
type RawEntry struct {
	TS         time.Time
	Title      string
	Summary    string
	SourceURL  string
	SourceName string
	Domain     string
}

// ResolvedPlace is a gazetteer hit for a place-name candidate.
// Query keeps the original candidate text; Label is the matched alias as it
// appears in the gazetteer, which is what exact and fuzzy hits (both typed
// "geonames") differ by.
type ResolvedPlace struct {
	Query   string  `json:"query"`
	Label   string  `json:"label"`
	Country string  `json:"country"`
	Type    string  `json:"type"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// PlaceResolver resolves extracted place-name candidates against a gazetteer.
type PlaceResolver interface {
	// ResolveCandidates tries candidates in order and returns the first hit.
	// ok is false when no candidate matched; that is a normal empty result,
	// not an error.
	ResolveCandidates(ctx context.Context, cands []string) (place ResolvedPlace, ok bool)
}

// Event is the enriched record stored for querying. Events are immutable
// once stored; re-ingesting the same logical item replaces the row wholesale.
type Event struct {
	EventID    string    `json:"event_id"`
	TS         time.Time `json:"ts"`
	Domain     string    `json:"domain"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	SourceName string    `json:"source_name"`
	SourceURL  string    `json:"source_url"`

	// Reserved classification columns carried in the schema but not yet
	// populated by any scorer.
	Topic  string `json:"topic,omitempty"`
	Actors string `json:"actors,omitempty"`
	Geo    string `json:"geo,omitempty"`

	Severity   int    `json:"severity"`
	Confidence int    `json:"confidence"`
	Priority   int    `json:"priority"`
	Tags       string `json:"tags"` // comma-joined, dedup'd, first-seen order

	// Geo enrichment; nil when no candidate resolved.
	GeoQuery   *string  `json:"geo_query,omitempty"`
	GeoLabel   *string  `json:"geo_label,omitempty"`
	GeoCountry *string  `json:"geo_country,omitempty"`
	GeoType    *string  `json:"geo_type,omitempty"`
	GeoLat     *float64 `json:"geo_lat,omitempty"`
	GeoLon     *float64 `json:"geo_lon,omitempty"`
}

// TagList splits the comma-joined tag string, dropping empties.
func (e Event) TagList() []string {
	return SplitTags(e.Tags)
}
