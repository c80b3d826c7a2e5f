package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// aliasPunctRe strips punctuation that often clings to place names in
	// headlines ("Kyiv," / "(Gaza)") before gazetteer lookup.
	aliasPunctRe = regexp.MustCompile("[,.;:()\\[\\]{}!?\"'`]")
)

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeAlias canonicalizes a place name for gazetteer keying: lowercase,
// punctuation stripped, whitespace collapsed. Both sides of every lookup
// (index build and query) must use this same form.
func NormalizeAlias(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = aliasPunctRe.ReplaceAllString(s, " ")
	return NormalizeText(s)
}

// eventIDTimeLayout matches the timestamp rendering used in the hash input.
// Changing it changes every event ID, which breaks upsert idempotence across
// deployments.
const eventIDTimeLayout = "2006-01-02 15:04:05"

// GenerateEventID produces a deterministic 24-hex-char ID from the event's
// identity fields. Deterministic IDs make the store's delete-then-insert
// upsert idempotent: re-ingesting the same feed item overwrites its own row.
func GenerateEventID(domain, sourceName, sourceURL, title string, ts time.Time) string {
	h := sha256.New()
	for _, part := range []string{domain, sourceName, sourceURL, title, ts.UTC().Format(eventIDTimeLayout)} {
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// BuildTags assembles the event tag set: the source domain, every keyword
// from the combined cti+geo vocabulary found in the text, and geo:<label> /
// country:<code> when a place resolved. Duplicates are removed keeping
// first-seen order.
func BuildTags(domain, title, summary string, place *ResolvedPlace) []string {
	var tags []string
	if domain != "" {
		tags = append(tags, domain)
	}

	text := strings.ToLower(title + " " + summary)
	for _, k := range append(append([]string{}, ctiKeywords...), geoKeywords...) {
		if strings.Contains(text, k) {
			tags = append(tags, k)
		}
	}

	if place != nil {
		if label := strings.ToLower(strings.TrimSpace(place.Label)); label != "" {
			tags = append(tags, "geo:"+label)
		}
		if country := strings.ToLower(strings.TrimSpace(place.Country)); country != "" {
			tags = append(tags, "country:"+country)
		}
	}

	return dedupeStrings(tags)
}

// JoinTags serializes a tag list to the comma-joined storage form.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags parses the comma-joined storage form, dropping empties.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// AssembleEvent builds the storable Event from a normalized entry, an
// optional resolved place, and a score. The entry timestamp must already be
// valid; zero timestamps are the caller's responsibility to drop.
func AssembleEvent(entry RawEntry, place *ResolvedPlace, score Score) Event {
	ts := entry.TS.UTC()
	ev := Event{
		EventID:    GenerateEventID(entry.Domain, entry.SourceName, entry.SourceURL, entry.Title, ts),
		TS:         ts,
		Domain:     entry.Domain,
		Title:      entry.Title,
		Summary:    entry.Summary,
		SourceName: entry.SourceName,
		SourceURL:  entry.SourceURL,
		Severity:   score.Severity,
		Confidence: score.Confidence,
		Priority:   score.Priority,
		Tags:       JoinTags(BuildTags(entry.Domain, entry.Title, entry.Summary, place)),
	}
	if place != nil {
		ev.GeoQuery = &place.Query
		ev.GeoLabel = &place.Label
		ev.GeoCountry = &place.Country
		ev.GeoType = &place.Type
		ev.GeoLat = &place.Lat
		ev.GeoLon = &place.Lon
	}
	return ev
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
