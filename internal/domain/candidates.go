package domain

import (
	"regexp"
	"strings"
)

const maxCandidates = 10

// stopPlaces filters capitalized words that look like place names in
// headlines but never are: weekday names and generic news vocabulary.
var stopPlaces = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
	"today": {}, "yesterday": {}, "breaking": {}, "analysis": {},
	"update": {}, "exclusive": {}, "report": {},
	"video": {}, "live": {}, "fighting": {}, "talks": {},
	"stall": {}, "says": {}, "say": {},
}

// regionHints are multi-word regions matched as case-insensitive substrings.
// They are prepended to the candidate list so a broad region wins when no
// more specific place resolves first.
var regionHints = []struct{ lower, display string }{
	{"middle east", "Middle East"},
	{"europe", "Europe"},
	{"asia", "Asia"},
	{"africa", "Africa"},
	{"south america", "South America"},
	{"north america", "North America"},
}

var (
	// placePatterns capture 1–4 capitalized words after a locative preposition,
	// e.g. "clashes near Port Sudan" → "Port Sudan".
	placePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bin\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`),
		regexp.MustCompile(`\bnear\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`),
		regexp.MustCompile(`\bat\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`),
		regexp.MustCompile(`\bfrom\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`),
	}

	// capSeqRe catches bare capitalized sequences of 1–3 words, the most
	// permissive pass and therefore last in discovery order.
	capSeqRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
)

// ExtractPlaceCandidates pulls candidate place names from an event's title
// and summary. Candidates are deduplicated case-insensitively preserving
// discovery order and capped at 10. The function is deterministic: fixed
// input text always yields the same candidate list.
func ExtractPlaceCandidates(title, summary string) []string {
	text := NormalizeText(title + " " + summary)

	var cands []string

	low := strings.ToLower(text)
	for _, r := range regionHints {
		if strings.Contains(low, r.lower) {
			cands = append(cands, r.display)
		}
	}

	for _, pat := range placePatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			p := NormalizeText(m[1])
			if p != "" && !isStopPlace(p) {
				cands = append(cands, p)
			}
		}
	}

	for _, m := range capSeqRe.FindAllStringSubmatch(text, -1) {
		s := NormalizeText(m[1])
		if len(s) >= 3 && !isStopPlace(s) {
			cands = append(cands, s)
		}
	}

	seen := make(map[string]struct{}, len(cands))
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		k := strings.ToLower(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

func isStopPlace(s string) bool {
	_, ok := stopPlaces[strings.ToLower(s)]
	return ok
}
