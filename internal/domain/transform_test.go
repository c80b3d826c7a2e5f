package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEventID(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		a := GenerateEventID("cti", "KrebsOnSecurity", "https://example.com/a", "Title", ts)
		b := GenerateEventID("cti", "KrebsOnSecurity", "https://example.com/a", "Title", ts)
		assert.Equal(t, a, b)
		assert.Len(t, a, 24)
	})

	t.Run("identity fields change the id", func(t *testing.T) {
		base := GenerateEventID("cti", "src", "url", "title", ts)
		assert.NotEqual(t, base, GenerateEventID("geopolitics", "src", "url", "title", ts))
		assert.NotEqual(t, base, GenerateEventID("cti", "other", "url", "title", ts))
		assert.NotEqual(t, base, GenerateEventID("cti", "src", "url", "other", ts))
		assert.NotEqual(t, base, GenerateEventID("cti", "src", "url", "title", ts.Add(time.Second)))
	})

	t.Run("timezone-insensitive", func(t *testing.T) {
		loc := time.FixedZone("X", 3600)
		assert.Equal(t,
			GenerateEventID("cti", "s", "u", "t", ts),
			GenerateEventID("cti", "s", "u", "t", ts.In(loc)),
		)
	})
}

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Kyiv, ", "kyiv"},
		{"SÃO PAULO", "são paulo"},
		{"New   York", "new york"},
		{"(Gaza)", "gaza"},
		{"", ""},
		{"!?;:", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAlias(tt.in), "input %q", tt.in)
	}
}

func TestBuildTags(t *testing.T) {
	t.Run("domain plus keywords plus geo", func(t *testing.T) {
		place := &ResolvedPlace{Label: "Kyiv", Country: "UA"}
		tags := BuildTags("geopolitics", "Missile strike in Kyiv", "war continues", place)
		assert.Equal(t, []string{"geopolitics", "war", "missile", "strike", "geo:kyiv", "country:ua"}, tags)
	})

	t.Run("dedupe keeps first occurrence", func(t *testing.T) {
		tags := BuildTags("war", "war war war", "", nil)
		assert.Equal(t, []string{"war"}, tags)
	})

	t.Run("no place means no geo tags", func(t *testing.T) {
		tags := BuildTags("cti", "phishing campaign", "", nil)
		assert.Equal(t, []string{"cti", "phishing"}, tags)
	})

	t.Run("place without country code", func(t *testing.T) {
		tags := BuildTags("geopolitics", "", "", &ResolvedPlace{Label: "Europe"})
		assert.Equal(t, []string{"geopolitics", "geo:europe"}, tags)
	})
}

func TestSplitJoinTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitTags("a,b"))
	assert.Equal(t, []string{"a", "b"}, SplitTags("a, ,b,"))
	assert.Nil(t, SplitTags(""))
	assert.Equal(t, "a,b", JoinTags([]string{"a", "b"}))
}

func TestAssembleEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	entry := RawEntry{
		TS:         ts,
		Title:      "Ransomware hits hospital in Berlin",
		Summary:    "Breach confirmed",
		SourceURL:  "https://example.com/item",
		SourceName: "The Hacker News",
		Domain:     "cti",
	}
	score := Score{Severity: 65, Confidence: 84, Priority: 70}

	t.Run("with resolved place", func(t *testing.T) {
		place := &ResolvedPlace{Query: "Berlin", Label: "Berlin", Country: "DE", Type: "geonames", Lat: 52.52, Lon: 13.40}
		ev := AssembleEvent(entry, place, score)

		assert.Equal(t, GenerateEventID("cti", "The Hacker News", "https://example.com/item", entry.Title, ts), ev.EventID)
		assert.Equal(t, 65, ev.Severity)
		assert.Equal(t, 70, ev.Priority)
		require.NotNil(t, ev.GeoLat)
		assert.Equal(t, 52.52, *ev.GeoLat)
		assert.Equal(t, "Berlin", *ev.GeoLabel)
		assert.Contains(t, ev.TagList(), "geo:berlin")
		assert.Contains(t, ev.TagList(), "country:de")
	})

	t.Run("without place leaves geo fields nil", func(t *testing.T) {
		ev := AssembleEvent(entry, nil, score)
		assert.Nil(t, ev.GeoQuery)
		assert.Nil(t, ev.GeoLat)
		assert.Nil(t, ev.GeoLon)
		assert.Contains(t, ev.TagList(), "cti")
		assert.Contains(t, ev.TagList(), "ransomware")
	})
}
