package gazetteer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osint-monitor/internal/observability"
)

const testIndexCSV = `alias,lat,lon,country_code,population
Tbilisi,41.69,44.83,GE,1049498
Georgia,42.0,43.5,GE,3700000
Kyiv,50.45,30.52,UA,2797553
Middle East,29.0,41.0,,0
São Paulo,-23.55,-46.63,BR,12400232
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex(t *testing.T, csvData string) *Index {
	t.Helper()
	idx, err := load(strings.NewReader(csvData), observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)
	return idx
}

func writeIndexFile(t *testing.T, csvData string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo_index.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))
	return path
}

func TestOpen(t *testing.T) {
	t.Run("loads index from file", func(t *testing.T) {
		idx, err := Open(writeIndexFile(t, testIndexCSV), observability.NewMetricsForTesting(), discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 5, idx.Len())
	})

	t.Run("missing file is ErrUnavailable", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "absent.csv"), observability.NewMetricsForTesting(), discardLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("missing column is an error", func(t *testing.T) {
		path := writeIndexFile(t, "alias,lat,lon\nKyiv,50.45,30.52\n")
		_, err := Open(path, observability.NewMetricsForTesting(), discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "country_code")
	})
}

func TestLookupExact(t *testing.T) {
	idx := testIndex(t, testIndexCSV)

	t.Run("normalizes the query", func(t *testing.T) {
		place, ok := idx.LookupExact("  KYIV, ")
		require.True(t, ok)
		assert.Equal(t, "Kyiv", place.Label)
		assert.Equal(t, "UA", place.Country)
		assert.InDelta(t, 50.45, place.Lat, 1e-9)
		assert.InDelta(t, 30.52, place.Lon, 1e-9)
		assert.Equal(t, "geonames", place.Type)
		assert.Equal(t, "  KYIV, ", place.Query)
	})

	t.Run("unicode aliases", func(t *testing.T) {
		place, ok := idx.LookupExact("são paulo")
		require.True(t, ok)
		assert.Equal(t, "São Paulo", place.Label)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok := idx.LookupExact("Atlantis")
		assert.False(t, ok)
	})

	t.Run("empty query", func(t *testing.T) {
		_, ok := idx.LookupExact("  !? ")
		assert.False(t, ok)
	})
}

func TestPopulationTieBreak(t *testing.T) {
	// Two rows normalizing to the same alias: the more populous one wins
	// regardless of file order.
	csvData := `alias,lat,lon,country_code,population
georgia,33.75,-84.39,US,100
Georgia,42.0,43.5,GE,100000
`
	idx := testIndex(t, csvData)
	assert.Equal(t, 1, idx.Len())

	place, ok := idx.LookupExact("Georgia")
	require.True(t, ok)
	assert.Equal(t, "GE", place.Country)
	assert.InDelta(t, 42.0, place.Lat, 1e-9)
}

func TestResolveCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("first exact hit wins over later candidates", func(t *testing.T) {
		idx := testIndex(t, testIndexCSV)
		place, ok := idx.ResolveCandidates(ctx, []string{"Middle East", "Kyiv"})
		require.True(t, ok)
		assert.Equal(t, "Middle East", place.Label)
	})

	t.Run("order beats score", func(t *testing.T) {
		// A later candidate with a perfect match is never reached once an
		// earlier candidate clears the fuzzy cutoff.
		idx := testIndex(t, testIndexCSV)
		idx.scorer = func(a, b string) int {
			if a == "tbilis" && b == "tbilisi" {
				return 92
			}
			if a == b {
				return 100
			}
			return 0
		}
		place, ok := idx.ResolveCandidates(ctx, []string{"Tbilis", "Kyiv"})
		require.True(t, ok)
		assert.Equal(t, "Tbilisi", place.Label)
		assert.Equal(t, "Tbilis", place.Query)
	})

	t.Run("fuzzy cutoff boundary", func(t *testing.T) {
		idx := testIndex(t, testIndexCSV)

		idx.scorer = func(a, b string) int {
			if b == "kyiv" {
				return 90
			}
			return 0
		}
		place, ok := idx.ResolveCandidates(ctx, []string{"Kiev City"})
		require.True(t, ok, "score of exactly 90 is accepted")
		assert.Equal(t, "Kyiv", place.Label)

		idx.scorer = func(a, b string) int {
			if b == "kyiv" {
				return 89
			}
			return 0
		}
		_, ok = idx.ResolveCandidates(ctx, []string{"Kiev City"})
		assert.False(t, ok, "score of 89 is rejected")
	})

	t.Run("fuzzy picks best-scoring alias", func(t *testing.T) {
		idx := testIndex(t, testIndexCSV)
		idx.scorer = func(a, b string) int {
			switch b {
			case "tbilisi":
				return 91
			case "kyiv":
				return 95
			}
			return 0
		}
		place, ok := idx.ResolveCandidates(ctx, []string{"anything"})
		require.True(t, ok)
		assert.Equal(t, "Kyiv", place.Label)
	})

	t.Run("no candidates", func(t *testing.T) {
		idx := testIndex(t, testIndexCSV)
		_, ok := idx.ResolveCandidates(ctx, nil)
		assert.False(t, ok)
	})

	t.Run("deterministic with real scorer", func(t *testing.T) {
		idx := testIndex(t, testIndexCSV)
		a, okA := idx.ResolveCandidates(ctx, []string{"Kyiv"})
		b, okB := idx.ResolveCandidates(ctx, []string{"Kyiv"})
		require.True(t, okA)
		require.True(t, okB)
		assert.Equal(t, a, b)
	})
}
