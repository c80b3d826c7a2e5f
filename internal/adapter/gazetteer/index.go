// Package gazetteer implements place-name resolution against a GeoNames
// alias index.
//
// The index is a flat CSV (alias, lat, lon, country_code, population)
// produced by [Build] from a GeoNames cities dump. At load time aliases are
// keyed by their normalized form; when two rows normalize to the same alias
// the higher-population row wins, which is how ambiguous names ("Georgia")
// resolve to the most populous entity.
package gazetteer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/couchcryptid/osint-monitor/internal/domain"
	"github.com/couchcryptid/osint-monitor/internal/observability"
)

// ErrUnavailable reports a missing or unreadable alias index. Callers must
// treat this distinctly from a normal no-match result: the resolver cannot
// work at all without its index.
var ErrUnavailable = errors.New("gazetteer index unavailable")

// fuzzyCutoff is the minimum weighted-ratio score (out of 100) for a fuzzy
// hit. A candidate scoring exactly the cutoff is accepted.
const fuzzyCutoff = 90

// matchType labels every hit, exact or fuzzy; the two are distinguishable
// only by comparing Query against Label.
const matchType = "geonames"

type aliasRow struct {
	alias      string // display form as written in the index
	norm       string
	lat, lon   float64
	country    string
	population int64
}

// Index is an in-memory alias lookup table. Build it once at process start
// and share it; lookups are read-only and safe for concurrent use.
type Index struct {
	byNorm  map[string]int // normalized alias → position in rows
	rows    []aliasRow
	choices []string // normalized aliases in population-descending order

	// scorer is the string-similarity function for the fuzzy fallback.
	// Swappable in tests to pin the acceptance boundary.
	scorer func(a, b string) int

	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open loads the alias index CSV at path. A missing file returns
// ErrUnavailable so callers can distinguish "no gazetteer" from "no match".
func Open(path string, metrics *observability.Metrics, logger *slog.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (run build-geo-index first)", ErrUnavailable, path)
	}
	defer f.Close()

	idx, err := load(f, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer %s: %w", path, err)
	}
	logger.Info("gazetteer loaded", "path", path, "aliases", len(idx.rows))
	return idx, nil
}

func load(r io.Reader, metrics *observability.Metrics, logger *slog.Logger) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"alias", "lat", "lon", "country_code", "population"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	idx := &Index{
		byNorm:  make(map[string]int),
		scorer:  fuzzy.WRatio,
		metrics: metrics,
		logger:  logger,
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := aliasRow{alias: rec[col["alias"]], country: rec[col["country_code"]]}
		row.norm = domain.NormalizeAlias(row.alias)
		if row.norm == "" {
			continue
		}
		if row.lat, err = strconv.ParseFloat(rec[col["lat"]], 64); err != nil {
			continue
		}
		if row.lon, err = strconv.ParseFloat(rec[col["lon"]], 64); err != nil {
			continue
		}
		row.population, _ = strconv.ParseInt(rec[col["population"]], 10, 64)

		if prev, ok := idx.byNorm[row.norm]; ok {
			// Collision on the normalized form: keep the more populous row.
			if row.population > idx.rows[prev].population {
				idx.rows[prev] = row
			}
			continue
		}
		idx.byNorm[row.norm] = len(idx.rows)
		idx.rows = append(idx.rows, row)
		idx.choices = append(idx.choices, row.norm)
	}

	return idx, nil
}

// Len reports the number of distinct normalized aliases.
func (idx *Index) Len() int { return len(idx.rows) }

// LookupExact resolves a single place name by exact normalized match.
func (idx *Index) LookupExact(name string) (domain.ResolvedPlace, bool) {
	key := domain.NormalizeAlias(name)
	if key == "" {
		return domain.ResolvedPlace{}, false
	}
	i, ok := idx.byNorm[key]
	if !ok {
		return domain.ResolvedPlace{}, false
	}
	return idx.hit(name, idx.rows[i]), true
}

// ResolveCandidates implements domain.PlaceResolver: candidates are tried in
// order, exact match first then fuzzy, and the first hit wins. A candidate
// appearing later with a better fuzzy score is never chosen; candidate order
// encodes precedence.
func (idx *Index) ResolveCandidates(ctx context.Context, cands []string) (domain.ResolvedPlace, bool) {
	for _, c := range cands {
		if ctx.Err() != nil {
			return domain.ResolvedPlace{}, false
		}

		if place, ok := idx.LookupExact(c); ok {
			idx.metrics.GazetteerLookups.WithLabelValues("exact").Inc()
			return place, true
		}

		key := domain.NormalizeAlias(c)
		if key == "" {
			continue
		}
		if i, ok := idx.bestFuzzy(key); ok {
			idx.metrics.GazetteerLookups.WithLabelValues("fuzzy").Inc()
			return idx.hit(c, idx.rows[i]), true
		}
		idx.metrics.GazetteerLookups.WithLabelValues("miss").Inc()
	}
	return domain.ResolvedPlace{}, false
}

// bestFuzzy scans all aliases for the best weighted-ratio score at or above
// the cutoff. Ties keep the earlier choice, which is the more populous one
// given the index's population-descending build order.
func (idx *Index) bestFuzzy(key string) (int, bool) {
	best, bestScore := -1, fuzzyCutoff-1
	for i, choice := range idx.choices {
		if s := idx.scorer(key, choice); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, best >= 0
}

func (idx *Index) hit(query string, row aliasRow) domain.ResolvedPlace {
	label := row.alias
	if label == "" {
		label = query
	}
	return domain.ResolvedPlace{
		Query:   query,
		Label:   label,
		Country: row.country,
		Type:    matchType,
		Lat:     row.lat,
		Lon:     row.lon,
	}
}
