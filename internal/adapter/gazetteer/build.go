package gazetteer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// geonamesColumns is the fixed 19-column schema of a GeoNames cities dump
// (tab-separated, no header). Only a subset feeds the alias index.
const geonamesColumns = 19

const (
	colName        = 1
	colAlternates  = 3
	colLat         = 4
	colLon         = 5
	colCountryCode = 8
	colPopulation  = 14
)

// Build reads a GeoNames TSV dump at srcPath and writes the alias index CSV
// to outPath: every canonical name and every alternate name becomes one row
// of (alias, lat, lon, country_code, population), sorted by population
// descending with exact-duplicate aliases dropped (first, most populous row
// kept). A missing source file is fatal to the build step only; the running
// system degrades to no geo enrichment.
func Build(srcPath, outPath string) (int, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open geonames dump: %w", err)
	}
	defer src.Close()

	rows, err := collectAliases(src)
	if err != nil {
		return 0, fmt.Errorf("parse geonames dump %s: %w", srcPath, err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].population > rows[j].population })

	seen := make(map[string]struct{}, len(rows))
	deduped := rows[:0]
	for _, r := range rows {
		if _, ok := seen[r.alias]; ok {
			continue
		}
		seen[r.alias] = struct{}{}
		deduped = append(deduped, r)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create alias index: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"alias", "lat", "lon", "country_code", "population"}); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, r := range deduped {
		rec := []string{
			r.alias,
			strconv.FormatFloat(r.lat, 'f', -1, 64),
			strconv.FormatFloat(r.lon, 'f', -1, 64),
			r.country,
			strconv.FormatInt(r.population, 10),
		}
		if err := w.Write(rec); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush alias index: %w", err)
	}
	return len(deduped), nil
}

func collectAliases(r io.Reader) ([]aliasRow, error) {
	var rows []aliasRow

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != geonamesColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, geonamesColumns, len(fields))
		}

		lat, errLat := strconv.ParseFloat(fields[colLat], 64)
		lon, errLon := strconv.ParseFloat(fields[colLon], 64)
		if errLat != nil || errLon != nil {
			return nil, fmt.Errorf("line %d: bad coordinates", line)
		}
		population, _ := strconv.ParseInt(fields[colPopulation], 10, 64)

		add := func(alias string) {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				return
			}
			rows = append(rows, aliasRow{
				alias:      alias,
				lat:        lat,
				lon:        lon,
				country:    fields[colCountryCode],
				population: population,
			})
		}

		add(fields[colName])
		for _, alt := range strings.Split(fields[colAlternates], ",") {
			add(alt)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
