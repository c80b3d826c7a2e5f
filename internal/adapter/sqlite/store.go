// Package sqlite implements the durable event store on an embedded SQLite
// file: one events table, idempotent replace-by-id upserts, and the filtered
// query surface consumed by the presentation layer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/osint-monitor/internal/domain"
)

// eventColumns is the canonical 20-column order of the events table. Inserts
// go by this explicit list, never by position, so upstream schema drift
// (missing fields → NULL, unknown fields dropped) cannot break ingestion.
var eventColumns = []string{
	"event_id",
	"ts",
	"domain",
	"title",
	"summary",
	"source_name",
	"source_url",
	"topic",
	"actors",
	"geo",
	"severity",
	"confidence",
	"priority",
	"tags",
	"geo_query",
	"geo_label",
	"geo_country",
	"geo_type",
	"geo_lat",
	"geo_lon",
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
  event_id TEXT PRIMARY KEY,
  ts TIMESTAMP,
  domain TEXT,
  title TEXT,
  summary TEXT,
  source_name TEXT,
  source_url TEXT,
  topic TEXT,
  actors TEXT,
  geo TEXT,
  severity INTEGER,
  confidence INTEGER,
  priority INTEGER,
  tags TEXT,

  geo_query TEXT,
  geo_label TEXT,
  geo_country TEXT,
  geo_type TEXT,
  geo_lat REAL,
  geo_lon REAL
);`

// Store wraps the SQLite events database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the events database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("open events db: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init events schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CheckReadiness satisfies the HTTP server's readiness interface.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.Ping(ctx)
}

// UpsertEvents replaces any stored rows sharing an event_id with the new
// rows: delete-by-id-set then insert, wrapped in a single transaction so a
// crash cannot leave ids deleted but not re-inserted. Empty batches are a
// no-op.
func (s *Store) UpsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := make([]string, len(events))
	ids := make([]any, len(events))
	for i, ev := range events {
		placeholders[i] = "?"
		ids[i] = ev.EventID
	}
	deleteSQL := fmt.Sprintf("DELETE FROM events WHERE event_id IN (%s)", strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, deleteSQL, ids...); err != nil {
		return fmt.Errorf("delete existing events: %w", err)
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO events (%s) VALUES (%s)",
		strings.Join(eventColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(eventColumns)), ", "),
	)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventID,
			ev.TS.UTC(),
			ev.Domain,
			ev.Title,
			ev.Summary,
			ev.SourceName,
			ev.SourceURL,
			ev.Topic,
			ev.Actors,
			ev.Geo,
			ev.Severity,
			ev.Confidence,
			ev.Priority,
			ev.Tags,
			ev.GeoQuery,
			ev.GeoLabel,
			ev.GeoCountry,
			ev.GeoType,
			ev.GeoLat,
			ev.GeoLon,
		); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// QueryEvents returns events with priority >= minPriority, filtered by
// domain unless it is empty or "all", and by ts >= since unless since is
// zero. Results come back ordered ts descending, then priority descending.
// Zero matching rows is a normal empty result.
func (s *Store) QueryEvents(ctx context.Context, domainFilter string, since time.Time, minPriority int) ([]domain.Event, error) {
	where := []string{"priority >= ?"}
	args := []any{minPriority}

	if domainFilter != "" && domainFilter != "all" {
		where = append(where, "domain = ?")
		args = append(args, domainFilter)
	}
	if !since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, since.UTC())
	}

	query := fmt.Sprintf(
		"SELECT %s FROM events WHERE %s ORDER BY ts DESC, priority DESC",
		strings.Join(eventColumns, ", "),
		strings.Join(where, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var ev domain.Event
	var topic, actors, geoCol, tags sql.NullString
	var geoQuery, geoLabel, geoCountry, geoType sql.NullString
	var geoLat, geoLon sql.NullFloat64
	err := rows.Scan(
		&ev.EventID,
		&ev.TS,
		&ev.Domain,
		&ev.Title,
		&ev.Summary,
		&ev.SourceName,
		&ev.SourceURL,
		&topic,
		&actors,
		&geoCol,
		&ev.Severity,
		&ev.Confidence,
		&ev.Priority,
		&tags,
		&geoQuery,
		&geoLabel,
		&geoCountry,
		&geoType,
		&geoLat,
		&geoLon,
	)
	if err != nil {
		return domain.Event{}, err
	}

	ev.TS = ev.TS.UTC()
	ev.Topic = topic.String
	ev.Actors = actors.String
	ev.Geo = geoCol.String
	ev.Tags = tags.String
	if geoQuery.Valid {
		ev.GeoQuery = &geoQuery.String
	}
	if geoLabel.Valid {
		ev.GeoLabel = &geoLabel.String
	}
	if geoCountry.Valid {
		ev.GeoCountry = &geoCountry.String
	}
	if geoType.Valid {
		ev.GeoType = &geoType.String
	}
	if geoLat.Valid {
		ev.GeoLat = &geoLat.Float64
	}
	if geoLon.Valid {
		ev.GeoLon = &geoLon.Float64
	}
	return ev, nil
}

// geoColumns are the enrichment columns added after the table first shipped.
var geoColumns = map[string]string{
	"geo_query":   "TEXT",
	"geo_label":   "TEXT",
	"geo_country": "TEXT",
	"geo_type":    "TEXT",
	"geo_lat":     "REAL",
	"geo_lon":     "REAL",
}

// EnsureGeoColumns idempotently adds the geo enrichment columns to an events
// table created before they existed. Safe to run repeatedly.
func (s *Store) EnsureGeoColumns(ctx context.Context) error {
	existing, err := s.tableColumns(ctx, "events")
	if err != nil {
		return err
	}

	for name, typ := range geoColumns {
		if _, ok := existing[name]; ok {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE events ADD COLUMN %s %s", name, typ)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
		s.logger.Info("added column", "column", name)
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}
