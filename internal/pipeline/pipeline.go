// Package pipeline orchestrates one ingest pass: fetch configured feeds,
// resolve place candidates, score, assemble events, and upsert them into the
// store. Sources are processed sequentially; there are no concurrent writers.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/osint-monitor/internal/domain"
	"github.com/couchcryptid/osint-monitor/internal/observability"
)

// Fetcher retrieves one source's entries.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.SourceFeed, limit int) ([]domain.RawEntry, error)
}

// EventStore persists enriched events.
type EventStore interface {
	UpsertEvents(ctx context.Context, events []domain.Event) error
}

// Publisher forwards enriched events to an optional downstream sink.
type Publisher interface {
	PublishBatch(ctx context.Context, events []domain.Event) error
}

// Summary reports one ingest pass, matching the one-line operator output:
// how much was fetched and how geo resolution went.
type Summary struct {
	RunID        string
	Fetched      int
	GeoResolved  int
	GeoMissed    int
	Dropped      int
	Upserted     int
	SourceErrors int
}

// Pipeline wires the ingest stages together.
type Pipeline struct {
	fetcher   Fetcher
	resolver  domain.PlaceResolver // nil disables geo enrichment
	scorer    domain.Scorer
	store     EventStore
	publisher Publisher // nil disables the sink
	sources   []domain.SourceFeed
	limit     int

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline. resolver and publisher may be nil; the pipeline
// degrades gracefully without them.
func New(
	fetcher Fetcher,
	resolver domain.PlaceResolver,
	scorer domain.Scorer,
	store EventStore,
	publisher Publisher,
	sources []domain.SourceFeed,
	limit int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		resolver:  resolver,
		scorer:    scorer,
		store:     store,
		publisher: publisher,
		sources:   sources,
		limit:     limit,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one complete ingest pass. Per-source fetch failures are
// recoverable: that source contributes zero entries and the pass continues.
// Only a store failure aborts the pass.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}

	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)

	var batch []domain.Event
	for _, source := range p.sources {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		entries, err := p.fetcher.Fetch(ctx, source, p.limit)
		if err != nil {
			p.logger.Warn("feed fetch failed, skipping source",
				"run_id", summary.RunID,
				"source", source.Name,
				"error", err,
			)
			summary.SourceErrors++
			continue
		}

		for _, entry := range entries {
			if entry.TS.IsZero() {
				summary.Dropped++
				p.metrics.EntriesDropped.Inc()
				continue
			}
			summary.Fetched++
			batch = append(batch, p.enrich(ctx, entry, &summary))
		}
	}
	p.metrics.EventsFetched.Add(float64(summary.Fetched))

	if err := p.store.UpsertEvents(ctx, batch); err != nil {
		return summary, err
	}
	summary.Upserted = len(batch)
	p.metrics.EventsUpserted.Add(float64(len(batch)))

	if p.publisher != nil && len(batch) > 0 {
		if err := p.publisher.PublishBatch(ctx, batch); err != nil {
			// The store is the source of truth; a sink failure degrades to
			// unpublished events rather than failing the pass.
			p.logger.Warn("publish failed", "run_id", summary.RunID, "error", err)
		} else {
			p.metrics.EventsPublished.Add(float64(len(batch)))
		}
	}

	p.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("ingest complete",
		"run_id", summary.RunID,
		"fetched", summary.Fetched,
		"geo_ok", summary.GeoResolved,
		"geo_miss", summary.GeoMissed,
		"dropped", summary.Dropped,
		"upserted", summary.Upserted,
		"source_errors", summary.SourceErrors,
	)
	return summary, nil
}

// enrich resolves a place (when a resolver is configured), scores the entry,
// and assembles the storable event.
func (p *Pipeline) enrich(ctx context.Context, entry domain.RawEntry, summary *Summary) domain.Event {
	var place *domain.ResolvedPlace
	if p.resolver != nil {
		cands := domain.ExtractPlaceCandidates(entry.Title, entry.Summary)
		if hit, ok := p.resolver.ResolveCandidates(ctx, cands); ok {
			place = &hit
			summary.GeoResolved++
			p.metrics.GeoResolved.Inc()
		} else {
			summary.GeoMissed++
			p.metrics.GeoMissed.Inc()
		}
	}

	score := p.scorer.Score(entry.Domain, entry.Title, entry.Summary, entry.TS)
	return domain.AssembleEvent(entry, place, score)
}
