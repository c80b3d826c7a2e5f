// Package feed fetches RSS/Atom sources and normalizes their entries into
// the pipeline's canonical shape. Parsing is delegated to gofeed; this
// package only maps heterogeneous feed fields onto domain.RawEntry.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/osint-monitor/internal/domain"
	"github.com/couchcryptid/osint-monitor/internal/observability"
)

// Fetcher retrieves one feed at a time. Sources are processed sequentially
// by the pipeline; the HTTP timeout bounds how long a hung feed can stall a
// pass.
type Fetcher struct {
	parser  *gofeed.Parser
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher with the given HTTP timeout. Pass a nil clock
// to use real time.
func NewFetcher(timeout time.Duration, clk clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Fetcher{
		parser:  parser,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch retrieves up to limit entries from one source and maps them to raw
// entries. A malformed or unreachable feed returns an error; callers treat
// that as zero entries from this source and continue with the others.
func (f *Fetcher) Fetch(ctx context.Context, source domain.SourceFeed, limit int) ([]domain.RawEntry, error) {
	parsed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		f.metrics.FeedFetches.WithLabelValues(source.Name, "error").Inc()
		return nil, fmt.Errorf("fetch feed %s: %w", source.Name, err)
	}
	f.metrics.FeedFetches.WithLabelValues(source.Name, "ok").Inc()

	items := parsed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	entries := make([]domain.RawEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, domain.RawEntry{
			TS:         f.entryTime(item),
			Title:      item.Title,
			Summary:    item.Description,
			SourceURL:  item.Link,
			SourceName: source.Name,
			Domain:     source.Domain,
		})
	}

	f.logger.Debug("feed fetched", "source", source.Name, "entries", len(entries))
	return entries, nil
}

// entryTime resolves an item timestamp: published, else updated, else now.
// Always UTC; the rest of the system treats timestamps as naive instants.
func (f *Fetcher) entryTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return f.clock.Now().UTC()
}
