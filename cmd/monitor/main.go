package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osint-monitor/internal/adapter/feed"
	"github.com/couchcryptid/osint-monitor/internal/adapter/gazetteer"
	httpadapter "github.com/couchcryptid/osint-monitor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/osint-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/osint-monitor/internal/adapter/sqlite"
	"github.com/couchcryptid/osint-monitor/internal/analytics"
	"github.com/couchcryptid/osint-monitor/internal/config"
	"github.com/couchcryptid/osint-monitor/internal/domain"
	"github.com/couchcryptid/osint-monitor/internal/observability"
	"github.com/couchcryptid/osint-monitor/internal/pipeline"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "monitor",
		Short: "OSINT event monitor: feed ingestion, geo enrichment, spike detection",
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(spikesCmd())
	rootCmd.AddCommand(situationsCmd())
	rootCmd.AddCommand(buildGeoIndexCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles the wired adapters a command needs.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *sqlite.Store
}

func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, metrics: metrics, store: store}, nil
}

// newPipeline wires the full ingest path. The gazetteer and the Kafka sink
// are both optional: a missing alias index disables geo enrichment, missing
// brokers disable publishing.
func (rt *runtime) newPipeline() (*pipeline.Pipeline, func(), error) {
	var resolver domain.PlaceResolver
	index, err := gazetteer.Open(rt.cfg.GeoIndexPath, rt.metrics, rt.logger)
	switch {
	case err == nil:
		resolver = index
	case errors.Is(err, gazetteer.ErrUnavailable):
		rt.logger.Warn("geo enrichment disabled", "error", err)
	default:
		return nil, nil, fmt.Errorf("open gazetteer: %w", err)
	}

	fetcher := feed.NewFetcher(rt.cfg.FeedTimeout, nil, rt.metrics, rt.logger)

	var publisher pipeline.Publisher
	closeSink := func() {}
	if rt.cfg.SinkEnabled() {
		kp := kafkaadapter.NewPublisher(rt.cfg.KafkaBrokers, rt.cfg.KafkaSinkTopic, rt.logger)
		publisher = kp
		closeSink = func() {
			if err := kp.Close(); err != nil {
				rt.logger.Error("kafka publisher close error", "error", err)
			}
		}
	}

	var scorer domain.Scorer = domain.KeywordScorer{}
	if rt.cfg.Scorer == "watchlist" {
		scorer = domain.WatchlistScorer{Watchlist: rt.cfg.Watchlist, Weights: rt.cfg.Weights}
	}

	p := pipeline.New(fetcher, resolver, scorer, rt.store, publisher, rt.cfg.Sources, rt.cfg.FeedLimit, rt.logger, rt.metrics)
	return p, closeSink, nil
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingest pass over all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			p, closeSink, err := rt.newPipeline()
			if err != nil {
				return err
			}
			defer closeSink()

			summary, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("ingested %d entries: %d upserted, %d geo-resolved, %d geo-missed, %d dropped, %d source errors\n",
				summary.Fetched, summary.Upserted, summary.GeoResolved, summary.GeoMissed, summary.Dropped, summary.SourceErrors)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var ingestEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API, optionally ingesting on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			detector := analytics.NewDetector(nil)
			srv := httpadapter.NewServer(rt.cfg.HTTPAddr, rt.store, rt.store, detector, rt.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					rt.logger.Error("http server error", "error", err)
					stop()
				}
			}()

			closeSink := func() {}
			if ingestEvery > 0 {
				p, cs, err := rt.newPipeline()
				if err != nil {
					return err
				}
				closeSink = cs
				go ingestLoop(ctx, p, ingestEvery, rt.logger)
			}

			<-ctx.Done()
			rt.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Error("http server shutdown error", "error", err)
			}
			closeSink()

			rt.logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().DurationVar(&ingestEvery, "ingest-every", 0, "run an ingest pass on this interval (0 disables)")
	return cmd
}

func ingestLoop(ctx context.Context, p *pipeline.Pipeline, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingest pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func queryCmd() *cobra.Command {
	var (
		domainFilter string
		hours        int
		minPriority  int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print stored events as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
			events, err := rt.store.QueryEvents(cmd.Context(), domainFilter, since, minPriority)
			if err != nil {
				return err
			}
			if events == nil {
				events = []domain.Event{}
			}
			return printJSON(events)
		},
	}

	cmd.Flags().StringVar(&domainFilter, "domain", "all", "domain filter (all, cti, geopolitics, ...)")
	cmd.Flags().IntVar(&hours, "hours", 168, "look back this many hours")
	cmd.Flags().IntVar(&minPriority, "min-priority", 0, "minimum priority")
	return cmd
}

func spikesCmd() *cobra.Command {
	var (
		domainFilter string
		top          int
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "spikes",
		Short: "Rank groups spiking against their baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			params := analytics.DefaultSpikeParams()
			params.TopN = top

			since := time.Now().UTC().AddDate(0, 0, -params.LookbackDays)
			events, err := rt.store.QueryEvents(cmd.Context(), domainFilter, since, 0)
			if err != nil {
				return err
			}

			spikes := analytics.NewDetector(nil).DetectSpikes(events, params)
			if asJSON {
				if spikes == nil {
					spikes = []analytics.Spike{}
				}
				return printJSON(spikes)
			}

			w := newTabWriter()
			fmt.Fprintln(w, "GROUP\tRECENT_24H\tBASELINE\tPCT\tZ\tTOTAL")
			for _, s := range spikes {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.1f\t%.2f\t%d\n",
					s.Group, s.Recent24h, s.BaselineAvg, s.PctVsBaseline, s.ZToday, s.Total)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&domainFilter, "domain", "all", "domain filter")
	cmd.Flags().IntVar(&top, "top", analytics.DefaultSpikeParams().TopN, "maximum groups to report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func situationsCmd() *cobra.Command {
	var (
		domainFilter string
		hours        int
		top          int
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "situations",
		Short: "Rank currently active situations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
			events, err := rt.store.QueryEvents(cmd.Context(), domainFilter, since, 0)
			if err != nil {
				return err
			}

			situations := analytics.NewDetector(nil).ActiveSituations(events, top)
			if asJSON {
				if situations == nil {
					situations = []analytics.Situation{}
				}
				return printJSON(situations)
			}

			w := newTabWriter()
			fmt.Fprintln(w, "SITUATION\tEVENTS\tMAX_PRI\tAVG_PRI\tLAST_TS\tTOP_SOURCE\tSCORE")
			for _, s := range situations {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%s\t%s\t%.2f\n",
					s.Situation, s.Events, s.MaxPriority, s.AvgPriority,
					s.LastTS.Format(time.RFC3339), s.TopSource, s.Score)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&domainFilter, "domain", "all", "domain filter")
	cmd.Flags().IntVar(&hours, "hours", 72, "look back this many hours")
	cmd.Flags().IntVar(&top, "top", 10, "maximum situations to report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func buildGeoIndexCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "build-geo-index [geonames-tsv]",
		Short: "Build the alias CSV index from a GeoNames dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := gazetteer.Build(args[0], out)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d aliases to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "data/geo_index.csv", "output CSV path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Ensure the events schema, including geo columns, is up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.store.Close()

			if err := rt.store.EnsureGeoColumns(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
