package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	appconfig "feedbrief/internal/config"
	"feedbrief/internal/domain/entity"
	"feedbrief/internal/infra/feed"
	"feedbrief/internal/infra/summarizer"
	"feedbrief/internal/infra/worker"
	"feedbrief/internal/infra/writer"
	"feedbrief/internal/observability/logging"
	pkgconfig "feedbrief/internal/pkg/config"
	"feedbrief/internal/usecase/aggregate"
	"feedbrief/internal/usecase/classify"
	"feedbrief/internal/usecase/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	logger := logging.New()
	slog.SetDefault(logger)

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runOnce()
	case "daemon":
		runDaemon()
	case "health":
		runHealth()
	case "test":
		runTest(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "usage: feedbrief [run|daemon|health|test]\n")
		os.Exit(2)
	}
}

// runOnce executes one pipeline pass and exits.
func runOnce() {
	svc, _ := buildPipeline()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	stats, err := svc.Run(ctx)
	if err != nil {
		slog.Error("pipeline run failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("pipeline run completed",
		slog.String("run_id", stats.RunID),
		slog.Int("sources", stats.Sources),
		slog.Int("failed_sources", stats.FailedSources),
		slog.Int("records", stats.Records),
		slog.Int("buckets", stats.Buckets),
		slog.Int64("summarize_errors", stats.SummarizeErrors),
		slog.Int64("write_errors", stats.WriteErrors),
		slog.Duration("duration", stats.Duration))
}

// runDaemon runs the pipeline on the configured cron schedule until a
// stop signal arrives.
func runDaemon() {
	workerMetrics := worker.NewMetrics()
	workerConfig := worker.LoadConfigFromEnv(workerMetrics)
	slog.Info("worker configuration loaded",
		slog.Bool("enabled", workerConfig.Enabled),
		slog.String("schedule", workerConfig.Schedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Bool("run_on_start", workerConfig.RunOnStart),
		slog.Duration("job_timeout", workerConfig.JobTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	svc, sources := buildPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startMetricsServer(ctx)

	job := func(jobCtx context.Context) error {
		stats, err := svc.Run(jobCtx)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				workerMetrics.RecordJobRun("skipped")
				return nil
			}
			return err
		}
		workerMetrics.RecordSourcesProcessed(stats.Sources)
		slog.Info("scheduled run completed",
			slog.String("run_id", stats.RunID),
			slog.Int("sources", stats.Sources),
			slog.Int("records", stats.Records),
			slog.Int("buckets", stats.Buckets),
			slog.Duration("duration", stats.Duration))
		return nil
	}

	slog.Info("daemon starting", slog.Int("sources", sources))
	daemon := worker.NewDaemon(workerConfig, job, workerMetrics)
	if err := daemon.Run(ctx); err != nil {
		slog.Error("daemon failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runHealth pings the summarizer and the writer and exits non-zero when
// either is unreachable.
func runHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sum := createSummarizer()
	wr := createWriter()

	failed := false
	if err := sum.Ping(ctx); err != nil {
		slog.Error("summarizer unhealthy", slog.Any("error", err))
		failed = true
	} else {
		slog.Info("summarizer healthy")
	}
	if err := wr.Ping(ctx); err != nil {
		slog.Error("writer unhealthy", slog.Any("error", err))
		failed = true
	} else {
		slog.Info("writer healthy")
	}

	if failed {
		os.Exit(1)
	}
}

// testRecordCap bounds the records taken during a test run.
const testRecordCap = 5

// runTest performs a reduced end-to-end run against a single source:
// the first enabled one, or the one named by -source, capped to a few
// records. Useful for verifying a new feed before scheduling it.
func runTest(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	sourceLabel := fs.String("source", "", "label of the source to test (default: first enabled)")
	_ = fs.Parse(args)

	configMetrics := pkgconfig.NewMetrics("pipeline")
	app := appconfig.LoadApp(configMetrics)

	file, err := appconfig.LoadSourcesFile(app.SourcesPath)
	if err != nil {
		slog.Error("sources file invalid", slog.Any("error", err))
		os.Exit(1)
	}

	target := pickTestSource(file.Sources, *sourceLabel)
	if target == nil {
		slog.Error("no matching enabled source", slog.String("source", *sourceLabel))
		os.Exit(1)
	}
	slog.Info("testing single source",
		slog.String("source", target.DisplayName),
		slog.String("label", target.Label),
		slog.String("url", target.URL),
		slog.Int("record_cap", testRecordCap))

	fetcher := feed.NewRSSFetcher(createHTTPClient())
	aggregator := aggregate.NewService(fetcher, aggregate.Config{
		Window:              app.Window,
		NetworkPolicy:       app.NetworkPolicy,
		MaxRecordsPerSource: testRecordCap,
	})

	svc := pipeline.NewService(aggregator, createSummarizer(), createWriter(),
		[]*entity.Source{target}, pipeline.Config{
			FallbackLabel: app.FallbackLabel,
			WatchTerms:    file.Watch.Terms,
			ModelPolicy:   app.ModelPolicy,
			WritePolicy:   app.WritePolicy,
		})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stats, err := svc.Run(ctx)
	if err != nil {
		slog.Error("test run failed", slog.Any("error", err))
		os.Exit(1)
	}
	if stats.FailedSources > 0 {
		slog.Error("source fetch failed")
		os.Exit(1)
	}

	slog.Info("test run completed",
		slog.Int("records", stats.Records),
		slog.Int("buckets", stats.Buckets),
		slog.Int64("summarize_errors", stats.SummarizeErrors),
		slog.Int64("write_errors", stats.WriteErrors),
		slog.Duration("duration", stats.Duration))
}

// pickTestSource returns the enabled source with the given label, or the
// first enabled source when label is empty.
func pickTestSource(sources []*entity.Source, label string) *entity.Source {
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		if label == "" || src.Label == label {
			return src
		}
	}
	return nil
}

// buildPipeline wires the full pipeline from configuration. It returns
// the service and the number of configured sources.
func buildPipeline() (*pipeline.Service, int) {
	configMetrics := pkgconfig.NewMetrics("pipeline")
	app := appconfig.LoadApp(configMetrics)

	file, err := appconfig.LoadSourcesFile(app.SourcesPath)
	if err != nil {
		slog.Error("failed to load sources file", slog.Any("error", err))
		os.Exit(1)
	}

	// Sources without an explicit label get one inferred from their name.
	taxonomy := classify.DefaultTaxonomy()
	for _, src := range file.Sources {
		if src.Label != "" {
			continue
		}
		inferred := classify.Classify(src.DisplayName, taxonomy)
		src.Label = inferred.Label
		slog.Info("source label inferred",
			slog.String("source", src.DisplayName),
			slog.String("label", inferred.Label),
			slog.Bool("matched", inferred.Matched))
	}

	fetcher := feed.NewRSSFetcher(createHTTPClient())
	aggregator := aggregate.NewService(fetcher, aggregate.Config{
		Window:              app.Window,
		NetworkPolicy:       app.NetworkPolicy,
		MaxRecordsPerSource: app.MaxRecordsPerSource,
	})

	svc := pipeline.NewService(aggregator, createSummarizer(), createWriter(), file.Sources, pipeline.Config{
		FallbackLabel: app.FallbackLabel,
		WatchTerms:    file.Watch.Terms,
		ModelPolicy:   app.ModelPolicy,
		WritePolicy:   app.WritePolicy,
		OverlapGuard:  app.OverlapGuard,
	})

	return svc, len(file.Sources)
}

// createSummarizer picks the summarizer from SUMMARIZER_TYPE. Missing
// API keys are fail-closed: a digest silently produced without
// summaries is worse than a refused start.
func createSummarizer() pipeline.Summarizer {
	cfg := summarizer.LoadConfig()

	switch kind := pkgconfig.String("SUMMARIZER_TYPE", "claude"); kind {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			slog.Error("ANTHROPIC_API_KEY is required when SUMMARIZER_TYPE=claude")
			os.Exit(1)
		}
		return summarizer.NewClaude(apiKey, cfg)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			slog.Error("OPENAI_API_KEY is required when SUMMARIZER_TYPE=openai")
			os.Exit(1)
		}
		return summarizer.NewOpenAI(apiKey, cfg)
	case "noop":
		slog.Info("using no-op summarizer")
		return summarizer.NewNoop()
	default:
		slog.Error("invalid SUMMARIZER_TYPE",
			slog.String("type", kind),
			slog.String("expected", "claude, openai, or noop"))
		os.Exit(1)
		return nil
	}
}

// createWriter picks the document writer from WRITER_TYPE.
func createWriter() pipeline.Writer {
	switch kind := pkgconfig.String("WRITER_TYPE", "filesystem"); kind {
	case "filesystem":
		root := pkgconfig.String("OUTPUT_DIR", "digests")
		slog.Info("using filesystem writer", slog.String("root", root))
		return writer.NewFilesystem(writer.DefaultFilesystemConfig(root))
	case "docstore":
		baseURL := os.Getenv("DOCSTORE_URL")
		if baseURL == "" {
			slog.Error("DOCSTORE_URL is required when WRITER_TYPE=docstore")
			os.Exit(1)
		}
		slog.Info("using document store writer", slog.String("base_url", baseURL))
		return writer.NewDocStore(writer.DocStoreConfig{
			BaseURL:  baseURL,
			APIToken: os.Getenv("DOCSTORE_TOKEN"),
		}, createHTTPClient())
	default:
		slog.Error("invalid WRITER_TYPE",
			slog.String("type", kind),
			slog.String("expected", "filesystem or docstore"))
		os.Exit(1)
		return nil
	}
}

// createHTTPClient builds the shared outbound HTTP client. TLS 1.2+ is
// enforced.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
