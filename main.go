package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dealflow/config"
	"dealflow/internal/metadata"
	"dealflow/logger"
	"dealflow/models"
	"dealflow/processor"
	"dealflow/reader/imf"
	"dealflow/reader/itad"
	"dealflow/server"
	"dealflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	mode := flag.String("mode", "collect", "Run mode: collect, serve or lookup")
	query := flag.String("query", "", "Game title to search for in lookup mode")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace, "")
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Dealflow.Name,
		"version":     cfg.Dealflow.Version,
		"environment": config.AppEnvironment(),
		"mode":        *mode,
	}).Info("starting dealflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	var runErr error
	switch strings.ToLower(*mode) {
	case "collect":
		runErr = runCollect(ctx, cfg, log)
	case "serve":
		runErr = runServe(ctx, cfg)
	case "lookup":
		runErr = runLookup(ctx, cfg, log, *query)
	default:
		log.WithFields(logger.Fields{"mode": *mode}).Error("unknown run mode")
		os.Exit(2)
	}

	if runErr != nil {
		log.WithError(runErr).Error("run failed")
		os.Exit(1)
	}

	log.Info("dealflow finished")
}

// runCollect performs one full collection pass: price histories per
// country, then the indicator set, then the run manifest and the optional
// S3 mirror. Upstream failures skip the affected country or indicator; an
// unrecognized payload shape aborts the run.
func runCollect(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	started := time.Now()

	itadClient, err := itad.NewClient(cfg.Source.ITAD)
	if err != nil {
		return err
	}
	imfClient := imf.NewClient(cfg.Source.IMF)

	adapter := processor.NewAdapter()
	manifest := metadata.NewGenerator(cfg.Dealflow.Name, cfg.Dealflow.Version)
	clog := log.WithComponent("collect").WithFields(logger.Fields{"run_id": manifest.RunID()})

	exported := 0
	for _, country := range cfg.Source.ITAD.Countries {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := collectCountry(ctx, cfg, adapter, itadClient, manifest, country)
		if err != nil {
			if errors.Is(err, models.ErrUnknownShape) {
				return fmt.Errorf("country %s: %w", country, err)
			}
			clog.WithError(err).WithFields(logger.Fields{"country": country}).Error("price collection failed, skipping country")
			continue
		}

		exported++
		clog.WithFields(logger.Fields{"country": country, "records": records}).Info("price history exported")
	}

	observations := collectIndicators(ctx, cfg, adapter, imfClient, log)
	if len(observations) == 0 {
		clog.Warn("no indicator observations collected, skipping indicator export")
	} else if err := exportIndicators(cfg, manifest, observations); err != nil {
		return err
	}

	manifestPath, err := manifest.Write(cfg.Export.Directory)
	if err != nil {
		return err
	}

	if cfg.Storage.S3.Enabled {
		mirrorArtifacts(ctx, cfg, log, manifest, manifestPath)
	}

	log.LogMetric("collect", "run_duration_seconds", time.Since(started).Seconds(), "gauge", logger.Fields{
		"countries":    exported,
		"observations": len(observations),
		"artifacts":    len(manifest.Artifacts()),
		"dropped_rows": adapter.Dropped(),
	})
	clog.WithFields(logger.Fields{
		"countries": exported,
		"artifacts": len(manifest.Artifacts()),
		"manifest":  manifestPath,
	}).Info("collection run complete")

	return nil
}

// collectCountry fetches, normalizes and exports one country's price
// history. It returns the number of records that survived filtering.
func collectCountry(ctx context.Context, cfg *config.Config, adapter *processor.Adapter, client *itad.Client, manifest *metadata.Generator, country string) (int, error) {
	src := cfg.Source.ITAD

	payload, err := client.GameHistory(ctx, itad.HistoryRequest{
		GameID:  src.GameID,
		Country: country,
		Since:   src.Since,
		ShopIDs: src.ShopIDs,
	})
	if err != nil {
		return 0, err
	}

	set, err := adapter.Normalize(payload, models.DetectShape(payload), "")
	if err != nil {
		return 0, err
	}

	// The upstream already honors since/shops, but legacy shop-map payloads
	// ignore both, so the window and shop list are applied again here.
	rng, err := processor.ParseDateRange(src.Since, "")
	if err != nil {
		return 0, err
	}
	records := processor.FilterPrices(set.Prices, rng, src.ShopIDs)

	now := time.Now()
	dir := cfg.Export.Directory
	upper := strings.ToUpper(country)
	base := "price_history_" + upper

	doc := writer.BuildPriceDocument(src.GameID, upper, src.Since, "", records, now)
	jsonPath := filepath.Join(dir, base+".json")
	if err := writer.WriteJSON(jsonPath, doc); err != nil {
		return 0, err
	}
	addArtifact(manifest, jsonPath, "json", len(records))

	if cfg.Export.HasFormat("csv") {
		csvPath := filepath.Join(dir, base+".csv")
		if err := writer.WritePriceCSV(csvPath, records); err != nil {
			return 0, err
		}
		addArtifact(manifest, csvPath, "csv", len(records))
	}

	if cfg.Export.Parquet.Enabled {
		pqPath := filepath.Join(dir, base+".parquet")
		if err := writer.WritePriceParquet(pqPath, cfg.Export.Parquet.Compression, records); err != nil {
			return 0, err
		}
		addArtifact(manifest, pqPath, "parquet", len(records))
	}

	summary, err := processor.Summarize(records)
	if err == nil {
		sumDoc := &models.SummaryDocument{
			GameID:      src.GameID,
			Country:     upper,
			GeneratedAt: now.UTC().Format(time.RFC3339),
			Summary:     *summary,
		}
		sumPath := filepath.Join(dir, "price_summary_"+upper+".json")
		if err := writer.WriteJSON(sumPath, sumDoc); err != nil {
			return 0, err
		}
		addArtifact(manifest, sumPath, "json", summary.TotalRecords)
	}

	return len(records), nil
}

// collectIndicators fetches every configured indicator series. A failed
// indicator is logged and skipped so one bad series cannot starve the rest.
func collectIndicators(ctx context.Context, cfg *config.Config, adapter *processor.Adapter, client *imf.Client, log *logger.Log) []models.IndicatorObservation {
	src := cfg.Source.IMF
	ilog := log.WithComponent("collect")

	var observations []models.IndicatorObservation
	for _, spec := range src.Indicators {
		if ctx.Err() != nil {
			return observations
		}

		payload, err := client.IndicatorSeries(ctx, imf.SeriesRequest{
			Indicator: spec.Code,
			Countries: src.Countries,
			StartYear: src.StartYear,
			EndYear:   src.EndYear,
		})
		if err != nil {
			ilog.WithError(err).WithFields(logger.Fields{"indicator": spec.Code}).Error("indicator fetch failed, skipping")
			continue
		}

		set, err := adapter.Normalize(payload, models.ShapeIndicatorTable, spec.Code)
		if err != nil {
			ilog.WithError(err).WithFields(logger.Fields{"indicator": spec.Code}).Error("indicator payload rejected, skipping")
			continue
		}

		observations = append(observations, processor.FilterObservations(set.Observations, src.Countries)...)
	}

	return observations
}

// exportIndicators pivots the collected observations and writes the
// indicator document plus the optional CSV bundle and Parquet snapshot.
func exportIndicators(cfg *config.Config, manifest *metadata.Generator, obs []models.IndicatorObservation) error {
	ds, err := processor.PivotIndicators(obs)
	if err != nil {
		return err
	}

	now := time.Now()
	descriptions := cfg.Source.IMF.Descriptions()
	dir := cfg.Export.Directory

	doc, err := writer.BuildIndicatorDocument(ds, descriptions, now)
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(dir, "economic_indicators.json")
	if err := writer.WriteJSON(jsonPath, doc); err != nil {
		return err
	}
	addArtifact(manifest, jsonPath, "json", ds.TotalRecords())

	if cfg.Export.HasFormat("bundle") {
		paths, err := writer.WriteIndicatorBundle(filepath.Join(dir, "economic_indicators_csv"), obs, ds, descriptions, now)
		if err != nil {
			return err
		}
		for _, p := range paths {
			addArtifact(manifest, p, "csv", len(obs))
		}
	}

	if cfg.Export.Parquet.Enabled {
		pqPath := filepath.Join(dir, "economic_indicators.parquet")
		if err := writer.WriteIndicatorParquet(pqPath, cfg.Export.Parquet.Compression, obs); err != nil {
			return err
		}
		addArtifact(manifest, pqPath, "parquet", len(obs))
	}

	return nil
}

// mirrorArtifacts uploads every manifest artifact plus the manifest itself.
// Upload failures are logged per object; the local export is already
// complete at this point, so the run itself does not fail.
func mirrorArtifacts(ctx context.Context, cfg *config.Config, log *logger.Log, manifest *metadata.Generator, manifestPath string) {
	slog := log.WithComponent("s3_writer")

	uploader, err := writer.NewS3Uploader(cfg)
	if err != nil {
		slog.WithError(err).Error("s3 uploader unavailable, artifacts not mirrored")
		return
	}

	now := time.Now()
	uploaded := 0
	for _, artifact := range manifest.Artifacts() {
		key, err := uploader.UploadFile(ctx, artifact.Path, now)
		if err != nil {
			slog.WithError(err).WithFields(logger.Fields{"path": artifact.Path}).Error("artifact upload failed")
			continue
		}
		uploaded++
		slog.WithFields(logger.Fields{"key": key}).Debug("artifact mirrored")
	}

	if _, err := uploader.UploadFile(ctx, manifestPath, now); err != nil {
		slog.WithError(err).Error("manifest upload failed")
	} else {
		uploaded++
	}

	slog.WithFields(logger.Fields{"uploaded": uploaded}).Info("artifact mirror complete")
}

func addArtifact(manifest *metadata.Generator, path, format string, records int) {
	if err := manifest.AddArtifact(path, format, records); err != nil {
		logger.GetLogger().WithComponent("collect").WithError(err).WithFields(logger.Fields{
			"path": path,
		}).Warn("artifact not recorded in manifest")
	}
}

// runServe loads the exported artifacts and serves them until the context
// is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	defaultCountry := ""
	if len(cfg.Source.ITAD.Countries) > 0 {
		defaultCountry = cfg.Source.ITAD.Countries[0]
	}

	store := server.NewStore(cfg.Export.Directory, defaultCountry)
	if err := store.Load(); err != nil {
		return err
	}

	return server.NewServer(cfg, store).Run(ctx)
}

type lookupDocument struct {
	Query       string              `json:"query"`
	GeneratedAt string              `json:"generated_at"`
	Results     []itad.SearchResult `json:"results"`
}

// runLookup searches the deal catalog by title and writes the matches to
// game_lookup.json, for picking the game id to configure.
func runLookup(ctx context.Context, cfg *config.Config, log *logger.Log, query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("lookup mode requires -query")
	}

	client, err := itad.NewClient(cfg.Source.ITAD)
	if err != nil {
		return err
	}

	results, err := client.SearchGames(ctx, query, 20)
	if err != nil {
		return err
	}

	outPath := filepath.Join(cfg.Export.Directory, "game_lookup.json")
	doc := &lookupDocument{
		Query:       query,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Results:     results,
	}
	if err := writer.WriteJSON(outPath, doc); err != nil {
		return err
	}

	log.WithComponent("lookup").WithFields(logger.Fields{
		"query":   query,
		"results": len(results),
		"path":    outPath,
	}).Info("game lookup written")

	return nil
}
