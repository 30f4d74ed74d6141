package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/zonca/cloudbank-showcase/internal/adapters/portal"
	"github.com/zonca/cloudbank-showcase/internal/config"
	"github.com/zonca/cloudbank-showcase/internal/exitcode"
	"github.com/zonca/cloudbank-showcase/internal/inspect"
	"github.com/zonca/cloudbank-showcase/internal/model"
	"github.com/zonca/cloudbank-showcase/internal/render"
	"github.com/zonca/cloudbank-showcase/internal/retrieval"
	"github.com/zonca/cloudbank-showcase/internal/storage"
)

const longHelp = `
Pick a NetCDF dataset from the portal catalog (or a local file), download it,
print a short summary and save a quick-look plot of one variable.

Configuration is read from a TOML file, then the environment (a .env file in
the working directory is loaded first), then flags. Later sources win.

Environment:
  PORTAL_BASE              portal root URL, the catalog lives under <base>/api
  LOCAL_NETCDF             local NetCDF path (skips the portal by default)
  LOCAL_NETCDF_MODE        override | fallback
  PLOT_OUTPUT              PNG output path (default plot.png)
  DATA_DIR                 download directory (default data)
  MINIO_ENDPOINT           publish the plot to MinIO/S3 when set
`

var exampleUsage = strings.TrimSpace(`
  portalplot --portal-base https://portal.example.org
  portalplot --local-netcdf ~/data/channel_rt.nc --output out/plot.png
  portalplot --config portalplot.toml --skip-existing
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// stageError tags a pipeline failure with the exit code it maps to.
type stageError struct {
	code int
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &stageError{code: code, err: err}
}

// exitCodeFor maps an error returned by the root command to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitcode.Success
	}

	var stage *stageError
	if errors.As(err, &stage) {
		return stage.code
	}

	var missing *config.ErrMissingRequiredEnvVar
	var noDatasets *retrieval.NoDatasetsAvailableError
	var retrievalErr *retrieval.RetrievalError
	switch {
	case errors.As(err, &missing):
		return exitcode.ConfigError
	case errors.As(err, &noDatasets):
		return exitcode.APIError
	case errors.As(err, &retrievalErr):
		return exitcode.NetworkError
	case errors.Is(err, inspect.ErrNoPlottableVariable):
		return exitcode.DataError
	default:
		return exitcode.ApplicationError
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var cfgPath, runID string

	root := &cobra.Command{
		Use:           "portalplot",
		Short:         "Quick-look plot of a NetCDF dataset from the portal catalog",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := loadConfig(&cfg, cfgPath, changed); err != nil {
				return fail(exitcode.ConfigError, err)
			}
			if runID != "" {
				if err := model.RunID(runID).Validate(); err != nil {
					return fail(exitcode.ConfigError, err)
				}
			}

			slog.SetDefault(newLogger(cfg.LogLevel))
			slog.InfoContext(cmd.Context(), "configuration",
				"portal_base", cfg.PortalBase,
				"local_netcdf", cfg.LocalNetCDF,
				"local_mode", cfg.LocalMode,
				"output", cfg.PlotOutput,
				"data_dir", cfg.DataDir,
				"skip_existing", cfg.SkipExisting,
				"publish", cfg.PublishEnabled(),
			)

			return run(cmd.Context(), &cfg, model.RunID(runID))
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fail(exitcode.ConfigError, err)
	})

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to a TOML config file (default: $PORTALPLOT_CONFIG)")
	f.StringVar(&cfg.PortalBase, "portal-base", cfg.PortalBase, "portal root URL")
	f.StringVar(&cfg.LocalNetCDF, "local-netcdf", cfg.LocalNetCDF, "local NetCDF file to use")
	f.StringVar(&cfg.LocalMode, "local-mode", cfg.LocalMode, "how --local-netcdf combines with the catalog: override or fallback")
	f.StringVar(&cfg.PlotOutput, "output", cfg.PlotOutput, "PNG output path")
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for downloaded datasets")
	f.StringVar(&cfg.ObjectStoreHTTPSBase, "object-store-base", cfg.ObjectStoreHTTPSBase, "HTTPS base that gs:// locations are rewritten to")
	f.DurationVar(&cfg.CatalogTimeout, "catalog-timeout", cfg.CatalogTimeout, "catalog request timeout")
	f.DurationVar(&cfg.DownloadTimeout, "download-timeout", cfg.DownloadTimeout, "dataset download timeout")
	f.BoolVar(&cfg.SkipExisting, "skip-existing", cfg.SkipExisting, "reuse a previous download when its size matches the catalog")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&runID, "run-id", "", "run identifier (UUIDv7) for the published plot; generated when empty")

	f.StringVar(&cfg.MinIOEndpoint, "minio-endpoint", cfg.MinIOEndpoint, "MinIO/S3 endpoint for publishing the plot")
	f.StringVar(&cfg.MinIOAccessKey, "minio-access-key", cfg.MinIOAccessKey, "MinIO access key")
	f.StringVar(&cfg.MinIOSecretKey, "minio-secret-key", cfg.MinIOSecretKey, "MinIO secret key")
	f.StringVar(&cfg.MinIOBucket, "minio-bucket", cfg.MinIOBucket, "MinIO bucket")
	f.BoolVar(&cfg.MinIOUseSSL, "minio-use-ssl", cfg.MinIOUseSSL, "use TLS for MinIO")
	for _, name := range []string{"minio-access-key", "minio-secret-key"} {
		if err := f.MarkHidden(name); err != nil {
			slog.Warn("failed to hide flag", "flag", name, "error", err)
		}
	}

	return root
}

// loadConfig layers the file config, .env and process environment under the
// flags already parsed into cfg.
func loadConfig(cfg *config.Config, cfgPath string, changed map[string]bool) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	if cfgPath == "" {
		cfgPath = os.Getenv("PORTALPLOT_CONFIG")
	}
	if cfgPath != "" {
		if !config.FileExists(cfgPath) {
			return fmt.Errorf("config file %s not found", cfgPath)
		}
		fc, err := config.LoadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFile(cfg, fc, changed); err != nil {
			return err
		}
	}

	return config.Load(cfg, changed)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// run resolves one dataset, renders its plot and optionally publishes it.
func run(ctx context.Context, cfg *config.Config, runID model.RunID) error {
	var catalog retrieval.Catalog
	if base := cfg.CatalogBase(); base != "" {
		catalog = portal.NewClient(base, cfg.CatalogTimeout)
	}

	fetcher := retrieval.NewFetcher(retrieval.FetcherConfig{
		DataDir:      cfg.DataDir,
		HTTPSBase:    cfg.ObjectStoreHTTPSBase,
		Timeout:      cfg.DownloadTimeout,
		SkipExisting: cfg.SkipExisting,
	})

	mode := retrieval.LocalOverride
	if cfg.LocalMode == config.LocalModeFallback {
		mode = retrieval.LocalFallback
	}
	svc := retrieval.NewService(catalog, fetcher, retrieval.Options{
		LocalPath: cfg.LocalNetCDF,
		LocalMode: mode,
	})

	path, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	if err := plot(ctx, path, cfg.PlotOutput); err != nil {
		return err
	}

	if !cfg.PublishEnabled() {
		return nil
	}
	return publish(ctx, cfg, path, runID)
}

func plot(ctx context.Context, path, output string) error {
	ds, err := inspect.Open(path)
	if err != nil {
		return fail(exitcode.DataError, err)
	}
	defer ds.Close()

	summary, err := ds.Summary()
	if err != nil {
		return fail(exitcode.DataError, err)
	}
	logSummary(ctx, summary)

	name, err := ds.PlotVariable()
	if err != nil {
		return fail(exitcode.DataError, err)
	}
	slog.InfoContext(ctx, "plotting variable", "name", name)

	sample, err := ds.Sample(name)
	if err != nil {
		return fail(exitcode.DataError, err)
	}
	if err := render.Save(sample, output); err != nil {
		return fail(exitcode.StorageError, err)
	}

	slog.InfoContext(ctx, "saved plot", "path", output, "variable", name, "points", sample.N())
	return nil
}

func logSummary(ctx context.Context, s inspect.Summary) {
	slog.InfoContext(ctx, "dataset summary", "path", s.Path, "variables", len(s.Variables), "attributes", len(s.Attributes))
	for _, v := range s.Variables {
		slog.InfoContext(ctx, "variable",
			"name", v.Name,
			"dims", v.Dimensions,
			"type", v.Type,
			"len", v.Len,
		)
	}
	for _, a := range s.Attributes {
		slog.DebugContext(ctx, "attribute", "key", a.Key, "value", a.Value)
	}
}

func publish(ctx context.Context, cfg *config.Config, path string, runID model.RunID) error {
	if runID == "" {
		id, err := model.NewRunID()
		if err != nil {
			return fail(exitcode.ApplicationError, err)
		}
		runID = id
	}

	client, err := storage.NewMinIOClient(ctx, storage.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return fail(exitcode.StorageError, err)
	}

	datasetID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := storage.PublishPlot(ctx, client, datasetID, runID, time.Now(), cfg.PlotOutput); err != nil {
		return fail(exitcode.StorageError, err)
	}
	return nil
}

func main() {
	slog.SetDefault(newLogger("info"))

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		slog.Error("application error", "error", err)
		os.Exit(exitCodeFor(err))
	}

	slog.Info("shutdown complete")
}
