package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	LocalModeOverride = "override"
	LocalModeFallback = "fallback"

	DefaultPlotOutput           = "plot.png"
	DefaultDataDir              = "data"
	DefaultObjectStoreHTTPSBase = "https://storage.googleapis.com/"
	DefaultCatalogTimeout       = 30 * time.Second
	// Downloads are expected to be large; the listing is not.
	DefaultDownloadTimeout = 300 * time.Second
)

// Config holds application configuration.
// It is built once at startup and passed to each component.
type Config struct {
	PortalBase  string
	LocalNetCDF string
	// LocalMode is LocalModeOverride (skip the catalog) or LocalModeFallback
	// (use LocalNetCDF only when the catalog lists nothing).
	LocalMode string

	PlotOutput string
	DataDir    string

	ObjectStoreHTTPSBase string
	CatalogTimeout       time.Duration
	DownloadTimeout      time.Duration
	SkipExisting         bool

	LogLevel string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		LocalMode:            LocalModeOverride,
		PlotOutput:           DefaultPlotOutput,
		DataDir:              DefaultDataDir,
		ObjectStoreHTTPSBase: DefaultObjectStoreHTTPSBase,
		CatalogTimeout:       DefaultCatalogTimeout,
		DownloadTimeout:      DefaultDownloadTimeout,
		LogLevel:             "info",
	}
}

// Load applies environment variables on top of cfg and validates the result.
// Fields whose flag is in changed keep their value.
// Returns an error if required variables are missing.
func Load(cfg *Config, changed map[string]bool) error {
	if err := ApplyEnv(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

// ApplyEnv applies environment variables to cfg, skipping any field whose
// flag was explicitly set on the command line.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := setter{changed: changed}

	s.setString("portal-base", os.Getenv("PORTAL_BASE"), &cfg.PortalBase)
	s.setString("local-netcdf", os.Getenv("LOCAL_NETCDF"), &cfg.LocalNetCDF)
	s.setString("local-mode", os.Getenv("LOCAL_NETCDF_MODE"), &cfg.LocalMode)
	s.setString("output", os.Getenv("PLOT_OUTPUT"), &cfg.PlotOutput)
	s.setString("data-dir", os.Getenv("DATA_DIR"), &cfg.DataDir)
	s.setString("object-store-base", os.Getenv("OBJECT_STORE_HTTPS_BASE"), &cfg.ObjectStoreHTTPSBase)
	s.setString("log-level", os.Getenv("LOG_LEVEL"), &cfg.LogLevel)

	s.setString("minio-endpoint", os.Getenv("MINIO_ENDPOINT"), &cfg.MinIOEndpoint)
	s.setString("minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), &cfg.MinIOAccessKey)
	s.setString("minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), &cfg.MinIOSecretKey)
	s.setString("minio-bucket", os.Getenv("MINIO_BUCKET"), &cfg.MinIOBucket)

	if err := s.setDuration("catalog-timeout", os.Getenv("CATALOG_TIMEOUT"), &cfg.CatalogTimeout); err != nil {
		return err
	}
	if err := s.setDuration("download-timeout", os.Getenv("DOWNLOAD_TIMEOUT"), &cfg.DownloadTimeout); err != nil {
		return err
	}
	if err := s.setBool("skip-existing", os.Getenv("SKIP_EXISTING"), &cfg.SkipExisting); err != nil {
		return err
	}
	if err := s.setBool("minio-use-ssl", os.Getenv("MINIO_USE_SSL"), &cfg.MinIOUseSSL); err != nil {
		return err
	}

	return nil
}

// Validate checks the configuration and normalizes derived values.
func (c *Config) Validate() error {
	c.PortalBase = strings.TrimRight(strings.TrimSpace(c.PortalBase), "/")
	c.LocalNetCDF = strings.TrimSpace(c.LocalNetCDF)

	// The portal is optional only when a local file is supplied.
	if c.PortalBase == "" && c.LocalNetCDF == "" {
		return &ErrMissingRequiredEnvVar{Name: "PORTAL_BASE"}
	}
	if c.LocalMode != LocalModeOverride && c.LocalMode != LocalModeFallback {
		return fmt.Errorf("local mode must be %q or %q, got %q", LocalModeOverride, LocalModeFallback, c.LocalMode)
	}
	if c.PlotOutput == "" {
		return fmt.Errorf("plot output path cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}
	if c.ObjectStoreHTTPSBase != "" && !strings.HasSuffix(c.ObjectStoreHTTPSBase, "/") {
		c.ObjectStoreHTTPSBase += "/"
	}
	if c.MinIOEndpoint != "" && c.MinIOBucket == "" {
		return &ErrMissingRequiredEnvVar{Name: "MINIO_BUCKET"}
	}
	return nil
}

// CatalogBase returns the catalog API root, or "" when the catalog must not
// be queried (no portal configured, or a local override is in effect).
func (c *Config) CatalogBase() string {
	if c.PortalBase == "" || (c.LocalNetCDF != "" && c.LocalMode == LocalModeOverride) {
		return ""
	}
	return c.PortalBase + "/api"
}

// PublishEnabled reports whether the rendered plot should be uploaded.
func (c *Config) PublishEnabled() bool {
	return c.MinIOEndpoint != ""
}

// setter applies values while respecting flag precedence.
type setter struct {
	changed map[string]bool
}

func (s setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s setter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s setter) setBool(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

func (s setter) setBoolPtr(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}
