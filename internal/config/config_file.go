package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	PortalBase           string `toml:"portal_base"`
	LocalNetCDF          string `toml:"local_netcdf"`
	LocalMode            string `toml:"local_netcdf_mode"`
	PlotOutput           string `toml:"plot_output"`
	DataDir              string `toml:"data_dir"`
	ObjectStoreHTTPSBase string `toml:"object_store_https_base"`
	CatalogTimeout       string `toml:"catalog_timeout"`
	DownloadTimeout      string `toml:"download_timeout"`
	SkipExisting         *bool  `toml:"skip_existing"`
	LogLevel             string `toml:"log_level"`

	MinIO struct {
		Endpoint  string `toml:"endpoint"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		Bucket    string `toml:"bucket"`
		UseSSL    *bool  `toml:"use_ssl"`
	} `toml:"minio"`
}

// LoadFile reads and parses a TOML config file from the given path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile applies file values to cfg. Flags that were explicitly set win.
func ApplyFile(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := setter{changed: changed}

	s.setString("portal-base", fc.PortalBase, &cfg.PortalBase)
	s.setString("local-netcdf", fc.LocalNetCDF, &cfg.LocalNetCDF)
	s.setString("local-mode", fc.LocalMode, &cfg.LocalMode)
	s.setString("output", fc.PlotOutput, &cfg.PlotOutput)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("object-store-base", fc.ObjectStoreHTTPSBase, &cfg.ObjectStoreHTTPSBase)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setString("minio-endpoint", fc.MinIO.Endpoint, &cfg.MinIOEndpoint)
	s.setString("minio-access-key", fc.MinIO.AccessKey, &cfg.MinIOAccessKey)
	s.setString("minio-secret-key", fc.MinIO.SecretKey, &cfg.MinIOSecretKey)
	s.setString("minio-bucket", fc.MinIO.Bucket, &cfg.MinIOBucket)

	if err := s.setDuration("catalog-timeout", fc.CatalogTimeout, &cfg.CatalogTimeout); err != nil {
		return err
	}
	if err := s.setDuration("download-timeout", fc.DownloadTimeout, &cfg.DownloadTimeout); err != nil {
		return err
	}
	s.setBoolPtr("skip-existing", fc.SkipExisting, &cfg.SkipExisting)
	s.setBoolPtr("minio-use-ssl", fc.MinIO.UseSSL, &cfg.MinIOUseSSL)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
