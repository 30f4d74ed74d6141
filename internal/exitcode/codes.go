package exitcode

// Exit codes for the portalplot CLI.
// Schedulers can use these to decide whether a rerun can help.
const (
	// Success - plot rendered (and published, when configured)
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't retry: fix the config first
	ConfigError = 1

	// NetworkError - the selected dataset could not be downloaded
	// Retry with backoff
	NetworkError = 2

	// APIError - the portal listed nothing usable and no local file was set
	// Check the portal, or set LOCAL_NETCDF
	APIError = 3

	// StorageError - failed to write the plot locally or to MinIO/S3
	// Retry with backoff
	StorageError = 4

	// DataError - the file could not be opened or has nothing to plot
	// Don't retry: investigate the data
	DataError = 5

	// ApplicationError - anything else
	ApplicationError = 6
)
