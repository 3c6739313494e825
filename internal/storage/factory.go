package storage

import (
	"context"
	"fmt"
	"log/slog"

	"icescan/internal/config"
	"icescan/internal/domain"
)

// NewFromConfig builds a Router with a backend for every store configured in
// cfg, wrapped in a Throttled limiter when IO throttling is set. The returned
// close function releases backend clients.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.FileIO, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	router := NewRouter(NewLocal())

	if cfg.HasS3Config() || cfg.S3Endpoint != nil {
		s3cfg := S3Config{UsePathStyle: cfg.S3URLStyle != "vhost"}
		if cfg.HasS3Config() {
			s3cfg.KeyID, s3cfg.Secret, s3cfg.Region = *cfg.S3KeyID, *cfg.S3Secret, *cfg.S3Region
		}
		if cfg.S3Endpoint != nil {
			s3cfg.Endpoint = *cfg.S3Endpoint
		}
		if cfg.S3Region != nil {
			s3cfg.Region = *cfg.S3Region
		}
		router.Register(NewS3(s3cfg), "s3", "s3a", "s3n")
		logger.Debug("storage backend registered", "backend", "s3", "endpoint", s3cfg.Endpoint)
	}

	if cfg.HasAzureConfig() {
		az, err := NewAzure(AzureConfig{
			AccountName: *cfg.AzureAccountName,
			AccountKey:  *cfg.AzureAccountKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("azure storage: %w", err)
		}
		router.Register(az, "abfss", "abfs", "az", "azure", "https")
		logger.Debug("storage backend registered", "backend", "azure", "account", *cfg.AzureAccountName)
	}

	if cfg.HasGCSConfig() {
		keyFile := ""
		if cfg.GCSKeyFilePath != nil {
			keyFile = *cfg.GCSKeyFilePath
		}
		gcs, err := NewGCS(ctx, keyFile)
		if err != nil {
			_ = router.Close()
			return nil, nil, fmt.Errorf("gcs storage: %w", err)
		}
		router.Register(gcs, "gs")
		logger.Debug("storage backend registered", "backend", "gcs")
	}

	var fio domain.FileIO = router
	if cfg.IORequestsPerSecond > 0 {
		fio = NewThrottled(router, cfg.IORequestsPerSecond, cfg.IOBurst)
		logger.Debug("storage throttling enabled", "rps", cfg.IORequestsPerSecond, "burst", cfg.IOBurst)
	}
	return fio, router.Close, nil
}
