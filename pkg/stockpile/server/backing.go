package server

import (
	"context"
	"fmt"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/bolt"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/file"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/memory"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/postgres"
	s3backing "github.com/mikepea/stockpile/pkg/stockpile/backing/s3"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/sqlite"
	"github.com/mikepea/stockpile/pkg/stockpile/config"
)

// OpenBacking constructs the snapshot backing selected by cfg.Driver.
func OpenBacking(ctx context.Context, cfg config.StorageConfig) (backing.Backing, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverFile, "":
		return file.New(cfg.DataDir)
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverBolt:
		return bolt.Open(cfg.BoltPath)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case config.DriverS3:
		return s3backing.New(ctx, s3backing.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
