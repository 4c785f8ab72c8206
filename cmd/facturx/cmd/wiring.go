package cmd

import (
	"context"
	"fmt"

	"github.com/rezonia/facturx-engine/internal/config"
	"github.com/rezonia/facturx-engine/internal/facturx"
	"github.com/rezonia/facturx-engine/internal/logger"
	"github.com/rezonia/facturx-engine/internal/processor"
	"github.com/rezonia/facturx-engine/internal/render"
	"github.com/rezonia/facturx-engine/internal/schema"
	"github.com/rezonia/facturx-engine/internal/storage"
)

func newSchemaValidator(cfg *config.Config, log *logger.Logger) schema.Validator {
	if cfg.Schema.XSDPath == "" {
		log.Warn().Msg("XSD_PATH not set, schema check disabled")
		return schema.Unavailable()
	}

	var opts []schema.XMLLintOption
	if cfg.Schema.XMLLintPath != "" {
		opts = append(opts, schema.WithXMLLintPath(cfg.Schema.XMLLintPath))
	}
	v := schema.NewXMLLintValidator(cfg.Schema.XSDPath, opts...)
	if !v.IsAvailable() {
		log.Warn().Msg("xmllint not found, schema check disabled")
	}
	return v
}

// newStore opens the configured backend. The returned func releases it.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCSCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		store := storage.NewGCSStore(client, cfg.Storage.GCSBucket, cfg.Storage.GCSPrefix)
		return store, func() { _ = client.Close() }, nil
	default:
		return storage.NewOSStore(cfg.Storage.Dir), func() {}, nil
	}
}

// newPipeline assembles the generation pipeline from configuration.
// store may be nil.
func newPipeline(cfg *config.Config, store storage.Store, log *logger.Logger) *processor.Pipeline {
	validator := newSchemaValidator(cfg, log)

	var packOpts []facturx.Option
	if cfg.Schema.PackagerCheck {
		packOpts = append(packOpts, facturx.WithSchemaCheck(validator))
	}

	opts := []processor.Option{
		processor.WithRenderer(render.NewMarotoRenderer()),
		processor.WithPackager(facturx.NewPDFCPUPackager(packOpts...)),
		processor.WithSchemaValidator(validator),
		processor.WithLogger(log),
	}
	if store != nil {
		opts = append(opts, processor.WithStore(store))
	}
	return processor.NewPipeline(opts...)
}
