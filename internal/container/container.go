// Package container provides dependency injection for the application.
// It centralizes the creation and wiring of all components, making the
// dependency graph explicit and testable.
package container

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fjacquet/mail-ledger/internal/analytics"
	"fjacquet/mail-ledger/internal/categorizer"
	"fjacquet/mail-ledger/internal/config"
	"fjacquet/mail-ledger/internal/dedup"
	"fjacquet/mail-ledger/internal/export"
	"fjacquet/mail-ledger/internal/extractor"
	"fjacquet/mail-ledger/internal/filter"
	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/normalizer"
	"fjacquet/mail-ledger/internal/oracle"
	"fjacquet/mail-ledger/internal/pipeline"
	"fjacquet/mail-ledger/internal/scorer"
	"fjacquet/mail-ledger/internal/source"
	"fjacquet/mail-ledger/internal/store"

	"github.com/shopspring/decimal"
)

// Container holds all application dependencies. Immutable after
// creation; components are reached through getters.
type Container struct {
	logger   logging.Logger
	config   *config.Config
	registry store.Registry
	ledger   store.Ledger
	oracle   *oracle.GeminiOracle

	normalizer  *normalizer.Normalizer
	filter      *filter.Filter
	extractor   *extractor.Extractor
	scorer      *scorer.Scorer
	dedup       *dedup.Deduplicator
	categorizer *categorizer.Categorizer
	aggregator  *analytics.Aggregator
	exporter    *export.Exporter
}

// NewContainer wires all application dependencies from configuration.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	registry := store.NewRegistryStore(
		filepath.Join(cfg.Data.Directory, "categories.yaml"),
		filepath.Join(cfg.Data.Directory, "merchants.yaml"),
		filepath.Join(cfg.Data.Directory, "financial-domains.yaml"),
	)

	ledger, err := store.NewSQLiteLedger(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	var orc *oracle.GeminiOracle
	if cfg.Oracle.Enabled && cfg.Oracle.APIKey != "" {
		orc, err = oracle.NewGemini(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model, logger)
		if err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("creating oracle client: %w", err)
		}
		logger.Info("oracle extraction enabled",
			logging.Field{Key: logging.FieldOracle, Value: cfg.Oracle.Model})
	} else {
		logger.Info("oracle extraction disabled, running rule-only")
	}

	epsilon, err := decimal.NewFromString(cfg.Dedup.AmountEpsilon)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("invalid dedup.amount_epsilon: %w", err)
	}

	domains, err := registry.LoadFinancialDomains()
	if err != nil {
		logger.WithError(err).Warn("failed to load financial domains")
	}

	var extOracle oracle.Oracle
	if orc != nil {
		extOracle = orc
	}

	c := &Container{
		logger:     logger,
		config:     cfg,
		registry:   registry,
		ledger:     ledger,
		oracle:     orc,
		normalizer: normalizer.New(logger),
		filter:     filter.New(domains, logger),
		extractor: extractor.New(extOracle, extractor.Options{
			OracleTimeout: cfg.OracleTimeout(),
			MaxRetries:    cfg.Oracle.MaxRetries,
			AmountEpsilon: epsilon,
		}, logger),
		scorer: scorer.New(domains, scorer.Options{
			Threshold:      cfg.Pipeline.ConfidenceThreshold,
			DegradePenalty: cfg.Oracle.DegradePenalty,
			AmountEpsilon:  epsilon,
		}, logger),
		dedup: dedup.New(ledger, dedup.Options{
			Window:        time.Duration(cfg.Dedup.WindowDays) * 24 * time.Hour,
			DateTolerance: time.Duration(cfg.Dedup.DateToleranceDays) * 24 * time.Hour,
			AmountEpsilon: epsilon,
			ConflictBand:  decimal.NewFromFloat(cfg.Dedup.ConflictBand),
		}, logger),
		categorizer: categorizer.New(registry, ledger, categorizer.Options{
			AutoLearn:     cfg.Categorization.AutoLearn,
			AmountEpsilon: epsilon,
		}, logger),
		aggregator: analytics.NewAggregator(ledger, logger),
		exporter: export.New(ledger, export.Options{
			Delimiter:      []rune(cfg.Export.Delimiter)[0],
			IncludeHeaders: cfg.Export.IncludeHeaders,
			Statuses:       []models.Status{models.StatusAccepted},
		}, logger),
	}
	return c, nil
}

// Pipeline builds a pipeline over the given email source.
func (c *Container) Pipeline(src source.EmailSource) *pipeline.Pipeline {
	return pipeline.New(
		src,
		c.normalizer,
		c.filter,
		c.extractor,
		c.scorer,
		c.dedup,
		c.categorizer,
		c.ledger,
		pipeline.Options{Workers: c.config.Pipeline.Workers},
		c.logger,
	)
}

// Logger returns the configured logger.
func (c *Container) Logger() logging.Logger { return c.logger }

// Config returns the application configuration.
func (c *Container) Config() *config.Config { return c.config }

// Ledger returns the transaction store.
func (c *Container) Ledger() store.Ledger { return c.ledger }

// Registry returns the YAML-backed lookup registry.
func (c *Container) Registry() store.Registry { return c.registry }

// Aggregator returns the analytics aggregator.
func (c *Container) Aggregator() *analytics.Aggregator { return c.aggregator }

// Exporter returns the CSV exporter. It emits accepted records only;
// use ExporterFor to select other statuses.
func (c *Container) Exporter() *export.Exporter { return c.exporter }

// ExporterFor builds an exporter over the given record statuses with
// the configured CSV shape.
func (c *Container) ExporterFor(statuses []models.Status) *export.Exporter {
	return export.New(c.ledger, export.Options{
		Delimiter:      []rune(c.config.Export.Delimiter)[0],
		IncludeHeaders: c.config.Export.IncludeHeaders,
		Statuses:       statuses,
	}, c.logger)
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.oracle != nil {
		if err := c.oracle.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close oracle client")
		}
	}
	return c.ledger.Close()
}
