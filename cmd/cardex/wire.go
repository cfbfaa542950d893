package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/config"
	"github.com/kailas-cloud/cardex/internal/db"
	dbredis "github.com/kailas-cloud/cardex/internal/db/redis"
	logpkg "github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
	"github.com/kailas-cloud/cardex/internal/repository/batchsource"
	cardrepo "github.com/kailas-cloud/cardex/internal/repository/card"
	"github.com/kailas-cloud/cardex/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/cardex/internal/transport/openai"
	"github.com/kailas-cloud/cardex/internal/transport/vision"
	enrichuc "github.com/kailas-cloud/cardex/internal/usecase/enrich"
	healthuc "github.com/kailas-cloud/cardex/internal/usecase/health"
	"github.com/kailas-cloud/cardex/internal/usecase/inference"
	intakeuc "github.com/kailas-cloud/cardex/internal/usecase/intake"
	searchuc "github.com/kailas-cloud/cardex/internal/usecase/search"
	"github.com/kailas-cloud/cardex/internal/version"
)

// app holds the wired components shared by all subcommands.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  *dbredis.Store
	cards  *cardrepo.Repo

	vision    *vision.Client
	embedder  *openaiTransport.Embedder
	captioner *openaiTransport.Captioner

	images   *inference.ImageEmbedder
	texts    *inference.TextEmbedder
	captions *inference.Captioner
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFile(opts.configPath) //nolint:wrapcheck // already descriptive
	}
	return config.Load(opts.env) //nolint:wrapcheck // already descriptive
}

// bootstrap loads configuration, connects to the record store and builds the gateways.
func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(logpkg.Options{
		Env:    opts.env,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting cardex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", opts.env),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Strings("store_addrs", cfg.Store.Addrs),
	)

	// Register domain metrics explicitly (no init())
	metrics.RegisterDomainMetrics()

	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:       cfg.Store.Addrs,
		Username:    cfg.Store.Username,
		Password:    cfg.Store.Password,
		DB:          cfg.Store.DB,
		DialTimeout: time.Duration(cfg.Store.DialTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to record store")

	algo := db.VectorFlat
	if cfg.Store.VectorAlgorithm == "hnsw" {
		algo = db.VectorHNSW
	}
	cards := cardrepo.New(store, cfg.Store.Database, cfg.Store.Container).
		WithDimensions(cfg.Store.ImageDimensions, cfg.Store.CaptionDimensions).
		WithAlgorithm(algo)
	if err := cards.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	logger.Info("Search index ready", zap.String("index", cards.IndexName()))

	a := &app{env: opts.env, cfg: cfg, logger: logger, store: store, cards: cards}
	a.buildGateways()
	return a, nil
}

func (a *app) buildGateways() {
	cfg := a.cfg
	timeout := cfg.Gateway.Timeout()

	a.vision = vision.New(&vision.Config{
		Endpoint:     cfg.Vision.Endpoint,
		Key:          cfg.Vision.Key,
		APIVersion:   cfg.Vision.APIVersion,
		ModelVersion: cfg.Vision.ModelVersion,
		Timeout:      timeout,
		Logger:       a.logger,
	})
	a.embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.Key,
		APIVersion: cfg.Embedding.APIVersion,
		Deployment: cfg.Embedding.Deployment,
		Timeout:    timeout,
		Logger:     a.logger,
	})
	a.captioner = openaiTransport.NewCaptioner(&openaiTransport.CaptionConfig{
		Config: openaiTransport.Config{
			Endpoint:   cfg.Caption.Endpoint,
			APIKey:     cfg.Caption.Key,
			APIVersion: cfg.Caption.APIVersion,
			Deployment: cfg.Caption.Deployment,
			Timeout:    timeout,
			Logger:     a.logger,
		},
		Temperature: cfg.Caption.Temperature,
		MaxTokens:   cfg.Caption.MaxTokens,
	})

	if !a.vision.Configured() {
		a.logger.Warn("Image embedding gateway not configured, image vectors and image search are disabled")
	}

	// One limiter shared by every gateway call
	throttle := inference.NewThrottle(cfg.Gateway.RequestsPerSec, cfg.Gateway.Burst, a.logger)
	a.images = inference.NewImageEmbedder(a.vision, throttle)
	a.texts = inference.NewTextEmbedder(a.embedder, throttle)
	a.captions = inference.NewCaptioner(a.captioner, throttle)
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func (a *app) enrichService() *enrichuc.Service {
	return enrichuc.New(a.cards, a.images, a.texts, a.captions, a.logger).
		WithConcurrency(a.cfg.Enrichment.Concurrency)
}

// searchService builds the retrieval service. Text query vectors go through the
// store-backed cache when search.query_cache_ttl_sec is set.
func (a *app) searchService() *searchuc.Service {
	var texts searchuc.TextEmbedder = a.texts
	if ttl := a.cfg.Search.QueryCacheTTL(); ttl > 0 {
		texts = embcache.New(a.texts, a.store, metrics.QueryCacheTotal, ttl, a.logger).
			WithCallTimeout(a.cfg.Gateway.Timeout())
	}
	return searchuc.New(a.cards, a.images, texts).
		WithImageCutoff(a.cfg.Search.ImageCutoff).
		WithLimits(a.cfg.Search.KeywordLimit, a.cfg.Search.FallbackK)
}

func (a *app) healthService() *healthuc.Service {
	return healthuc.New(a.cards).
		WithTimeout(time.Duration(a.cfg.HTTP.HealthProbeSec)*time.Second).
		WithChecker("vision", a.vision).
		WithChecker("embedding", a.embedder).
		WithChecker("caption", a.captioner)
}

// bucketIntake builds the intake service reading from the configured bucket.
func (a *app) bucketIntake() (*intakeuc.Service, error) {
	in := a.cfg.Intake
	if !in.Enabled() {
		return nil, fmt.Errorf("intake bucket is not configured (intake.endpoint, intake.bucket)")
	}
	src, err := batchsource.NewBucket(&batchsource.BucketConfig{
		Endpoint:  in.Endpoint,
		AccessKey: in.AccessKey,
		SecretKey: in.SecretKey,
		UseSSL:    in.UseSSL,
		Region:    in.Region,
		Bucket:    in.Bucket,
		Prefix:    in.Prefix,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	a.logger.Info("Batch intake configured", zap.Stringer("source", src))
	return intakeuc.New(src, a.enrichService(), a.logger), nil
}
