package di

import (
	"context"
	"fmt"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	"ChartSignal/internal/handler/api"
	mid "ChartSignal/internal/middleware"
	internalrepo "ChartSignal/internal/repository"
	"ChartSignal/internal/service/feed"
	"ChartSignal/internal/service/ratelimit"
	"ChartSignal/internal/service/scheduler"
	"ChartSignal/internal/services/features"
	"ChartSignal/internal/services/inference"
	"ChartSignal/internal/services/report"
	"ChartSignal/internal/services/signal"
	"ChartSignal/internal/services/targets"
	"ChartSignal/internal/services/vision"
	"ChartSignal/internal/usecase"
	"ChartSignal/pkg/cache"
	pkgch "ChartSignal/pkg/clickhouse"
	"ChartSignal/pkg/config"
	xhttp "ChartSignal/pkg/http"
	pkgkafka "ChartSignal/pkg/kafka"
	applogger "ChartSignal/pkg/logger"
	"ChartSignal/pkg/metrics"
	"ChartSignal/pkg/server"
	pkgsqlite "ChartSignal/pkg/sqlite"

	"github.com/labstack/echo/v4"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideSQLiteClient opens the prediction database.
func ProvideSQLiteClient(cfg *config.Config) (*pkgsqlite.Client, error) {
	client, err := pkgsqlite.Open(cfg.Storage.SQLitePath,
		pkgsqlite.WithBusyTimeout(5*time.Second),
		pkgsqlite.WithWAL(true),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}
	return client, nil
}

// ProvidePredictionStore migrates the schema and returns the store.
func ProvidePredictionStore(client *pkgsqlite.Client, l *applogger.Logger) (*internalrepo.SQLitePredictionStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := internalrepo.NewSQLitePredictionStore(ctx, client, l)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("prediction store: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer. It is nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		Linger:       cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	// Repeated errors are folded and shipped to the logs topic.
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.Topics.Logs,
		Publisher:      producer,
	})
	return producer, nil
}

// ProvideEventPublisher publishes domain events to Kafka, or drops them when Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, internalrepo.EventTopics{
		Predictions: cfg.Kafka.Topics.Predictions,
		Feedback:    cfg.Kafka.Topics.Feedback,
		Results:     cfg.Kafka.Topics.Results,
	})
}

// ProvideKafkaConsumer creates the async analysis consumer. It is nil unless enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cc.GroupID,
		Workers:    cc.Workers,
		BufferSize: cc.BufferSize,
		RetryMax:   cc.RetryMax,
		BackoffMin: cc.BackoffMin,
		BackoffMax: cc.BackoffMax,
		DLQTopic:   cc.DLQTopic,
		MinBytes:   cc.MinBytes,
		MaxBytes:   cc.MaxBytes,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.RequestIDHook())
	return consumer, nil
}

// ProvideKafkaAnalysisHandler handles jobs from the requests topic.
func ProvideKafkaAnalysisHandler(
	cfg *config.Config,
	svc *usecase.AnalysisService,
	pub domrepo.EventPublisher,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.KafkaAnalysisHandler {
	return usecase.NewKafkaAnalysisHandler(cfg.Kafka.Topics.Requests, svc, pub, m, l)
}

// ProvideClickHouseClient connects to ClickHouse. It is nil when the analytics sink is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.AnalyticsSink.Enabled {
		return nil, nil
	}
	ch := cfg.AnalyticsSink.ClickHouse
	client, err := pkgch.NewClient(pkgch.Options{
		Host:         ch.Host,
		Port:         ch.Port,
		Database:     ch.Database,
		User:         ch.User,
		Password:     ch.Password,
		HTTP:         ch.UseHTTP,
		AsyncInsert:  ch.AsyncInsert,
		WaitForAsync: ch.WaitForAsync,
		DialTimeout:  ch.DialTimeout,
		ReadTimeout:  ch.ReadTimeout,
		MaxExecution: ch.MaxExecutionTime,
		MaxOpenConns: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAnalyticsSink creates the ClickHouse log tables. It is nil without a client.
func ProvideAnalyticsSink(client *pkgch.Client, l *applogger.Logger) (domrepo.AnalyticsSink, error) {
	if client == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink, err := internalrepo.NewClickHouseSink(ctx, client, l)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return sink, nil
}

// ProvideCacheService builds the configured cache backend. It is nil for "none".
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	redis := func() (*cache.RedisCache, error) {
		return cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	}

	switch cfg.Cache.Backend {
	case cache.BackendNone, "":
		return nil, nil
	case cache.BackendMemory:
		return cache.NewMemoryCache(cfg.Cache.MemorySize, cfg.Cache.TTL), nil
	case cache.BackendRedis:
		rc, err := redis()
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	case cache.BackendLayered:
		rc, err := redis()
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache.NewLayeredCache(rc, cfg.Cache.MemorySize, time.Minute), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// ProvideResultCache adapts the cache service to analysis results.
func ProvideResultCache(svc cache.Service, cfg *config.Config, l *applogger.Logger) domrepo.ResultCache {
	if svc == nil {
		return nil
	}
	return internalrepo.NewCachedResults(svc, cfg.Cache.TTL, l)
}

// ProvideUploadStore keeps raw uploads on disk. It is nil unless save_uploads is set.
func ProvideUploadStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.FileUploadStore, error) {
	if !cfg.Pipeline.SaveUploads {
		return nil, nil
	}
	s, err := internalrepo.NewFileUploadStore(cfg.Pipeline.UploadDir, l)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}
	return s, nil
}

// ProvideFeedHub creates the websocket prediction feed.
func ProvideFeedHub(l *applogger.Logger) *feed.Hub {
	return feed.NewHub(l)
}

// ProvideRateLimiter creates the analyze limiter. It is nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := cfg.Server.RateLimit
	if !rl.Enabled {
		return nil
	}
	return ratelimit.New(rl.RequestsPerMinute, rl.Burst, ratelimit.WithIdleTTL(rl.IdleTTL))
}

// ProvideBackends builds the model server clients. Without a base URL the
// pattern backend is absent and the ensemble is the local rule set when
// fallback is enabled.
func ProvideBackends(cfg *config.Config, l *applogger.Logger) usecase.Backends {
	var b usecase.Backends
	if cfg.Inference.BaseURL != "" {
		b.Pattern = inference.NewHTTPPatternRecognizer(cfg)
		if cfg.Inference.Fallback {
			b.Ensemble = inference.WithFallback(inference.NewHTTPEnsembleClassifier(cfg), l)
		} else {
			b.Ensemble = inference.NewHTTPEnsembleClassifier(cfg)
		}
		return b
	}
	if cfg.Inference.Fallback {
		b.Ensemble = inference.WithFallback(nil, l)
	}
	return b
}

// ProvideStages builds the pipeline stages from config.
func ProvideStages(cfg *config.Config) usecase.Stages {
	hough := vision.DefaultHoughConfig()
	hough.Threshold = cfg.Validator.HoughThreshold
	hough.MinLineLength = cfg.Validator.MinLineLength
	hough.MaxLineGap = cfg.Validator.MaxLineGap
	hough.Seed = cfg.Validator.Seed
	pre := vision.DefaultPreprocessConfig()
	pre.MaxPixels = cfg.Pipeline.MaxPixels

	return usecase.Stages{
		Preprocessor: vision.NewPreprocessor(pre),
		Validator: vision.NewChartValidator(vision.ValidatorConfig{
			CannyLow:       cfg.Validator.CannyLow,
			CannyHigh:      cfg.Validator.CannyHigh,
			Hough:          hough,
			AngleTolerance: cfg.Validator.AngleTolerance,
			MinHorizontal:  cfg.Validator.MinHorizontal,
			MinVertical:    cfg.Validator.MinVertical,
		}),
		Detector: vision.NewCandleDetector(vision.DetectorConfig{
			BinaryThreshold: uint8(cfg.Detector.BinaryThreshold),
			MinArea:         cfg.Detector.MinArea,
			MaxArea:         cfg.Detector.MaxArea,
			MinAspect:       cfg.Detector.MinAspect,
			Colors:          vision.ColorThresholds{MinChannel: uint8(cfg.Detector.ColorMinChannel)},
		}),
		Extractor:  features.NewExtractor(),
		Combiner:   signal.NewCombiner(signal.WithClampConfidence(cfg.Signal.ClampConfidence)),
		Calculator: targets.NewCalculator(targets.WithReferencePrice(cfg.Targets.ReferencePrice)),
	}
}

// ProvideWorkerPool bounds concurrent CV work.
func ProvideWorkerPool(cfg *config.Config) *usecase.WorkerPool {
	return usecase.NewWorkerPool(cfg.Pipeline.Workers)
}

// ProvideChartAnalyzer creates the image pipeline.
func ProvideChartAnalyzer(
	cfg *config.Config,
	stages usecase.Stages,
	backends usecase.Backends,
	pool *usecase.WorkerPool,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.ChartAnalyzer {
	return usecase.NewChartAnalyzer(stages, backends, pool, l,
		usecase.WithTimeout(cfg.Pipeline.Timeout),
		usecase.WithMinCandles(cfg.Detector.MinCandles),
		usecase.WithTensorSize(cfg.Inference.TensorSize),
		usecase.WithMetrics(m),
	)
}

// ProvideAnalysisService creates the prediction use case. Optional collaborators
// are passed as nil interfaces when their backing component is disabled.
func ProvideAnalysisService(
	cfg *config.Config,
	analyzer *usecase.ChartAnalyzer,
	store *internalrepo.SQLitePredictionStore,
	pub domrepo.EventPublisher,
	sink domrepo.AnalyticsSink,
	results domrepo.ResultCache,
	uploads *internalrepo.FileUploadStore,
	hub *feed.Hub,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.AnalysisService {
	deps := usecase.AnalysisDeps{
		Analyzer:  analyzer,
		Store:     store,
		Formatter: report.NewFormatter(cfg.Defaults.Language),
		Publisher: pub,
		Sink:      sink,
		Cache:     results,
		Feed:      hub,
		Metrics:   m,
		Logger:    l,
	}
	if uploads != nil {
		deps.Uploads = uploads
	}
	return usecase.NewAnalysisService(deps, usecase.Defaults{
		Timeframe:   cfg.Defaults.Timeframe,
		Indicators:  cfg.Defaults.Indicators,
		Sensitivity: models.Sensitivity(cfg.Defaults.Sensitivity),
		Language:    cfg.Defaults.Language,
	}, cfg.Pipeline.MaxImageBytes)
}

// ProvideScheduler registers the maintenance jobs.
func ProvideScheduler(
	cfg *config.Config,
	store *internalrepo.SQLitePredictionStore,
	uploads *internalrepo.FileUploadStore,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	var (
		pruner  scheduler.UploadPruner
		sweeper scheduler.Sweeper
	)
	if uploads != nil {
		pruner = uploads
	}
	if limiter != nil {
		sweeper = limiter
	}
	s := scheduler.New(l)
	err := s.RegisterAll(scheduler.Specs{
		DailyReset:      cfg.Scheduler.DailyReset,
		UploadCleanup:   cfg.Scheduler.UploadCleanup,
		LimiterSweep:    cfg.Scheduler.LimiterSweep,
		UploadRetention: cfg.Scheduler.UploadRetention,
	}, store, pruner, sweeper)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideHandlers builds the HTTP route groups.
func ProvideHandlers(
	cfg *config.Config,
	svc *usecase.AnalysisService,
	hub *feed.Hub,
	limiter *ratelimit.Limiter,
	chClient *pkgch.Client,
	m *metrics.Recorder,
	l *applogger.Logger,
) []xhttp.Handler {
	var analyzeMW []echo.MiddlewareFunc
	if limiter != nil {
		analyzeMW = append(analyzeMW, mid.RateLimit(limiter, mid.WithRateLimitMetrics(m)))
	}
	checks := map[string]api.HealthChecker{"store": svc.Health}
	if chClient != nil {
		checks["clickhouse"] = chClient.Health
	}
	return []xhttp.Handler{
		api.NewChartHandler(l, svc, cfg.Pipeline.MaxImageBytes, analyzeMW...),
		api.NewSystemHandler(cfg.Version, cfg.Environment, checks, hub),
	}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application lifecycle. Closers run in order on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAnalysisHandler,
	sched *scheduler.Scheduler,
	hub *feed.Hub,
	pub domrepo.EventPublisher,
	results cache.Service,
	chClient *pkgch.Client,
	store *internalrepo.SQLitePredictionStore,
) *server.App {
	opts := []server.Option{
		server.WithCloser("feed", hub),
		server.WithCloser("events", pub),
	}
	if consumer != nil {
		consumer.RegisterHandler(kh)
		opts = append(opts, server.WithConsumer(consumer, kh.Topic()))
	}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if results != nil {
		opts = append(opts, server.WithCloser("cache", results))
	}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	opts = append(opts, server.WithCloser("sqlite", store))
	return server.New(cfg, l, httpServer, opts...)
}
