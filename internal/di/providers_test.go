package di

import (
	"context"
	"path/filepath"
	"testing"

	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/services/inference"
	"ChartSignal/internal/services/vision/visiontest"
	"ChartSignal/internal/usecase"
	"ChartSignal/pkg/cache"
	"ChartSignal/pkg/config"
	applogger "ChartSignal/pkg/logger"
)

func TestProvideBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.BaseURL = ""

	b := ProvideBackends(cfg, applogger.Nop())
	if b.Pattern != nil {
		t.Errorf("pattern backend without base url")
	}
	if _, ok := b.Ensemble.(*inference.FallbackClassifier); !ok {
		t.Errorf("ensemble = %T, want rule fallback", b.Ensemble)
	}

	cfg.Inference.Fallback = false
	if b := ProvideBackends(cfg, applogger.Nop()); b.Ensemble != nil || b.Pattern != nil {
		t.Errorf("expected no backends, got %+v", b)
	}

	cfg.Inference.BaseURL = "http://models:8000"
	b = ProvideBackends(cfg, applogger.Nop())
	if b.Pattern == nil || b.Ensemble == nil {
		t.Errorf("expected http backends, got %+v", b)
	}
}

func TestProvideCacheService(t *testing.T) {
	cfg := config.Default()

	cfg.Cache.Backend = cache.BackendNone
	if svc, err := ProvideCacheService(cfg); err != nil || svc != nil {
		t.Errorf("none backend = %v, %v", svc, err)
	}
	if rc := ProvideResultCache(nil, cfg, nil); rc != nil {
		t.Errorf("result cache without service = %v", rc)
	}

	cfg.Cache.Backend = cache.BackendMemory
	svc, err := ProvideCacheService(cfg)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	defer svc.Close()
	if _, ok := svc.(*cache.MemoryCache); !ok {
		t.Errorf("memory backend = %T", svc)
	}

	cfg.Cache.Backend = "memcached"
	if _, err := ProvideCacheService(cfg); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestDisabledComponentsAreNil(t *testing.T) {
	cfg := config.Default()
	cfg.Kafka.Enabled = false
	cfg.AnalyticsSink.Enabled = false
	cfg.Pipeline.SaveUploads = false
	cfg.Server.RateLimit.Enabled = false
	l := applogger.Nop()

	if p, err := ProvideKafkaProducer(cfg, l); p != nil || err != nil {
		t.Errorf("producer = %v, %v", p, err)
	}
	if c, err := ProvideKafkaConsumer(cfg, l); c != nil || err != nil {
		t.Errorf("consumer = %v, %v", c, err)
	}
	if c, err := ProvideClickHouseClient(cfg); c != nil || err != nil {
		t.Errorf("clickhouse = %v, %v", c, err)
	}
	if s, err := ProvideAnalyticsSink(nil, l); s != nil || err != nil {
		t.Errorf("sink = %v, %v", s, err)
	}
	if u, err := ProvideUploadStore(cfg, l); u != nil || err != nil {
		t.Errorf("uploads = %v, %v", u, err)
	}
	if rl := ProvideRateLimiter(cfg); rl != nil {
		t.Errorf("limiter = %v", rl)
	}
	if _, ok := ProvideEventPublisher(nil, cfg).(interface{ Close() error }); !ok {
		t.Error("publisher must be usable when kafka is off")
	}
}

func TestConfiguredServiceAnalyzes(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "di.db")
	cfg.Cache.Backend = cache.BackendMemory
	cfg.Defaults.Language = "en"
	l := applogger.Nop()

	client, err := ProvideSQLiteClient(cfg)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	store, err := ProvidePredictionStore(client, l)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	svcCache, err := ProvideCacheService(cfg)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer svcCache.Close()

	m := ProvideMetrics()
	analyzer := ProvideChartAnalyzer(cfg, ProvideStages(cfg), ProvideBackends(cfg, l), ProvideWorkerPool(cfg), m, l)
	svc := ProvideAnalysisService(cfg, analyzer, store, ProvideEventPublisher(nil, cfg), nil,
		ProvideResultCache(svcCache, cfg, l), nil, ProvideFeedHub(l), m, l)

	p, err := svc.Analyze(context.Background(), usecase.AnalyzeInput{UserID: "u1", Image: visiontest.DefaultChartPNG()})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.Result.CandleCount != 15 || p.Result.Source == models.SourceNeutral {
		t.Errorf("unexpected result %+v", p.Result)
	}
}
