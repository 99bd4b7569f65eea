package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides (CHARTSIGNAL_PORT, ...).
const EnvPrefix = "chartsignal"

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Version     string `yaml:"version" default:"dev"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		BodyLimit       string        `yaml:"body_limit" default:"12M"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		RateLimit       struct {
			Enabled           bool          `yaml:"enabled" default:"true"`
			RequestsPerMinute int           `yaml:"requests_per_minute" default:"30"`
			Burst             int           `yaml:"burst" default:"5"`
			IdleTTL           time.Duration `yaml:"idle_ttl" default:"10m"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pipeline struct {
		// Workers bounds concurrent CV stages; 0 means runtime.NumCPU().
		Workers       int           `yaml:"workers"`
		Timeout       time.Duration `yaml:"timeout" default:"15s"`
		MaxImageBytes int64         `yaml:"max_image_bytes" default:"10485760"`
		MaxPixels     int           `yaml:"max_pixels" default:"16000000"`
		UploadDir     string        `yaml:"upload_dir" default:"data/uploads"`
		SaveUploads   bool          `yaml:"save_uploads"`
	} `yaml:"pipeline"`
	Validator struct {
		CannyLow       float64 `yaml:"canny_low" default:"50"`
		CannyHigh      float64 `yaml:"canny_high" default:"150"`
		HoughThreshold int     `yaml:"hough_threshold" default:"50"`
		MinLineLength  int     `yaml:"min_line_length" default:"30"`
		MaxLineGap     int     `yaml:"max_line_gap" default:"10"`
		AngleTolerance float64 `yaml:"angle_tolerance" default:"10"`
		MinHorizontal  int     `yaml:"min_horizontal" default:"2"`
		MinVertical    int     `yaml:"min_vertical" default:"2"`
		Seed           int64   `yaml:"seed" default:"1"`
	} `yaml:"validator"`
	Detector struct {
		BinaryThreshold int     `yaml:"binary_threshold" default:"127"`
		MinArea         float64 `yaml:"min_area" default:"50"`
		MaxArea         float64 `yaml:"max_area" default:"500"`
		MinAspect       float64 `yaml:"min_aspect" default:"1.5"`
		ColorMinChannel int     `yaml:"color_min_channel" default:"100"`
		MinCandles      int     `yaml:"min_candles" default:"10"`
	} `yaml:"detector"`
	Signal struct {
		ClampConfidence bool `yaml:"clamp_confidence"`
	} `yaml:"signal"`
	Targets struct {
		ReferencePrice float64 `yaml:"reference_price" default:"100"`
	} `yaml:"targets"`
	Inference struct {
		BaseURL    string        `yaml:"base_url"`
		Model      string        `yaml:"model"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
		Retries    int           `yaml:"retries" default:"2"`
		Fallback   bool          `yaml:"fallback" default:"true"`
		TensorSize int           `yaml:"tensor_size" default:"64"`
	} `yaml:"inference"`
	Storage struct {
		Driver     string `yaml:"driver" default:"sqlite"`
		SQLitePath string `yaml:"sqlite_path" default:"data/chartsignal.db"`
	} `yaml:"storage"`
	AnalyticsSink struct {
		Enabled    bool `yaml:"enabled"`
		ClickHouse struct {
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"chartsignal"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"analytics_sink"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Predictions string `yaml:"predictions" default:"chartsignal.predictions"`
			Feedback    string `yaml:"feedback" default:"chartsignal.feedback"`
			Requests    string `yaml:"requests" default:"chartsignal.requests"`
			Results     string `yaml:"results" default:"chartsignal.results"`
			Logs        string `yaml:"logs" default:"chartsignal.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"chartsignal-analyzer"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"chartsignal.requests.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"20971520"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend    string        `yaml:"backend" default:"memory"`
		TTL        time.Duration `yaml:"ttl" default:"10m"`
		MemorySize int           `yaml:"memory_size" default:"1024"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"chartsignal:result:"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Scheduler struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		DailyReset      string        `yaml:"daily_reset" default:"0 0 0 * * *"`
		UploadCleanup   string        `yaml:"upload_cleanup" default:"0 0 * * * *"`
		LimiterSweep    string        `yaml:"limiter_sweep" default:"0 */5 * * * *"`
		UploadRetention time.Duration `yaml:"upload_retention" default:"168h"`
	} `yaml:"scheduler"`
	Defaults struct {
		Timeframe   string   `yaml:"timeframe" default:"5m"`
		Indicators  []string `yaml:"indicators" default:"[\"RSI\",\"MACD\"]"`
		Sensitivity string   `yaml:"sensitivity" default:"medium"`
		Language    string   `yaml:"language" default:"ru"`
	} `yaml:"defaults"`
}

// EnvOverrides are the settings that may come from the environment.
type EnvOverrides struct {
	Environment  string   `envconfig:"ENVIRONMENT"`
	Port         int      `envconfig:"PORT"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	RedisAddr    string   `envconfig:"REDIS_ADDR"`
	SQLitePath   string   `envconfig:"SQLITE_PATH"`
	InferenceURL string   `envconfig:"INFERENCE_URL"`
	InferenceKey string   `envconfig:"INFERENCE_API_KEY"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	ModelPath    string   `envconfig:"MODEL_PATH"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, overlays the YAML document and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file next to the working directory is honored when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	var env EnvOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.ApplyEnv(env)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv copies non-empty overrides into c.
func (c *Config) ApplyEnv(env EnvOverrides) {
	if env.Environment != "" {
		c.Environment = env.Environment
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.RedisAddr != "" {
		c.Cache.Redis.Addr = env.RedisAddr
	}
	if env.SQLitePath != "" {
		c.Storage.SQLitePath = env.SQLitePath
	}
	if env.InferenceURL != "" {
		c.Inference.BaseURL = env.InferenceURL
	}
	if env.InferenceKey != "" {
		c.Inference.APIKey = env.InferenceKey
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.ModelPath != "" {
		c.Inference.Model = env.ModelPath
	}
}

var (
	timeframes    = map[string]bool{"1m": true, "5m": true, "15m": true, "30m": true, "1h": true, "4h": true, "1d": true}
	sensitivities = map[string]bool{"low": true, "medium": true, "high": true}
	cacheBackends = map[string]bool{"none": true, "memory": true, "redis": true, "layered": true}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}
	if c.Pipeline.MaxPixels <= 0 {
		return fmt.Errorf("pipeline.max_pixels must be positive")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers cannot be negative")
	}
	if c.Pipeline.SaveUploads && c.Pipeline.UploadDir == "" {
		return fmt.Errorf("pipeline.upload_dir is required when save_uploads is set")
	}
	if c.Validator.CannyLow > c.Validator.CannyHigh {
		return fmt.Errorf("validator.canny_low must not exceed canny_high")
	}
	if c.Detector.MinArea > c.Detector.MaxArea {
		return fmt.Errorf("detector.min_area must not exceed max_area")
	}
	if c.Detector.BinaryThreshold < 0 || c.Detector.BinaryThreshold > 255 {
		return fmt.Errorf("detector.binary_threshold must be in 0..255")
	}
	if c.Detector.ColorMinChannel < 0 || c.Detector.ColorMinChannel > 255 {
		return fmt.Errorf("detector.color_min_channel must be in 0..255")
	}
	if c.Detector.MinCandles < 1 {
		return fmt.Errorf("detector.min_candles must be at least 1")
	}
	if c.Storage.Driver != "sqlite" {
		return fmt.Errorf("storage.driver must be 'sqlite', got '%s'", c.Storage.Driver)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required")
	}
	if !cacheBackends[c.Cache.Backend] {
		return fmt.Errorf("cache.backend must be one of none, memory, redis, layered; got '%s'", c.Cache.Backend)
	}
	if (c.Cache.Backend == "redis" || c.Cache.Backend == "layered") && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for backend '%s'", c.Cache.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.AnalyticsSink.Enabled && c.AnalyticsSink.ClickHouse.Host == "" {
		return fmt.Errorf("analytics_sink.clickhouse.host is required")
	}
	if c.Scheduler.Enabled && (c.Scheduler.DailyReset == "" || c.Scheduler.UploadCleanup == "") {
		return fmt.Errorf("scheduler cron expressions are required when the scheduler is enabled")
	}
	if !timeframes[c.Defaults.Timeframe] {
		return fmt.Errorf("defaults.timeframe '%s' is not supported", c.Defaults.Timeframe)
	}
	if !sensitivities[c.Defaults.Sensitivity] {
		return fmt.Errorf("defaults.sensitivity must be low, medium or high")
	}
	return nil
}
