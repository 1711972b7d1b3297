package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Crawl       CrawlConfig       `yaml:"crawl" mapstructure:"crawl"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Embed       EmbedConfig       `yaml:"embed" mapstructure:"embed"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Questions   QuestionsConfig   `yaml:"questions" mapstructure:"questions"`
	Observation ObservationConfig `yaml:"observation" mapstructure:"observation"`
	Calibration CalibrationConfig `yaml:"calibration" mapstructure:"calibration"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures the crawl phase.
type CrawlConfig struct {
	MaxPages      int      `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth      int      `yaml:"max_depth" mapstructure:"max_depth"`
	Concurrency   int      `yaml:"concurrency" mapstructure:"concurrency"`
	CacheTTLHours int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	PriorityPaths []string `yaml:"priority_paths" mapstructure:"priority_paths"`
	RunDeadlineSecs int    `yaml:"run_deadline_secs" mapstructure:"run_deadline_secs"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	PerHostRPS      float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	PerHostBurst    int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
	MaxBodyBytes    int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	RobotsTTLSecs   int     `yaml:"robots_ttl_secs" mapstructure:"robots_ttl_secs"`
}

// EmbedConfig configures the embedding backend.
type EmbedConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "mock" or "remote"
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Key       string `yaml:"key" mapstructure:"key"`
	ModelID   string `yaml:"model_id" mapstructure:"model_id"`
	Dimensions int   `yaml:"dimensions" mapstructure:"dimensions"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetrievalConfig configures hybrid retrieval and chunking.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k" mapstructure:"top_k"`
	TopN          int     `yaml:"top_n" mapstructure:"top_n"`
	RRFK          int     `yaml:"rrf_k" mapstructure:"rrf_k"`
	VectorWeight  float64 `yaml:"vector_weight" mapstructure:"vector_weight"`
	BM25Weight    float64 `yaml:"bm25_weight" mapstructure:"bm25_weight"`
	BM25K1        float64 `yaml:"bm25_k1" mapstructure:"bm25_k1"`
	BM25B         float64 `yaml:"bm25_b" mapstructure:"bm25_b"`
	PerPageCap    int     `yaml:"per_page_cap" mapstructure:"per_page_cap"`
	ChunkMinTokens int    `yaml:"chunk_min_tokens" mapstructure:"chunk_min_tokens"`
	ChunkMaxTokens int    `yaml:"chunk_max_tokens" mapstructure:"chunk_max_tokens"`
	ChunkOverlap   int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// QuestionsConfig configures the question suite.
type QuestionsConfig struct {
	CustomFile  string `yaml:"custom_file" mapstructure:"custom_file"`
	MaxDerived  int    `yaml:"max_derived" mapstructure:"max_derived"`
	MaxCustom   int    `yaml:"max_custom" mapstructure:"max_custom"`
}

// ObservationConfig configures the optional observation arm.
type ObservationConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	AnthropicKey string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	CostCapUSD   float64 `yaml:"cost_cap_usd" mapstructure:"cost_cap_usd"`
	PerQueryUSD  float64 `yaml:"per_query_usd" mapstructure:"per_query_usd"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CalibrationConfig configures the calibration loop.
type CalibrationConfig struct {
	MinSamplesPerArm int     `yaml:"min_samples_per_arm" mapstructure:"min_samples_per_arm"`
	ImprovementFloor float64 `yaml:"improvement_floor" mapstructure:"improvement_floor"`
	HoldoutFraction  float64 `yaml:"holdout_fraction" mapstructure:"holdout_fraction"`
	DriftAccuracyDrop float64 `yaml:"drift_accuracy_drop" mapstructure:"drift_accuracy_drop"`
	DriftBiasLimit    float64 `yaml:"drift_bias_limit" mapstructure:"drift_bias_limit"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINDABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "findable.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.max_pages", 250)
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.run_deadline_secs", 900)
	v.SetDefault("crawl.priority_paths", []string{
		"/about", "/pricing", "/contact", "/faq", "/services",
		"/products", "/team", "/press", "/blog",
	})
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.per_host_rps", 4)
	v.SetDefault("fetch.per_host_burst", 8)
	v.SetDefault("fetch.max_body_bytes", 2*1024*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; FindableBot/1.0; +https://findable.dev/bot)")
	v.SetDefault("fetch.robots_ttl_secs", 3600)
	v.SetDefault("embed.provider", "mock")
	v.SetDefault("embed.model_id", "bge-small-en-v1.5")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.batch_size", 32)
	v.SetDefault("embed.concurrency", 4)
	v.SetDefault("embed.timeout_secs", 30)
	v.SetDefault("retrieval.top_k", 50)
	v.SetDefault("retrieval.top_n", 7)
	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.vector_weight", 1.0)
	v.SetDefault("retrieval.bm25_weight", 1.0)
	v.SetDefault("retrieval.bm25_k1", 1.5)
	v.SetDefault("retrieval.bm25_b", 0.75)
	v.SetDefault("retrieval.per_page_cap", 2)
	v.SetDefault("retrieval.chunk_min_tokens", 100)
	v.SetDefault("retrieval.chunk_max_tokens", 512)
	v.SetDefault("retrieval.chunk_overlap", 50)
	v.SetDefault("questions.max_derived", 5)
	v.SetDefault("questions.max_custom", 5)
	v.SetDefault("observation.provider", "anthropic")
	v.SetDefault("observation.model", "claude-haiku-4-5-20251001")
	v.SetDefault("observation.cost_cap_usd", 1.00)
	v.SetDefault("observation.per_query_usd", 0.01)
	v.SetDefault("observation.timeout_secs", 30)
	v.SetDefault("calibration.min_samples_per_arm", 100)
	v.SetDefault("calibration.improvement_floor", 0.01)
	v.SetDefault("calibration.holdout_fraction", 0.3)
	v.SetDefault("calibration.drift_accuracy_drop", 0.10)
	v.SetDefault("calibration.drift_bias_limit", 0.20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
