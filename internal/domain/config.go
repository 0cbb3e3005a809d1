package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-service defaults
	Tier Tier `json:"tier"`

	// Component configurations
	Rules      RulesConfig           `json:"rules"`
	Reference  ReferenceConfig       `json:"reference"`
	Scoring    ScoringConfig         `json:"scoring"`
	Explain    ExplainConfig         `json:"explain"`
	Repository RepositoryConfig      `json:"repository"`
	EventBus   EventBusConfig        `json:"eventBus"`
	Cache      ExplanationCacheConfig `json:"cache"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// RulesConfig holds rule-source settings.
type RulesConfig struct {
	// SourcePath is the declarative rule document (YAML or JSON).
	SourcePath string `json:"sourcePath"`

	// WatchSource enables fsnotify-driven hot reload of the source file.
	WatchSource bool `json:"watchSource"`
}

// ReferenceConfig holds reference-list settings. Risky-domain suffixes and
// supported currencies reload independently of rules.
type ReferenceConfig struct {
	// SourcePath is the reference document (YAML or JSON). Empty means
	// built-in defaults.
	SourcePath string `json:"sourcePath"`

	WatchSource bool `json:"watchSource"`
}

// ScoringConfig holds scoring-engine settings.
type ScoringConfig struct {
	// HighRiskThreshold classifies a charge as high risk when
	// riskScore >= threshold.
	HighRiskThreshold float64 `json:"highRiskThreshold"`
}

// ExplainConfig holds explanation-generator settings.
type ExplainConfig struct {
	// ProviderURL is the chat-completions endpoint of the text
	// generation provider. Empty disables the provider; every
	// explanation then uses the deterministic fallback.
	ProviderURL string `json:"providerUrl"`

	// ProviderKey is the bearer token for the provider.
	ProviderKey string `json:"-"`

	// Model requested from the provider.
	Model string `json:"model"`

	// TimeoutSecs bounds each generation call.
	TimeoutSecs int `json:"timeoutSecs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process channels + in-memory cache.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultHighRiskThreshold classifies riskScore >= 0.5 as high risk.
const DefaultHighRiskThreshold = 0.5

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Rules: RulesConfig{
			SourcePath:  "./rules.yaml",
			WatchSource: true,
		},
		Reference: ReferenceConfig{
			WatchSource: true,
		},
		Scoring: ScoringConfig{
			HighRiskThreshold: DefaultHighRiskThreshold,
		},
		Explain: ExplainConfig{
			TimeoutSecs: 10,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Cache: ExplanationCacheConfig{
			Type: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Cache = ExplanationCacheConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
