// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Consultation  ConsultationConfig      `mapstructure:"consultation"`
	Endpoints     EndpointsConfig         `mapstructure:"endpoints"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Archive       ArchiveConfig           `mapstructure:"archive"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
	Roster        RosterConfig            `mapstructure:"roster"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// StorageConfig selects the backing store for the engine's KV primitives.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "redis"
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ConsultationConfig tunes the orchestration engine.
type ConsultationConfig struct {
	FanOutCap          int     `mapstructure:"fan_out_cap"`
	ConsultTimeout     int     `mapstructure:"consult_timeout"`     // milliseconds, per agent call
	CredentialGrace    int     `mapstructure:"credential_grace"`    // milliseconds before expiry that triggers refresh
	RefreshLockTTL     int     `mapstructure:"refresh_lock_ttl"`    // milliseconds
	RefreshWait        int     `mapstructure:"refresh_wait"`        // milliseconds a lock waiter backs off
	CooldownMinutes    int     `mapstructure:"cooldown_minutes"`    // circuit-breaker duration
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"` // bigram Jaccard
	ConsensusThreshold float64 `mapstructure:"consensus_threshold"` // bigram Jaccard
	CostCeiling        float64 `mapstructure:"cost_ceiling"`
	ReactionEnabled    bool    `mapstructure:"reaction_enabled"`
	GenerativeEnabled  bool    `mapstructure:"generative_enabled"`
}

// EndpointsConfig holds the external collaborator endpoints.
type EndpointsConfig struct {
	Chat struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"chat"`

	Refresh struct {
		URL     string `mapstructure:"url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"refresh"`

	Triage struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"triage"`

	Generative struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"generative"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// NotificationConfig holds settings for terminal-status notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ArchiveConfig gates the best-effort archival of finalized consultations.
type ArchiveConfig struct {
	PostgresEnabled      bool   `mapstructure:"postgres_enabled"`
	ElasticsearchEnabled bool   `mapstructure:"elasticsearch_enabled"`
	IndexName            string `mapstructure:"index_name"`
}

// MetricsConfig holds the metrics/health HTTP listener settings.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// RosterConfig points at the agent roster file loaded on startup.
type RosterConfig struct {
	Path string `mapstructure:"path"`
}
