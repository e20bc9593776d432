// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like CHAT_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Feature flags default on/off; zero values are indistinguishable from
	// an explicit false after unmarshal.
	viper.SetDefault("consultation.reaction_enabled", true)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1️⃣ LOAD BASE CONFIG
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2️⃣ LOAD ENV CONFIG
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// 3️⃣ EXPAND ENV PLACEHOLDERS
	expandEnvVars(viper.GetViper())

	// 4️⃣ Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5️⃣ DIRECT OVERRIDE IF STILL EMPTY
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations
func loadEnvFile() {
	// Try multiple paths (for running from different directories)
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up (for tests in test/e2e/)
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Collaborator endpoints
	if cfg.Endpoints.Chat.BaseURL == "" {
		if val := os.Getenv("CHAT_BASE_URL"); val != "" {
			cfg.Endpoints.Chat.BaseURL = val
		}
	}
	if cfg.Endpoints.Refresh.URL == "" {
		if val := os.Getenv("REFRESH_URL"); val != "" {
			cfg.Endpoints.Refresh.URL = val
		}
	}
	if cfg.Endpoints.Triage.BaseURL == "" {
		if val := os.Getenv("TRIAGE_BASE_URL"); val != "" {
			cfg.Endpoints.Triage.BaseURL = val
		}
	}
	if cfg.Endpoints.Generative.BaseURL == "" {
		if val := os.Getenv("GENERATIVE_BASE_URL"); val != "" {
			cfg.Endpoints.Generative.BaseURL = val
		}
	}
	if cfg.Endpoints.Generative.APIKey == "" {
		if val := os.Getenv("GENERATIVE_API_KEY"); val != "" {
			cfg.Endpoints.Generative.APIKey = val
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Consultation engine defaults
	if cfg.Consultation.FanOutCap == 0 {
		cfg.Consultation.FanOutCap = 5
	}
	if cfg.Consultation.ConsultTimeout == 0 {
		cfg.Consultation.ConsultTimeout = 30000
	}
	if cfg.Consultation.CredentialGrace == 0 {
		cfg.Consultation.CredentialGrace = 60000
	}
	if cfg.Consultation.RefreshLockTTL == 0 {
		cfg.Consultation.RefreshLockTTL = 10000
	}
	if cfg.Consultation.RefreshWait == 0 {
		cfg.Consultation.RefreshWait = 500
	}
	if cfg.Consultation.CooldownMinutes == 0 {
		cfg.Consultation.CooldownMinutes = 30
	}
	if cfg.Consultation.DuplicateThreshold == 0 {
		cfg.Consultation.DuplicateThreshold = 0.7
	}
	if cfg.Consultation.ConsensusThreshold == 0 {
		cfg.Consultation.ConsensusThreshold = 0.35
	}
	if cfg.Consultation.CostCeiling == 0 {
		cfg.Consultation.CostCeiling = 1000000
	}

	// Endpoint timeout defaults
	if cfg.Endpoints.Refresh.Timeout == 0 {
		cfg.Endpoints.Refresh.Timeout = 10000
	}
	if cfg.Endpoints.Triage.Timeout == 0 {
		cfg.Endpoints.Triage.Timeout = 5000
	}
	if cfg.Endpoints.Generative.Timeout == 0 {
		cfg.Endpoints.Generative.Timeout = 20000
	}

	// Archive defaults
	if cfg.Archive.IndexName == "" {
		cfg.Archive.IndexName = "consultation-reports"
	}

	// Metrics defaults
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":8081"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Worker defaults
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Storage.Backend != "memory" && cfg.Storage.Backend != "redis" {
		return fmt.Errorf("storage.backend must be \"memory\" or \"redis\", got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "redis" && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for the redis storage backend")
	}

	if cfg.Endpoints.Chat.BaseURL == "" {
		return fmt.Errorf("endpoints.chat.base_url is required")
	}

	if cfg.Consultation.DuplicateThreshold <= 0 || cfg.Consultation.DuplicateThreshold > 1 {
		return fmt.Errorf("consultation.duplicate_threshold must be in (0, 1]")
	}
	if cfg.Consultation.ConsensusThreshold <= 0 || cfg.Consultation.ConsensusThreshold > 1 {
		return fmt.Errorf("consultation.consensus_threshold must be in (0, 1]")
	}

	if cfg.Archive.PostgresEnabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when archive.postgres_enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when archive.postgres_enabled")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when archive.postgres_enabled")
		}
	}

	if cfg.Archive.ElasticsearchEnabled {
		if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required when archive.elasticsearch_enabled")
		}
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	// Return default worker config if not found
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
