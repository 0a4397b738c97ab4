// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultWorkerMaxJobs    = 5
	defaultWorkerTimeoutMs  = 30000
	defaultWorkerMaxRetries = 3
)

// Load reads configs/config.yaml, overlays config.<APP_ENVIRONMENT>.yaml,
// then applies environment overrides, defaults and validation.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return decode(v)
}

// LoadFromFile loads configuration from an explicit path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env names when the file left them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Extraction.APIKey, "EXTRACTION_API_KEY")
	setIfEmpty(&cfg.Extraction.BaseURL, "EXTRACTION_BASE_URL")
	setIfEmpty(&cfg.Notifications.SNS.TopicARN, "SNS_TOPIC_ARN")
	setIfEmpty(&cfg.Tracing.JaegerEndpoint, "JAEGER_ENDPOINT")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bizmatch-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.MatchIndex == "" {
		cfg.Database.Elasticsearch.MatchIndex = "bizmatch-matches"
	}

	if cfg.Matching.Strategy == "" {
		cfg.Matching.Strategy = "keyword_weighted"
	}
	if cfg.Matching.DemandCap == 0 {
		cfg.Matching.DemandCap = 5
	}
	if cfg.Matching.SupplierCap == 0 {
		cfg.Matching.SupplierCap = 5
	}
	if cfg.Matching.Parallelism == 0 {
		cfg.Matching.Parallelism = 1
	}
	if cfg.Matching.RunCacheTTL == 0 {
		cfg.Matching.RunCacheTTL = 86400
	}
	if cfg.Matching.AnnotateBudget == 0 {
		cfg.Matching.AnnotateBudget = 0.5
	}

	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30000
	}
	if cfg.Extraction.Delay == 0 {
		cfg.Extraction.Delay = 1000
	}
	if cfg.Extraction.MaxRetries == 0 {
		cfg.Extraction.MaxRetries = 2
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "ap-northeast-2"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = defaultWorkerMaxJobs
		}
		if w.Timeout == 0 {
			w.Timeout = defaultWorkerTimeoutMs
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = defaultWorkerMaxRetries
		}
		cfg.Workers[key] = w
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if !cfg.Database.Elasticsearch.Disabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required unless disabled")
	}

	if t := cfg.Matching.Threshold(0); t < 0 || t > 100 {
		return fmt.Errorf("matching.minimum_score_threshold must be within 0..100, got %d", t)
	}
	if cfg.Matching.DemandCap < 0 || cfg.Matching.SupplierCap < 0 {
		return fmt.Errorf("matching caps must not be negative")
	}
	if cfg.Matching.AnnotateBudget < 0 || cfg.Matching.AnnotateBudget >= 1 {
		return fmt.Errorf("matching.annotate_budget must be within (0, 1), got %v", cfg.Matching.AnnotateBudget)
	}
	if cfg.Matching.Parallelism < 1 {
		return fmt.Errorf("matching.parallelism must be at least 1")
	}

	if cfg.Extraction.BaseURL == "" {
		return fmt.Errorf("extraction.base_url is required")
	}
	if cfg.Extraction.Delay < 0 || cfg.Extraction.MaxRetries < 0 {
		return fmt.Errorf("extraction.delay and extraction.max_retries must not be negative")
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled {
		if cfg.Notifications.SES.FromEmail == "" {
			return fmt.Errorf("notifications.ses.from_email is required when ses is enabled")
		}
		if len(cfg.Notifications.SES.Recipients) == 0 {
			return fmt.Errorf("notifications.ses.recipients is required when ses is enabled")
		}
	}
	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing is enabled")
	}
	return nil
}

// GetWorkerConfig returns a worker's settings, falling back to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, ok := cfg.Workers[workerName]; ok {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: defaultWorkerMaxJobs,
		Timeout:       defaultWorkerTimeoutMs,
		MaxRetries:    defaultWorkerMaxRetries,
	}
}

// IsWorkerEnabled reports whether a worker should be started. Unlisted workers are enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if w, ok := cfg.Workers[workerName]; ok {
		return w.Enabled
	}
	return true
}
