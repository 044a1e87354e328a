package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/symptom-checker/internal/classifier"
)

// EnvPrefix namespaces environment overrides, e.g. SYMPTOM_SERVER_PORT
const EnvPrefix = "SYMPTOM"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Model     ModelConfig     `mapstructure:"model"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	Environment     string        `mapstructure:"environment" validate:"oneof=development production test"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" validate:"dive,url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gte=1024"`
	Swagger         bool          `mapstructure:"swagger"`
	Pprof           bool          `mapstructure:"pprof"`
	TLSCertFile     string        `mapstructure:"tls_cert_file" validate:"required_with=TLSKeyFile,omitempty,file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file" validate:"required_with=TLSCertFile,omitempty,file"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type ModelConfig struct {
	Path    string                  `mapstructure:"path"`
	Version string                  `mapstructure:"version"`
	Remote  classifier.RemoteConfig `mapstructure:"remote"`
}

type SessionConfig struct {
	Backend      string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL          time.Duration `mapstructure:"ttl" validate:"gt=0"`
	MaxSessions  int           `mapstructure:"max_sessions" validate:"gte=0"`
	CookieName   string        `mapstructure:"cookie_name" validate:"required,alphanum"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" validate:"gte=1"`
	Burst             int  `mapstructure:"burst" validate:"gte=1"`
	AnswersPerMinute  int  `mapstructure:"answers_per_minute" validate:"gte=1"`
}

type CacheConfig struct {
	PredictionTTL  time.Duration `mapstructure:"prediction_ttl" validate:"gte=0"`
	PredictionSize int           `mapstructure:"prediction_size" validate:"gte=0"`
}

// UsesTLS reports whether a certificate pair is configured
func (c *Config) UsesTLS() bool {
	return c.Server.TLSCertFile != "" && c.Server.TLSKeyFile != ""
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

// NewConfigLoader reads configFile when given, otherwise looks for config.yaml
// in the working directory and $HOME/.config/symptom-checker
func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/symptom-checker")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.swagger", true)
	v.SetDefault("server.pprof", false)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("model.path", "models/model.json")
	v.SetDefault("model.version", "")
	v.SetDefault("model.remote.url", "")
	v.SetDefault("model.remote.api_key", "")
	v.SetDefault("model.remote.timeout", 5*time.Second)
	v.SetDefault("model.remote.retry.max_attempts", 3)
	v.SetDefault("model.remote.retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("model.remote.retry.max_delay", 2*time.Second)
	v.SetDefault("model.remote.retry.backoff_factor", 2.0)
	v.SetDefault("model.remote.retry.jitter_enabled", true)
	v.SetDefault("model.remote.breaker.failure_threshold", 5)
	v.SetDefault("model.remote.breaker.recovery_timeout", 30*time.Second)
	v.SetDefault("model.remote.breaker.success_threshold", 2)
	v.SetDefault("model.remote.pool.max_idle", 10)
	v.SetDefault("model.remote.pool.max_active", 20)
	v.SetDefault("model.remote.pool.idle_timeout", 90*time.Second)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.cookie_name", "symptomsession")
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("redis.url", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.answers_per_minute", 30)

	v.SetDefault("cache.prediction_ttl", 15*time.Minute)
	v.SetDefault("cache.prediction_size", 1000)
}

// bare names kept for container platforms that set them directly
var legacyEnv = map[string]string{
	"server.port":        "PORT",
	"server.environment": "ENVIRONMENT",
	"redis.url":          "REDIS_URL",
	"model.path":         "MODEL_PATH",
	"model.remote.url":   "MODEL_URL",
	"log.level":          "LOG_LEVEL",
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the cross-field constraints
func (loader *ConfigLoader) Validate(cfg *Config) error {
	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	// a remote model server takes precedence over a local artifact
	if cfg.Model.Remote.BaseURL == "" {
		if cfg.Model.Path == "" {
			return fmt.Errorf("invalid configuration: model.path or model.remote.url is required")
		}
		if info, err := os.Stat(cfg.Model.Path); err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("invalid configuration: model.path %q must be an existing file", cfg.Model.Path)
		}
	}
	if cfg.Session.Backend == "redis" && cfg.Redis.URL == "" {
		return fmt.Errorf("invalid configuration: redis.url is required when session.backend is redis")
	}
	return nil
}

// Load is a convenience wrapper around NewConfigLoader(configFile).Load()
func Load(configFile string) (*Config, error) {
	loader, err := NewConfigLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
