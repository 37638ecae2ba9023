package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

const (
	BackendSQLite     = "sqlite"
	BackendDynamoDB   = "dynamodb"
	BlobFilesystem    = "filesystem"
	BlobS3            = "s3"
	defaultConfigFile = "configs/config.yaml"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Stores      StoresConfig      `mapstructure:"stores"`
	Blob        BlobConfig        `mapstructure:"blob"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Events      EventsConfig      `mapstructure:"events"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// MetricsConfig controls the Prometheus listener. An empty address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoresConfig selects where outcome and profile tables live.
type StoresConfig struct {
	Backend      string `mapstructure:"backend"`
	OutcomeTable string `mapstructure:"outcome_table"`
	ProfileTable string `mapstructure:"profile_table"`
}

type BlobConfig struct {
	Backend        string        `mapstructure:"backend"`
	Root           string        `mapstructure:"root"`
	Bucket         string        `mapstructure:"bucket"`
	UploadPrefix   string        `mapstructure:"upload_prefix"`
	EmployeePrefix string        `mapstructure:"employee_prefix"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// CorrelationConfig is the default polling policy; callers may override per request
// up to MaxBudget.
type CorrelationConfig struct {
	Budget       time.Duration `mapstructure:"budget"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxBudget    time.Duration `mapstructure:"max_budget"`
}

// EventsConfig points at the NATS broker. An empty NATSURL disables publishing.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type AuthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	IssuerURL    string        `mapstructure:"issuer_url"`
	AuthURL      string        `mapstructure:"auth_url"`
	TokenURL     string        `mapstructure:"token_url"`
	UserInfoURL  string        `mapstructure:"userinfo_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	Scopes       []string      `mapstructure:"scopes"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
}

// Endpoints resolves the OAuth endpoints, deriving them from IssuerURL
// (Cognito hosted UI layout) when not given explicitly.
func (a AuthConfig) Endpoints() (authURL string, tokenURL string, userInfoURL string) {
	issuer := strings.TrimRight(strings.TrimSpace(a.IssuerURL), "/")
	authURL = firstNonEmpty(a.AuthURL, issuer+"/oauth2/authorize")
	tokenURL = firstNonEmpty(a.TokenURL, issuer+"/oauth2/token")
	userInfoURL = firstNonEmpty(a.UserInfoURL, issuer+"/oauth2/userInfo")
	return authURL, tokenURL, userInfoURL
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == defaultConfigFile && !fileExists(configFile) {
		configFile = ""
	}
	if configFile != "" {
		if !fileExists(configFile) {
			return Config{}, fmt.Errorf("config file %s not found", configFile)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errs.Wrap(err, "validate config")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("stores_backend", cfg.Stores.Backend),
		slog.String("blob_backend", cfg.Blob.Backend),
		slog.Duration("correlation_budget", cfg.Correlation.Budget),
		slog.Duration("correlation_poll_interval", cfg.Correlation.PollInterval),
	)

	return cfg, nil
}

// Validate rejects combinations the services cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Stores.Backend) {
	case BackendSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the sqlite stores backend")
		}
	case BackendDynamoDB:
		if strings.TrimSpace(c.Stores.OutcomeTable) == "" || strings.TrimSpace(c.Stores.ProfileTable) == "" {
			return errors.New("stores.outcome_table and stores.profile_table are required")
		}
	default:
		return fmt.Errorf("unsupported stores.backend %q", c.Stores.Backend)
	}

	switch strings.ToLower(c.Blob.Backend) {
	case BlobFilesystem:
		if strings.TrimSpace(c.Blob.Root) == "" {
			return errors.New("blob.root is required for the filesystem blob backend")
		}
	case BlobS3:
		if strings.TrimSpace(c.Blob.Bucket) == "" {
			return errors.New("blob.bucket is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("unsupported blob.backend %q", c.Blob.Backend)
	}

	if c.Correlation.Budget <= 0 {
		return errors.New("correlation.budget must be positive")
	}
	if c.Correlation.PollInterval <= 0 {
		return errors.New("correlation.poll_interval must be positive")
	}
	if c.Correlation.PollInterval > c.Correlation.Budget {
		return errors.New("correlation.poll_interval must not exceed correlation.budget")
	}
	if c.Correlation.MaxBudget < c.Correlation.Budget {
		return errors.New("correlation.max_budget must be at least correlation.budget")
	}
	if c.HTTP.WriteTimeout > 0 && c.HTTP.WriteTimeout <= c.Correlation.MaxBudget {
		return errors.New("http.write_timeout must exceed correlation.max_budget")
	}

	if c.Auth.Enabled {
		if strings.TrimSpace(c.Auth.ClientID) == "" || strings.TrimSpace(c.Auth.RedirectURL) == "" {
			return errors.New("auth.client_id and auth.redirect_url are required when auth is enabled")
		}
		if strings.TrimSpace(c.Auth.IssuerURL) == "" && (c.Auth.AuthURL == "" || c.Auth.TokenURL == "" || c.Auth.UserInfoURL == "") {
			return errors.New("auth.issuer_url or explicit auth endpoints are required when auth is enabled")
		}
		if c.Auth.SessionTTL <= 0 {
			return errors.New("auth.session_ttl must be positive")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ppesuite")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/ppesuite.sqlite")

	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 150*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_upload_bytes", int64(10<<20))

	v.SetDefault("metrics.address", ":2112")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("stores.backend", BackendSQLite)
	v.SetDefault("stores.outcome_table", "violation_master")
	v.SetDefault("stores.profile_table", "employee_master")

	v.SetDefault("blob.backend", BlobFilesystem)
	v.SetDefault("blob.root", ".data/blobs")
	v.SetDefault("blob.bucket", "ppe-detection-input")
	v.SetDefault("blob.upload_prefix", "uploads/")
	v.SetDefault("blob.employee_prefix", "employees/")
	v.SetDefault("blob.presign_ttl", time.Hour)

	v.SetDefault("aws.region", "us-east-2")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("correlation.budget", 25*time.Second)
	v.SetDefault("correlation.poll_interval", 2*time.Second)
	v.SetDefault("correlation.max_budget", 2*time.Minute)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.session_ttl", 8*time.Hour)
	v.SetDefault("auth.cookie_name", "ppe_session")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "ppesuite")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
