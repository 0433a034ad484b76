package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvPrefix  = "BOUNDARY_IMPORTER_"
	DotEnvFile = ".env"

	defaultConnectTimeout  = 30 * time.Second
	defaultConnectAttempts = 3
	defaultUploadTimeout   = 2 * time.Minute
	defaultQueryTimeout    = 30 * time.Second
	defaultMaxEntries      = 100
	defaultMaxTotalBytes   = 1_000_000_000
	defaultRedisKey        = "boundary-importer:last-run"
	defaultRedisTTL        = 7 * 24 * time.Hour
	defaultDaemonInterval  = time.Hour
)

type AcquisitionConfig struct {
	URL             string        `yaml:"url" env:"URL"`
	Username        string        `yaml:"username" env:"USERNAME"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	PrivateKeyFile  string        `yaml:"private_key_file" env:"PRIVATE_KEY_FILE"`
	KnownHostsFile  string        `yaml:"known_hosts_file" env:"KNOWN_HOSTS_FILE"`
	Directory       string        `yaml:"directory" env:"DIRECTORY"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	ConnectAttempts uint          `yaml:"connect_attempts" env:"CONNECT_ATTEMPTS"`
}

type RegistryConfig struct {
	URL           string        `yaml:"url" env:"URL"`
	UploadTimeout time.Duration `yaml:"upload_timeout" env:"UPLOAD_TIMEOUT"`
	QueryTimeout  time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
}

type LimitsConfig struct {
	MaxEntries    int   `yaml:"max_entries" env:"MAX_ENTRIES"`
	MaxTotalBytes int64 `yaml:"max_total_bytes" env:"MAX_TOTAL_BYTES"`
}

type DedupConfig struct {
	// TrackImported adds identifiers to the known set as soon as they are imported,
	// so that the same identifier found twice in one run is uploaded once.
	TrackImported bool `yaml:"track_imported" env:"TRACK_IMPORTED"`
}

type ReportConfig struct {
	MarkdownFile string        `yaml:"markdown_file" env:"MARKDOWN_FILE"`
	HTMLFile     string        `yaml:"html_file" env:"HTML_FILE"`
	RedisURL     string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisKey     string        `yaml:"redis_key" env:"REDIS_KEY"`
	RedisTTL     time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
}

type DaemonConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type Config struct {
	LogLevel    string            `yaml:"log_level" env:"LOG_LEVEL"`
	Acquisition AcquisitionConfig `yaml:"acquisition" envPrefix:"ACQUISITION_"`
	Registry    RegistryConfig    `yaml:"registry" envPrefix:"REGISTRY_"`
	Limits      LimitsConfig      `yaml:"limits" envPrefix:"LIMITS_"`
	Dedup       DedupConfig       `yaml:"dedup" envPrefix:"DEDUP_"`
	Report      ReportConfig      `yaml:"report" envPrefix:"REPORT_"`
	Daemon      DaemonConfig      `yaml:"daemon" envPrefix:"DAEMON_"`
}

func (c *Config) SetDefaults() {
	c.LogLevel = LogLevelInfo
	c.Acquisition.ConnectTimeout = defaultConnectTimeout
	c.Acquisition.ConnectAttempts = defaultConnectAttempts
	c.Registry.UploadTimeout = defaultUploadTimeout
	c.Registry.QueryTimeout = defaultQueryTimeout
	c.Limits.MaxEntries = defaultMaxEntries
	c.Limits.MaxTotalBytes = defaultMaxTotalBytes
	c.Report.RedisKey = defaultRedisKey
	c.Report.RedisTTL = defaultRedisTTL
	c.Daemon.Interval = defaultDaemonInterval
}

// Validate reports missing mandatory settings as common.ErrSetup.
func (c *Config) Validate() error {
	var errs []error

	if c.Acquisition.URL == "" {
		errs = append(errs, fmt.Errorf("acquisition.url is required"))
	}

	if c.Acquisition.Directory == "" {
		errs = append(errs, fmt.Errorf("acquisition.directory is required"))
	}

	if c.Registry.URL == "" {
		errs = append(errs, fmt.Errorf("registry.url is required"))
	}

	if c.Limits.MaxEntries < 1 || c.Limits.MaxTotalBytes < 1 {
		errs = append(errs, fmt.Errorf("limits must be positive"))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrSetup, errors.Join(errs...))
	}

	return nil
}

func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug, nil
	case LogLevelInfo:
		return slog.LevelInfo, nil
	case LogLevelWarn:
		return slog.LevelWarn, nil
	case LogLevelError:
		return slog.LevelError, nil
	}

	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// Load reads the YAML config file, then the optional .env file and the process environment,
// which take precedence. A missing config file is not an error when the environment is enough.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: cannot parse config file %s: %w", common.ErrSetup, path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("%w: cannot read config file %s: %w", common.ErrSetup, path, err)
		}
	}

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: cannot load %s: %w", common.ErrSetup, DotEnvFile, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%w: cannot load config from env: %w", common.ErrSetup, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
