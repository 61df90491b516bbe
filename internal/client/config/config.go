package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/common"
	"github.com/dmitrijs2005/vaultcli/internal/flagx"
)

// Config holds runtime settings for the vault CLI.
//
// Fields:
//   - APIBaseURL: root of the REST API; always ends with "/".
//   - DatabasePath: SQLite file holding the session cookie and upload queue.
//   - RequestTimeout: bound for non-streaming API calls.
//   - UploadConcurrency: maximum uploads in flight.
//   - DownloadTarget: directory, or s3://bucket/prefix, for downloads.
//   - LogLevel: debug, info, warn or error.
//   - S3*: bucket delivery settings, read from the file or environment only.
type Config struct {
	APIBaseURL        string
	DatabasePath      string
	RequestTimeout    time.Duration
	UploadConcurrency int
	DownloadTarget    string
	LogLevel          string

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080/"
	c.DatabasePath = "vault.db"
	c.RequestTimeout = 30 * time.Second
	c.UploadConcurrency = 4
	c.DownloadTarget = "download"
	c.LogLevel = "info"
}

// dotenvFile is loaded into the environment when present.
var dotenvFile = ".env"

// Load builds a Config from defaults, then the config file named by -c or
// --config, then the environment (including .env), then flags in args.
// Later sources win.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, flagx.ConfigFileFlag(args)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, dotenvFile); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = common.WithTrailingSlash(cfg.APIBaseURL)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments. It panics on invalid
// configuration.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	var errs []error
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api url %q: must be an absolute http(s) url", c.APIBaseURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.UploadConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("upload concurrency must be positive, got %d", c.UploadConcurrency))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	return errors.Join(errs...)
}

// LogValue keeps the S3 secret out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_url", c.APIBaseURL),
		slog.String("database", c.DatabasePath),
		slog.Duration("timeout", c.RequestTimeout),
		slog.Int("upload_concurrency", c.UploadConcurrency),
		slog.String("download_target", c.DownloadTarget),
		slog.String("log_level", c.LogLevel),
		slog.Bool("s3_credentials", c.S3AccessKey != ""),
	)
}
