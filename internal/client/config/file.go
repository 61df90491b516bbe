package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/vaultcli/internal/timex"
)

// fileConfig is the on-disk shape, shared by JSON and TOML. Absent fields
// leave the current value untouched.
type fileConfig struct {
	APIBaseURL        string          `json:"api_base_url" toml:"api_base_url"`
	DatabasePath      string          `json:"database_path" toml:"database_path"`
	RequestTimeout    *timex.Duration `json:"request_timeout" toml:"request_timeout"`
	UploadConcurrency *int            `json:"upload_concurrency" toml:"upload_concurrency"`
	DownloadTarget    string          `json:"download_target" toml:"download_target"`
	LogLevel          string          `json:"log_level" toml:"log_level"`
	S3                struct {
		Region    string `json:"region" toml:"region"`
		Endpoint  string `json:"endpoint" toml:"endpoint"`
		AccessKey string `json:"access_key" toml:"access_key"`
		SecretKey string `json:"secret_key" toml:"secret_key"`
	} `json:"s3" toml:"s3"`
}

// parseFile overlays cfg with the file at path. Files ending in .toml are
// TOML; anything else is JSON. An empty path loads nothing.
func parseFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	setString(&cfg.APIBaseURL, fc.APIBaseURL)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.UploadConcurrency != nil {
		cfg.UploadConcurrency = *fc.UploadConcurrency
	}
	setString(&cfg.DownloadTarget, fc.DownloadTarget)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.S3Region, fc.S3.Region)
	setString(&cfg.S3Endpoint, fc.S3.Endpoint)
	setString(&cfg.S3AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3SecretKey, fc.S3.SecretKey)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
