package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "VAULT"

// parseEnv overlays cfg with VAULT_* environment variables. The dotenv file
// is loaded first when it exists; it never overrides variables already set.
//
//	VAULT_API_URL  VAULT_DATABASE_PATH  VAULT_REQUEST_TIMEOUT
//	VAULT_UPLOAD_CONCURRENCY  VAULT_DOWNLOAD_TARGET  VAULT_LOG_LEVEL
//	VAULT_S3_REGION  VAULT_S3_ENDPOINT  VAULT_S3_ACCESS_KEY  VAULT_S3_SECRET_KEY
func parseEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	strs := map[string]*string{
		"api_url":         &cfg.APIBaseURL,
		"database_path":   &cfg.DatabasePath,
		"download_target": &cfg.DownloadTarget,
		"log_level":       &cfg.LogLevel,
		"s3_region":       &cfg.S3Region,
		"s3_endpoint":     &cfg.S3Endpoint,
		"s3_access_key":   &cfg.S3AccessKey,
		"s3_secret_key":   &cfg.S3SecretKey,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("request_timeout") {
		d, err := parseTimeout(v.GetString("request_timeout"))
		if err != nil {
			return fmt.Errorf("%s_REQUEST_TIMEOUT: %w", envPrefix, err)
		}
		cfg.RequestTimeout = d
	}
	if v.IsSet("upload_concurrency") {
		n, err := strconv.Atoi(v.GetString("upload_concurrency"))
		if err != nil {
			return fmt.Errorf("%s_UPLOAD_CONCURRENCY: %w", envPrefix, err)
		}
		cfg.UploadConcurrency = n
	}
	return nil
}

// parseTimeout accepts a duration ("45s") or a bare number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
