// Package config loads runtime configuration for the vault CLI.
//
// # Sources and precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file given with -c or --config. A ".toml" file is read
//     as TOML, anything else as JSON.
//  3. Environment: VAULT_* variables, after loading ./.env when present.
//  4. Command-line flags (-a -d -t -u -o -l), which override everything.
//
// # File schema
//
// Durations use timex.Duration, so "30s" and integer nanoseconds both work:
//
//	{
//	  "api_base_url": "https://vault.example/api/",
//	  "database_path": "vault.db",
//	  "request_timeout": "30s",
//	  "upload_concurrency": 4,
//	  "download_target": "s3://bucket/inbox",
//	  "log_level": "debug",
//	  "s3": {"region": "eu-central-1", "endpoint": "http://127.0.0.1:9000"}
//	}
//
// The same keys are valid TOML, with [s3] as a table.
package config
