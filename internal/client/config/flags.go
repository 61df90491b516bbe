package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/flagx"
)

// Flags lists the command-line flags owned by this package.
var Flags = []string{"-a", "-d", "-t", "-u", "-o", "-l"}

// parseFlags overlays cfg with flags found in args. Only flags listed in
// Flags are considered; everything else belongs to the command parser.
//
//	-a string   API base url
//	-d string   local database path
//	-t int      request timeout (seconds)
//	-u int      concurrent uploads
//	-o string   download directory or s3://bucket/prefix
//	-l string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, Flags)

	fs := flag.NewFlagSet("vault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base url")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	timeout := fs.Int("t", int(cfg.RequestTimeout/time.Second), "request timeout (in seconds)")
	fs.IntVar(&cfg.UploadConcurrency, "u", cfg.UploadConcurrency, "concurrent uploads")
	fs.StringVar(&cfg.DownloadTarget, "o", cfg.DownloadTarget, "download directory or s3://bucket/prefix")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
