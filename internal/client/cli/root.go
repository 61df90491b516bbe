package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultcli/internal/buildinfo"
	"github.com/dmitrijs2005/vaultcli/internal/client/config"
	"github.com/dmitrijs2005/vaultcli/internal/client/session"
	"github.com/spf13/cobra"
)

// Test seams for configuration loading and application wiring.
var (
	loadConfigFn = config.Load
	newAppFn     = NewApp
)

// ErrNotLoggedIn is returned by one-shot commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in: run 'vault shell' and log in first")

const configHelp = `Configuration flags (accepted by every command):
  -a url     API base url (VAULT_API_URL)
  -d path    local database (VAULT_DATABASE_PATH)
  -t secs    request timeout (VAULT_REQUEST_TIMEOUT)
  -u n       concurrent uploads (VAULT_UPLOAD_CONCURRENCY)
  -o target  download directory or s3://bucket/prefix (VAULT_DOWNLOAD_TARGET)
  -l level   log level: debug, info, warn, error (VAULT_LOG_LEVEL)
  -c file    JSON or TOML config file`

// NewRootCommand builds the vault command tree. args are the raw process
// arguments; configuration flags are read from them by the config package,
// so cobra lets unknown flags through.
func NewRootCommand(args []string, in io.Reader, out io.Writer) *cobra.Command {
	if args == nil {
		args = []string{}
	}
	var cfg *config.Config

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
		a, err := newAppFn(cmd.Context(), cfg, in, out)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}

	shell := func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *App) error {
			return a.Shell(ctx)
		})
	}

	root := &cobra.Command{
		Use:     "vault",
		Short:   "Zero-knowledge encrypted file vault client",
		Long:    "Upload, list, share and download end-to-end encrypted files.\n\n" + configHelp,
		Version: buildinfo.String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfigFn(args)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			return nil
		},
		RunE:         shell,
		SilenceUsage: true,
	}

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell (default)",
		Args:  cobra.NoArgs,
		RunE:  shell,
	}

	downloadCmd := &cobra.Command{
		Use:   "download <link>",
		Short: "Download and decrypt a shared file",
		Long: "Download and decrypt the file behind a share link. The decryption key is\n" +
			"the part of the link after '#'; quote the link in your shell.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				return a.Download(ctx, argv[0])
			})
		},
	}

	uploadCmd := &cobra.Command{
		Use:   "upload <path> [path...]",
		Short: "Queue files and upload the whole queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				if err := a.Add(ctx, argv); err != nil && a.uploads.Len() == 0 {
					return err
				}
				return a.Upload(ctx)
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				return a.Stats(ctx)
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:   "ls [filter]",
		Short: "List uploaded files (first page)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				filter := ""
				if len(argv) == 1 {
					filter = argv[0]
				}
				return a.List(ctx, filter)
			})
		},
	}

	for _, c := range []*cobra.Command{root, shellCmd, downloadCmd, uploadCmd, statsCmd, lsCmd} {
		c.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	}
	root.AddCommand(shellCmd, downloadCmd, uploadCmd, statsCmd, lsCmd)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	return root
}

// requireSession applies the route gate for one-shot commands and loads the
// session behind the stored credential.
func (a *App) requireSession(ctx context.Context) error {
	if session.Guard(session.AreaDashboard, a.hasCredential()) != session.AreaDashboard {
		return ErrNotLoggedIn
	}
	if err := a.session.Bootstrap(ctx); err != nil {
		return fmt.Errorf("%w (%v)", ErrNotLoggedIn, err)
	}
	return nil
}
