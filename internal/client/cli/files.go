package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/client/client"
	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dmitrijs2005/vaultcli/internal/client/pager"
	"github.com/dmitrijs2005/vaultcli/internal/client/session"
	"github.com/dustin/go-humanize"
)

// currentUser returns the session user, loading it first when the session
// has not been fetched yet.
func (a *App) currentUser(ctx context.Context) (*models.User, error) {
	if u := a.session.User(); u != nil {
		return u, nil
	}
	if err := a.session.Refresh(ctx); err != nil {
		a.reportFetchFailure(ctx, err)
		return nil, err
	}
	if u := a.session.User(); u != nil {
		return u, nil
	}
	return nil, session.ErrAuthFailed
}

// reportFetchFailure explains why the account could not be loaded. A
// rejected credential has already been dropped by the client, so the
// route gate sends the user back to login.
func (a *App) reportFetchFailure(ctx context.Context, err error) {
	if errors.Is(err, client.ErrUnauthorized) {
		a.notifier.Notify(ctx, notify.Error("Session expired", "please log in again"))
		return
	}
	a.notifier.Notify(ctx, notify.Error("Could not load your account", err.Error()))
}

// List sets the filter (empty shows everything) and prints the current page.
func (a *App) List(ctx context.Context, filter string) error {
	if _, err := a.currentUser(ctx); err != nil {
		return err
	}
	a.pagerMu.Lock()
	defer a.pagerMu.Unlock()
	a.pager.SetFilter(filter)
	printPage(a.out, a.pager)
	return nil
}

// Find narrows the list to names containing text, case-insensitively.
func (a *App) Find(ctx context.Context, text string) error {
	return a.List(ctx, text)
}

// Shift moves one page forward or back and prints it.
func (a *App) Shift(_ context.Context, forward bool) error {
	a.pagerMu.Lock()
	defer a.pagerMu.Unlock()
	a.pager.Shift(forward)
	printPage(a.out, a.pager)
	return nil
}

// Page jumps to the one-based page n.
func (a *App) Page(_ context.Context, n string) error {
	num, err := strconv.Atoi(n)
	if err != nil {
		return usageError(fmt.Sprintf("page: %q is not a number", n))
	}
	a.pagerMu.Lock()
	defer a.pagerMu.Unlock()
	a.pager.SetPage(num - 1)
	printPage(a.out, a.pager)
	return nil
}

// Remove deletes an uploaded file. The list is refreshed whatever the outcome.
func (a *App) Remove(ctx context.Context, fileID string) error {
	return a.session.DeleteUpload(ctx, fileID)
}

func printPage(w io.Writer, p *pager.Paginator) {
	if p.Empty() {
		fmt.Fprintln(w, "No files uploaded yet. Use 'add' and 'upload'.")
		return
	}
	visible := p.Visible()
	if len(visible) == 0 {
		fmt.Fprintf(w, "No files match %q.\n", p.Filter())
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE ID\tNAME\tSIZE\tUPLOADED\tDOWNLOADS\tLAST DOWNLOAD")
	for _, r := range visible {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.FileID, r.FileName, formatSize(r.Size), formatTime(r.UploadDate.Time),
			r.TotalDownloads, formatTime(r.LastDownload.Time))
	}
	tw.Flush()

	fmt.Fprintln(w, pageLine(p))
}

// pageLine renders the page affordance, for example "« 2 [3] 4 »  (12 files)".
// Page numbers are shown one-based.
func pageLine(p *pager.Paginator) string {
	win := p.Window()
	var b strings.Builder
	if win.Before {
		b.WriteString("« ")
	}
	for i, n := range win.Numbers {
		if i > 0 {
			b.WriteByte(' ')
		}
		if n == p.Page() {
			fmt.Fprintf(&b, "[%d]", n+1)
		} else {
			fmt.Fprintf(&b, "%d", n+1)
		}
	}
	if win.After {
		b.WriteString(" »")
	}
	fmt.Fprintf(&b, "  page %d of %d, %d file(s)", p.Page()+1, p.TotalPages(), len(p.Filtered()))
	if f := p.Filter(); f != "" {
		fmt.Fprintf(&b, " matching %q", f)
	}
	return b.String()
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
