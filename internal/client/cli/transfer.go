package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dmitrijs2005/vaultcli/internal/client/upload"
)

// Queue prints the local upload queue.
func (a *App) Queue(_ context.Context) error {
	q := a.uploads.Queue()
	if len(q) == 0 {
		fmt.Fprintln(a.out, "Upload queue is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tNAME\tSIZE\tTYPE")
	var total int64
	for _, f := range q {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.LocalIndex, f.Name, formatSize(f.Size), f.MimeType)
		total += f.Size
	}
	tw.Flush()
	fmt.Fprintf(a.out, "%d file(s), %s total\n", len(q), formatSize(total))
	return nil
}

// Add queues local files. Paths that are not regular files are reported;
// the others are queued anyway.
func (a *App) Add(ctx context.Context, paths []string) error {
	added, err := a.uploads.EnqueuePaths(ctx, paths...)
	for _, f := range added {
		fmt.Fprintf(a.out, "queued #%d %s (%s)\n", f.LocalIndex, f.Name, formatSize(f.Size))
	}
	if err != nil {
		fmt.Fprintln(a.out, err)
	}
	return err
}

// Drop removes a queued entry by its index.
func (a *App) Drop(ctx context.Context, idx string) error {
	n, err := strconv.ParseUint(idx, 10, 64)
	if err != nil {
		return usageError(fmt.Sprintf("drop: %q is not a queue index", idx))
	}
	if !a.uploads.Dequeue(ctx, n) {
		return usageError(fmt.Sprintf("drop: no queued entry #%d (or it is uploading)", n))
	}
	fmt.Fprintf(a.out, "dropped #%d\n", n)
	return nil
}

// Upload sends the whole queue and prints a share link per uploaded file.
// The links carry the decryption key and are printed once.
func (a *App) Upload(ctx context.Context) error {
	if a.uploads.Len() == 0 {
		fmt.Fprintln(a.out, "Nothing to upload. Use 'add' first.")
		return nil
	}
	report, err := a.uploads.UploadAll(ctx)
	for _, up := range report.Uploaded {
		fmt.Fprintf(a.out, "uploaded %s\n  share link: %s\n", up.Name, up.URL)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(a.out, "failed   %s (#%d): %v\n", f.File.Name, f.File.LocalIndex, f.Err)
	}
	if errors.Is(err, upload.ErrPartialUpload) || errors.Is(err, upload.ErrUploadFailed) {
		fmt.Fprintln(a.out, "Failed files stay queued; run 'upload' again to retry.")
	}
	return err
}

// Download fetches and decrypts the file behind a share link into the
// configured target.
func (a *App) Download(ctx context.Context, link string) error {
	sink, err := a.downloadSink(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Download target unavailable: %v\n", err)
		return err
	}
	res, err := a.downloads.Download(ctx, link, sink)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s) saved to %s\n", res.Info.FileName, formatSize(res.Info.Size), res.Location)
	return nil
}
