package cli

import (
	"context"
	"fmt"
	"mime"

	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
	"github.com/dustin/go-humanize"
)

// Stats prints aggregate usage and the user's share of it.
func (a *App) Stats(ctx context.Context) error {
	s, err := a.stats.Fetch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Files served:  %s (%s)\n", humanize.Comma(s.TotalFilesServed), formatSize(s.TotalFileSize))
	fmt.Fprintf(a.out, "Your uploads:  %s (%s)\n", humanize.Comma(s.UserUploadsNumber), formatSize(s.UserUploadsSize))
	fmt.Fprintf(a.out, "Your share:    %.1f%% of files, %.1f%% of bytes\n", s.UserCountShare(), s.UserSizeShare())
	return nil
}

// Username changes the display name.
func (a *App) Username(ctx context.Context, name string) error {
	return a.session.UpdateUsername(ctx, name)
}

// Avatar uploads the image at path as the profile picture.
func (a *App) Avatar(ctx context.Context, path string) error {
	return a.session.UpdateAvatar(ctx, path)
}

// SaveAvatar stores the current profile picture in the download target.
func (a *App) SaveAvatar(ctx context.Context) error {
	sink, err := a.downloadSink(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Download target unavailable: %v\n", err)
		return err
	}
	body, mimeType, err := a.api.Avatar(ctx)
	if err != nil {
		a.notifier.Notify(ctx, notify.Error("Could not fetch avatar", err.Error()))
		return err
	}
	defer body.Close()

	loc, err := sink.Deliver(ctx, "avatar"+imageExt(mimeType), body)
	if err != nil {
		a.notifier.Notify(ctx, notify.Error("Could not save avatar", err.Error()))
		return err
	}
	fmt.Fprintf(a.out, "Avatar saved to %s\n", loc)
	return nil
}

func imageExt(mimeType string) string {
	mt, _, _ := mime.ParseMediaType(mimeType)
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".png"
	}
}
