// Package stats fetches aggregate usage numbers. Results are never cached.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/client/notify"
)

var ErrUnavailable = errors.New("stats unavailable")

type API interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

type Service struct {
	api      API
	notifier notify.Notifier
}

func NewService(api API, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{api: api, notifier: notifier}
}

// Fetch returns the latest numbers. Any failure is reported as
// ErrUnavailable and notified once.
func (s *Service) Fetch(ctx context.Context) (models.Stats, error) {
	st, err := s.api.Stats(ctx)
	if err != nil {
		s.notifier.Notify(ctx, notify.Error("Error", "Could not fetch latest stats!"))
		return models.Stats{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return *st, nil
}
