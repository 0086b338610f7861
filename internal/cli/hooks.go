package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/schedule"
)

// contestHooks binds the schedule events to the round scheduler.
func contestHooks(service *app.ContestService, log zerolog.Logger) schedule.Hooks {
	s := service.Scheduler()
	return schedule.Hooks{
		Announce: s.OnAnnounceTime,
		Open: func(ctx context.Context) {
			if _, err := s.OnOpenTime(ctx); err != nil {
				log.Error().Err(err).Msg("open round failed")
			}
		},
		Reveal: func(ctx context.Context) {
			s.OnRevealTime(ctx)
		},
	}
}
