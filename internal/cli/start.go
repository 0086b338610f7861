package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/config"
	"github.com/redxsmoke/riddleofthedaydev/internal/schedule"
	transport "github.com/redxsmoke/riddleofthedaydev/internal/transport/http"
	"github.com/redxsmoke/riddleofthedaydev/internal/transport/ratelimit"
	"github.com/redxsmoke/riddleofthedaydev/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the contest.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server, scheduler and chat bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	daily, err := dailyFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := transport.NewHub(log.With().Str("component", "ws").Logger())
	notifiers := app.MultiNotifier{hub}

	var (
		bot    *telegram.Bot
		botAPI *tgbotapi.BotAPI
		tgNote *telegram.Notifier
	)
	if cfg.Telegram.Token != "" {
		// Long polling holds requests for up to 60s.
		botAPI, err = tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: 75 * time.Second})
		if err != nil {
			return err
		}
		log.Info().Str("bot", botAPI.Self.UserName).Msg("telegram bot authorized")
		tgNote = telegram.NewNotifier(botAPI, cfg.Telegram.ChatID, log.With().Str("component", "telegram").Logger())
		notifiers = append(notifiers, tgNote)
	}

	service := app.NewContestService(st.riddles, st.ledger, app.Options{
		Notifier:           notifiers,
		Logger:             &log,
		RevealAt:           daily.NextReveal,
		LowSupplyThreshold: cfg.Contest.LowSupplyThreshold,
		LedgerRetries:      cfg.Contest.LedgerRetries,
		RetryBackoff:       config.TTLDuration(cfg.Contest.RetryBackoff, 50*time.Millisecond),
	})

	limiter := ratelimit.NewPerUser(cfg.Contest.GuessRate, cfg.Contest.GuessBurst)
	if tgNote != nil {
		bot = telegram.NewBot(service, tgNote, cfg.Telegram.Admins, limiter, log.With().Str("component", "telegram").Logger())
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	wsHandler := transport.NewWSHandler(service, hub, limiter, log.With().Str("component", "ws").Logger())
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewMux(transport.NewHandler(service, cfg.HTTP.AdminToken, log), wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Msg("starting contest server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		driver := schedule.NewDriver(daily, log.With().Str("component", "schedule").Logger())
		return ignoreCanceled(driver.Run(gctx, contestHooks(service, log)))
	})
	if bot != nil {
		g.Go(func() error {
			return ignoreCanceled(tgNote.Run(gctx))
		})
		g.Go(func() error {
			return ignoreCanceled(bot.Run(gctx, botAPI))
		})
	}
	return g.Wait()
}

func dailyFromConfig(cfg config.Config) (schedule.Daily, error) {
	announce, err := schedule.ParseClockTime(cfg.Contest.AnnounceAt)
	if err != nil {
		return schedule.Daily{}, err
	}
	open, err := schedule.ParseClockTime(cfg.Contest.OpenAt)
	if err != nil {
		return schedule.Daily{}, err
	}
	reveal, err := schedule.ParseClockTime(cfg.Contest.RevealAt)
	if err != nil {
		return schedule.Daily{}, err
	}
	daily := schedule.Daily{Announce: announce, Open: open, Reveal: reveal}
	return daily, daily.Validate()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
