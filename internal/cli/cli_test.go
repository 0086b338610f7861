package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/config"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/memory"
	"github.com/redxsmoke/riddleofthedaydev/internal/infra/sqlite"
	"github.com/redxsmoke/riddleofthedaydev/internal/schedule"
)

func TestParseSeedFile(t *testing.T) {
	seeds, err := parseSeedFile(strings.NewReader(`
- question: What has keys but can't open locks?
  answer: piano
- question: What runs but never walks?
  answer: river
  submitter: "42"
`))
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "piano", seeds[0].Answer)
	assert.Equal(t, "42", seeds[1].Submitter)

	empty, err := parseSeedFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseSeedFile(strings.NewReader("question: [unterminated"))
	assert.Error(t, err)
}

func TestDailyFromConfig(t *testing.T) {
	cfg := config.Default()
	daily, err := dailyFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultDaily, daily)

	cfg.Contest.RevealAt = "noon"
	_, err = dailyFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Contest.AnnounceAt = cfg.Contest.OpenAt
	_, err = dailyFromConfig(cfg)
	assert.Error(t, err, "tied announce and open would never open a round")
}

func TestOpenStoresMixedCaseDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	cfg, err := config.Load(t.TempDir() + "/absent.yaml")
	require.NoError(t, err)
	cfg.SQLite.Path = t.TempDir() + "/contest.db"

	st, err := openStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &sqlite.RiddleRepository{}, st.riddles)
	assert.IsType(t, &sqlite.LedgerStore{}, st.ledger)
}

func TestOpenStoresRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "cassandra"
	_, err := openStores(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.SQLite.Path = t.TempDir() + "/contest.db"

	st, err := openStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	pool := app.NewRiddlePool(st.riddles)
	_, err = pool.Submit(context.Background(), "Q?", "a", "")
	require.NoError(t, err)
	list, err := pool.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestContestHooksDriveRounds(t *testing.T) {
	ctx := context.Background()
	service := app.NewContestService(memory.NewRiddleRepository(), memory.NewLedgerStore(), app.Options{})
	_, _, err := service.SubmitRiddle(ctx, "Q?", "a", "")
	require.NoError(t, err)

	hooks := contestHooks(service, zerolog.Nop())
	hooks.Announce(ctx)
	hooks.Open(ctx)
	assert.Equal(t, domain.PhaseOpen, service.Round().Phase)
	hooks.Reveal(ctx)
	assert.Equal(t, domain.PhaseIdle, service.Round().Phase)
}

func TestPrintRiddles(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, printRiddles(&buf, []domain.Riddle{
		{ID: 1, Question: "Q one?", Consumed: true, CreatedAt: created},
		{ID: 2, Question: "Q two?", CreatedAt: created},
	}))
	assert.Equal(t, "[x]    1  Q one?  (2026-10-18)\n[ ]    2  Q two?  (2026-10-18)\n", buf.String())
}
