package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
	"github.com/redxsmoke/riddleofthedaydev/internal/transport/ratelimit"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 3800

// updateSource is the subset of *tgbotapi.BotAPI used for input.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot turns Telegram updates into contest operations.
type Bot struct {
	service  *app.ContestService
	notifier *Notifier
	admins   map[string]struct{}
	limiter  *ratelimit.PerUser
	log      zerolog.Logger
}

func NewBot(service *app.ContestService, notifier *Notifier, admins []string, limiter *ratelimit.PerUser, logger zerolog.Logger) *Bot {
	set := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Bot{service: service, notifier: notifier, admins: set, limiter: limiter, log: logger}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, src updateSource) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}
	updates := src.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	b.notifier.remember(userID, displayName(msg.From))

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, userID)
		return
	}
	if b.notifier.chatID != 0 && msg.Chat.ID != b.notifier.chatID {
		return
	}
	b.handleGuess(ctx, msg, userID)
}

func (b *Bot) handleGuess(ctx context.Context, msg *tgbotapi.Message, userID string) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	if !b.limiter.Allow(userID) {
		return
	}
	// Results are announced through the notifier.
	if _, err := b.service.Guess(ctx, userID, msg.Text); errors.Is(err, domain.ErrPersistence) {
		b.reply(msg, "⚠️ Your guess could not be recorded, please try again.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID string) {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(msg, helpText)
	case "submitriddle":
		b.submitRiddle(ctx, msg, userID, args)
	case "score":
		b.score(ctx, msg, userID)
	case "leaderboard":
		b.leaderboard(ctx, msg)
	case "listriddles":
		if b.requireAdmin(msg, userID) {
			b.listRiddles(ctx, msg)
		}
	case "removeriddle":
		if b.requireAdmin(msg, userID) {
			b.removeRiddle(ctx, msg, args)
		}
	case "addpoint":
		if b.requireAdmin(msg, userID) {
			b.adjust(ctx, msg, args, true)
		}
	case "removepoint":
		if b.requireAdmin(msg, userID) {
			b.adjust(ctx, msg, args, false)
		}
	}
}

const helpText = `🤖 Riddle of the Day
/submitriddle question | answer: submit a riddle (send it to me privately to keep the answer hidden)
/score: your score, streak and rank
/leaderboard: top solvers
/listriddles, /removeriddle <id>: manage the queue (mods)
/addpoint, /removepoint <user id> or as a reply: adjust scores (mods)
A new riddle is posted every evening; just type your guess in the chat.`

func (b *Bot) submitRiddle(ctx context.Context, msg *tgbotapi.Message, userID, args string) {
	question, answer, ok := strings.Cut(args, "|")
	if !ok {
		b.reply(msg, "Usage: /submitriddle question | answer")
		return
	}
	riddle, awarded, err := b.service.SubmitRiddle(ctx, question, answer, userID)
	switch {
	case errors.Is(err, domain.ErrEmptyField):
		b.reply(msg, "Usage: /submitriddle question | answer")
	case errors.Is(err, domain.ErrDuplicateRiddle):
		b.reply(msg, "⚠️ That riddle is already in the queue.")
	case err != nil:
		b.fail(msg, err)
	default:
		text := fmt.Sprintf("✅ Riddle #%d added to the queue.", riddle.ID)
		if awarded {
			text += " You earned 1 point for today's submission!"
		}
		b.reply(msg, text)
	}
}

func (b *Bot) score(ctx context.Context, msg *tgbotapi.Message, userID string) {
	stats, err := b.service.Stats(ctx, userID)
	if err != nil {
		b.fail(msg, err)
		return
	}
	b.reply(msg, fmt.Sprintf("📊 %s\nScore: %d | 🔥 Streak: %d\n🏅 Rank: %s",
		b.notifier.name(userID), stats.Score, stats.Streak, stats.Rank))
}

func (b *Bot) leaderboard(ctx context.Context, msg *tgbotapi.Message) {
	lb, err := b.service.Leaderboard(ctx, 10)
	if err != nil {
		b.fail(msg, err)
		return
	}
	if len(lb.Entries) == 0 {
		b.reply(msg, "📭 No scores available yet.")
		return
	}
	lines := []string{"🏆 Riddle Leaderboard"}
	for _, e := range lb.Entries {
		lines = append(lines, fmt.Sprintf("%d. %s: Score %d | 🔥 Streak %d | 🏅 %s",
			e.Position, b.notifier.name(e.UserID), e.Score, e.Streak, e.Rank))
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) listRiddles(ctx context.Context, msg *tgbotapi.Message) {
	riddles, err := b.service.ListRiddles(ctx)
	if err != nil {
		b.fail(msg, err)
		return
	}
	if len(riddles) == 0 {
		b.reply(msg, "📭 No riddles found in the queue.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Total riddles: %d", len(riddles))
	for _, r := range riddles {
		submitter := "the bot"
		if r.SubmitterID != "" {
			submitter = b.notifier.name(r.SubmitterID)
		}
		line := fmt.Sprintf("\n%d. %s (submitted by %s)", r.ID, r.Question, submitter)
		if r.Consumed {
			line += " ✔"
		}
		if sb.Len()+len(line) > maxMessageLen {
			sb.WriteString("\n…")
			break
		}
		sb.WriteString(line)
	}
	b.reply(msg, sb.String())
}

func (b *Bot) removeRiddle(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, err := b.service.RemoveRiddleByRef(ctx, args)
	switch {
	case errors.Is(err, domain.ErrInvalidRiddleID):
		b.reply(msg, "Usage: /removeriddle <id>")
	case errors.Is(err, domain.ErrNotFound):
		b.reply(msg, fmt.Sprintf("⚠️ No riddle found with ID %s.", args))
	case err != nil:
		b.fail(msg, err)
	default:
		b.reply(msg, fmt.Sprintf("✅ Removed riddle ID %d.", id))
	}
}

func (b *Bot) adjust(ctx context.Context, msg *tgbotapi.Message, args string, add bool) {
	target := args
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target = strconv.FormatInt(msg.ReplyToMessage.From.ID, 10)
		b.notifier.remember(target, displayName(msg.ReplyToMessage.From))
	}
	if target == "" {
		b.reply(msg, "Reply to a message or pass a user id.")
		return
	}

	if add {
		stat, err := b.service.AddPoint(ctx, target)
		if err != nil {
			b.fail(msg, err)
			return
		}
		b.reply(msg, fmt.Sprintf("✅ Added 1 point and 1 streak to %s. New score: %d, new streak: %d",
			b.notifier.name(target), stat.Score, stat.Streak))
		return
	}
	stat, err := b.service.RemovePoint(ctx, target)
	if err != nil {
		b.fail(msg, err)
		return
	}
	b.reply(msg, fmt.Sprintf("❌ Removed 1 point and reset streak for %s. New score: %d, streak reset to 0.",
		b.notifier.name(target), stat.Score))
}

func (b *Bot) requireAdmin(msg *tgbotapi.Message, userID string) bool {
	if _, ok := b.admins[userID]; ok {
		return true
	}
	b.reply(msg, "⛔ This command is for moderators only.")
	return false
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	// Replies share the outbox so they stay ordered with event messages.
	b.notifier.enqueue(out)
}

func (b *Bot) fail(msg *tgbotapi.Message, err error) {
	b.log.Error().Err(err).Str("command", msg.Command()).Msg("command failed")
	b.reply(msg, "⚠️ Something went wrong, please try again later.")
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
