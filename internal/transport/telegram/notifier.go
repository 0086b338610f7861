// Package telegram runs the contest in a Telegram group chat.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// sender is the subset of *tgbotapi.BotAPI used for output.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// outboxSize bounds the messages waiting for the send worker.
const outboxSize = 64

// Notifier posts contest events to the configured chat. It implements app.Notifier.
// Event methods only queue messages; Run performs the HTTP sends.
type Notifier struct {
	api    sender
	chatID int64
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	names map[string]string

	outboxMu sync.Mutex
	outbox   chan tgbotapi.Chattable
}

func NewNotifier(api sender, chatID int64, logger zerolog.Logger) *Notifier {
	return NewNotifierWithClock(api, chatID, logger, time.Now)
}

func NewNotifierWithClock(api sender, chatID int64, logger zerolog.Logger, now func() time.Time) *Notifier {
	return &Notifier{
		api:    api,
		chatID: chatID,
		log:    logger,
		now:    now,
		names:  make(map[string]string),
		outbox: make(chan tgbotapi.Chattable, outboxSize),
	}
}

// Run sends queued messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-n.outbox:
			n.send(c)
		}
	}
}

// flush sends whatever is queued on the calling goroutine.
func (n *Notifier) flush() {
	for {
		select {
		case c := <-n.outbox:
			n.send(c)
		default:
			return
		}
	}
}

// enqueue never blocks: when the outbox is full the oldest message is dropped.
func (n *Notifier) enqueue(c tgbotapi.Chattable) {
	n.outboxMu.Lock()
	defer n.outboxMu.Unlock()
	select {
	case n.outbox <- c:
		return
	default:
	}
	select {
	case <-n.outbox:
		n.log.Warn().Msg("telegram outbox full, dropped oldest message")
	default:
	}
	select {
	case n.outbox <- c:
	default:
	}
}

func (n *Notifier) send(c tgbotapi.Chattable) {
	if _, err := n.api.Send(c); err != nil {
		n.log.Warn().Err(err).Msg("telegram send failed")
	}
}

// remember records a display name for later mentions.
func (n *Notifier) remember(userID, name string) {
	if name == "" {
		return
	}
	n.mu.Lock()
	n.names[userID] = name
	n.mu.Unlock()
}

func (n *Notifier) name(userID string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.names[userID]; ok {
		return name
	}
	return "user " + userID
}

func (n *Notifier) say(chatID int64, text string) {
	if chatID == 0 {
		return
	}
	n.enqueue(tgbotapi.NewMessage(chatID, text))
}

func (n *Notifier) RoundAnnounced(context.Context) {
	n.say(n.chatID, "⏳ The next riddle will be posted soon! Submit your own with /submitriddle question | answer")
}

func (n *Notifier) RoundOpened(_ context.Context, opened domain.RoundOpened) {
	var b strings.Builder
	fmt.Fprintf(&b, "🧩 Riddle of the Day #%d\n\n%s\n\nReply with your answer! You have %d guesses.",
		opened.Riddle.ID, opened.Riddle.Question, domain.MaxAttempts)
	if opened.Riddle.SubmitterID != "" {
		fmt.Fprintf(&b, "\n(Riddle submitted by %s)", n.name(opened.Riddle.SubmitterID))
	}
	if opened.LowSupply {
		fmt.Fprintf(&b, "\n\n⚠️ Only %d riddle(s) left in the queue. Submit more with /submitriddle!", opened.Unused)
	}
	n.say(n.chatID, b.String())
}

func (n *Notifier) RoundRevealed(_ context.Context, summary domain.RevealSummary) {
	n.say(n.chatID, fmt.Sprintf("🔔 Answer to Riddle #%d\n\n%s\n\n💡 Use /submitriddle to submit your own riddle!",
		summary.Riddle.ID, summary.Riddle.Answer))
	if len(summary.Winners) == 0 {
		return
	}
	lines := []string{"🎉 Congratulations to:"}
	for _, w := range summary.Winners {
		lines = append(lines, fmt.Sprintf("%s: Score %d, Streak 🔥%d, Rank: %s", n.name(w.UserID), w.Score, w.Streak, w.Rank))
	}
	n.say(n.chatID, strings.Join(lines, "\n"))
}

func (n *Notifier) NoWinners(context.Context, domain.Riddle) {
	n.say(n.chatID, "😢 No one guessed the riddle correctly today.")
}

func (n *Notifier) PoolExhausted(context.Context) {
	n.say(n.chatID, "⚠️ No riddles left to post today. Submit one with /submitriddle question | answer")
}

func (n *Notifier) GuessResult(_ context.Context, result domain.GuessResult) {
	if text := n.guessText(result); text != "" {
		n.say(n.chatID, text)
	}
}

func (n *Notifier) guessText(result domain.GuessResult) string {
	name := n.name(result.UserID)
	switch result.Outcome {
	case domain.OutcomeCorrect:
		return fmt.Sprintf("🎉 Correct, %s! Your total score: %d\n%s", name, result.Score, countdown(n.now(), result.RevealAt))
	case domain.OutcomeIncorrect:
		return fmt.Sprintf("❌ Incorrect, %s. %d guess(es) left.\n%s", name, result.Remaining, countdown(n.now(), result.RevealAt))
	case domain.OutcomePenalized:
		return fmt.Sprintf("❌ Incorrect, %s. You've used all guesses and lost 1 point.", name)
	case domain.OutcomeSubmitterRejected:
		return fmt.Sprintf("⛔ You submitted this riddle and cannot answer it, %s.", name)
	case domain.OutcomeAlreadySolved:
		return fmt.Sprintf("✅ You already answered correctly, %s. No more guesses counted.", name)
	case domain.OutcomeOutOfAttempts:
		return fmt.Sprintf("❌ You are out of guesses for this riddle, %s.", name)
	default:
		return ""
	}
}

func countdown(now, revealAt time.Time) string {
	left := revealAt.Sub(now)
	if left < 0 {
		left = 0
	}
	hours := int(left / time.Hour)
	minutes := int((left % time.Hour) / time.Minute)
	return fmt.Sprintf("⏳ Answer will be revealed in %d hour%s %d minute%s.", hours, plural(hours), minutes, plural(minutes))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
