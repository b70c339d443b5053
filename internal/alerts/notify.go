package alerts

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fh-draw-bot/internal/engine"
)

// Notifier logs +EV candidates and, when Telegram is enabled, pushes them
// to a configured chat. Repeat alerts for the same match are suppressed
// within the cooldown window.
type Notifier struct {
	mu         sync.Mutex
	lastAlerts map[string]time.Time
	cooldown   time.Duration
	log        *zap.Logger

	bot    *tgbotapi.BotAPI // nil when Telegram is disabled
	chatID int64
}

// NewNotifier creates a log-only notifier.
func NewNotifier(cooldown time.Duration, log *zap.Logger) *Notifier {
	return &Notifier{
		lastAlerts: make(map[string]time.Time),
		cooldown:   cooldown,
		log:        log,
	}
}

// EnableTelegram attaches a Telegram bot to the notifier.
func (n *Notifier) EnableTelegram(botToken, chatID string) error {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return fmt.Errorf("creating Telegram bot: %w", err)
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id: %w", err)
	}

	n.bot = bot
	n.chatID = id
	return nil
}

// ListenForCommands polls Telegram updates in a background goroutine and
// answers a /ping liveness command. Returns immediately; the goroutine
// stops when ctx is cancelled. No-op when Telegram is disabled.
func (n *Notifier) ListenForCommands(ctx context.Context) {
	if n.bot == nil {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				n.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() && update.Message.Command() == "ping" {
					reply := tgbotapi.NewMessage(update.Message.Chat.ID, "Pong")
					n.bot.Send(reply) //nolint:errcheck
				}
			}
		}
	}()
}

// AlertCandidate reports one +EV candidate, at most once per cooldown
// window per match.
func (n *Notifier) AlertCandidate(c engine.Candidate) {
	n.mu.Lock()
	if last, ok := n.lastAlerts[c.Match.ID]; ok && time.Since(last) < n.cooldown {
		n.mu.Unlock()
		return
	}
	n.lastAlerts[c.Match.ID] = time.Now()
	n.mu.Unlock()

	n.log.Info("+EV first-half draw",
		zap.String("match", c.Match.Name),
		zap.Float64("draw_odds", c.DrawOdds),
		zap.Float64("ev_percent", c.EVPercent),
		zap.Float64("model_prob", c.ModelProb),
		zap.Float64("fair_prob", c.FairDrawProb),
	)

	if n.bot != nil {
		msg := tgbotapi.NewMessage(n.chatID, FormatCandidate(c))
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Warn("sending Telegram alert", zap.Error(err))
		}
	}
}

// LogScan reports a completed ranking pass.
func (n *Notifier) LogScan(matchesScanned, candidatesFound int) {
	n.log.Info("scan complete",
		zap.Int("matches", matchesScanned),
		zap.Int("candidates", candidatesFound))
}

// CleanupOldAlerts drops dedupe entries older than the cooldown so the
// map does not grow without bound across long runs.
func (n *Notifier) CleanupOldAlerts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, last := range n.lastAlerts {
		if time.Since(last) >= n.cooldown {
			delete(n.lastAlerts, key)
		}
	}
}

// FormatCandidate renders one candidate as a plain-text alert message.
func FormatCandidate(c engine.Candidate) string {
	return fmt.Sprintf("FH draw value: %s\nodds %.2f | EV %.2f%% | model %.3f | fair %.3f",
		c.Match.Name, c.DrawOdds, c.EVPercent, c.ModelProb, c.FairDrawProb)
}
