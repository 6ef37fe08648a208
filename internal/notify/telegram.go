package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"wakebell/pkg/logx"
)

type TelegramConfig struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration
}

// Handlers are the app-side hooks behind the bot commands. Any nil handler
// disables its command.
type Handlers struct {
	// Dismiss receives the /dismiss payload (the mission answer, possibly
	// empty) and returns the reply text.
	Dismiss func(answer string) string
	// Schedule returns the upcoming alarm calendar.
	Schedule func() string
	// Stats returns the ring history summary.
	Stats func() string
}

// TelegramBell rings through a Telegram chat and accepts /dismiss,
// /schedule and /stats from it.
type TelegramBell struct {
	cfg TelegramConfig
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func NewTelegramBell(cfg TelegramConfig, h Handlers, log logx.Logger) (*TelegramBell, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	t := &TelegramBell{cfg: cfg, log: log, bot: b}
	t.register(h)
	return t, nil
}

func (t *TelegramBell) Name() string { return "telegram" }

func (t *TelegramBell) Send(ctx context.Context, text string) error {
	_ = ctx // telebot manages its own HTTP timeouts
	_, err := t.bot.Send(&tele.Chat{ID: t.cfg.ChatID}, text)
	return err
}

// Start launches the long poller. Idempotent.
func (t *TelegramBell) Start() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.running {
		return
	}
	t.running = true
	go t.bot.Start()
	t.log.Info("telegram bell started", logx.Int64("chat_id", t.cfg.ChatID))
}

func (t *TelegramBell) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.bot.Stop()
}

func (t *TelegramBell) register(h Handlers) {
	if h.Dismiss != nil {
		t.bot.Handle("/dismiss", func(c tele.Context) error {
			if !t.allowed(c) {
				return nil
			}
			answer := ""
			if m := c.Message(); m != nil {
				answer = strings.TrimSpace(m.Payload)
			}
			return c.Send(h.Dismiss(answer))
		})
	}
	if h.Schedule != nil {
		t.bot.Handle("/schedule", func(c tele.Context) error {
			if !t.allowed(c) {
				return nil
			}
			return c.Send(h.Schedule())
		})
	}
	if h.Stats != nil {
		t.bot.Handle("/stats", func(c tele.Context) error {
			if !t.allowed(c) {
				return nil
			}
			return c.Send(h.Stats())
		})
	}
}

// allowed restricts commands to the configured chat.
func (t *TelegramBell) allowed(c tele.Context) bool {
	ch := c.Chat()
	if ch == nil || ch.ID != t.cfg.ChatID {
		t.log.Debug("command from foreign chat ignored")
		return false
	}
	return true
}
