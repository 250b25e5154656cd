// ABOUTME: Long-polling Telegram frontend that feeds updates to the turn engine
// ABOUTME: Keeps per-chat delivery order and turns Instructions into Bot API calls

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vistly/vistly-bot/internal/bot"
	"github.com/vistly/vistly-bot/internal/render"
)

// DefaultPollTimeout is the getUpdates long-poll duration
const DefaultPollTimeout = 30 * time.Second

// networkTimeout is added to the poll timeout to bound each Bot API call
const networkTimeout = 15 * time.Second

// retryDelay is the pause after a failed getUpdates call
const retryDelay = 3 * time.Second

// API is the subset of *tgbotapi.BotAPI the frontend needs
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler runs one conversation turn
type Handler interface {
	HandleEvent(ctx context.Context, in bot.Inbound) render.Instruction
}

// Options configures a Frontend
type Options struct {
	// BotUsername is stripped from "/cmd@bot" commands in group chats
	BotUsername string
	PollTimeout time.Duration
	Logger      *slog.Logger
}

// Frontend polls Telegram and replies through the Bot API
type Frontend struct {
	api         API
	handler     Handler
	botUsername string
	pollTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
	wg      sync.WaitGroup
}

// Dial authenticates token against the Bot API. The HTTP client deadline
// leaves room for a full long-poll.
func Dial(token string, pollTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	client := &http.Client{Timeout: pollTimeout + networkTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return api, nil
}

// New creates a frontend over api
func New(api API, handler Handler, opts Options) *Frontend {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Frontend{
		api:         api,
		handler:     handler,
		botUsername: strings.TrimPrefix(opts.BotUsername, "@"),
		pollTimeout: opts.PollTimeout,
		retryDelay:  retryDelay,
		logger:      opts.Logger.With("component", "telegram"),
		pending:     make(map[int64][]tgbotapi.Update),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight turns.
// A poll in progress finishes its long-poll before Run returns.
func (f *Frontend) Run(ctx context.Context) error {
	f.logger.Info("starting telegram long polling", "poll_timeout", f.pollTimeout)
	defer f.wg.Wait()

	offset := 0
	for {
		if ctx.Err() != nil {
			f.logger.Info("stopping telegram frontend")
			return nil
		}

		cfg := tgbotapi.NewUpdate(offset)
		cfg.Timeout = int(f.pollTimeout / time.Second)
		cfg.AllowedUpdates = []string{"message", "callback_query"}

		updates, err := f.api.GetUpdates(cfg)
		if err != nil {
			f.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(f.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			f.enqueue(ctx, u)
		}
	}
}

func chatOf(u tgbotapi.Update) (int64, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, true
	}
	return 0, false
}

// enqueue appends u to its chat's queue and starts a drainer when the chat
// has none running.
func (f *Frontend) enqueue(ctx context.Context, u tgbotapi.Update) {
	chatID, ok := chatOf(u)
	if !ok {
		if u.CallbackQuery != nil {
			f.answer(u.CallbackQuery.ID, render.Instruction{})
		}
		return
	}

	f.mu.Lock()
	queue, running := f.pending[chatID]
	f.pending[chatID] = append(queue, u)
	f.mu.Unlock()

	if !running {
		f.wg.Add(1)
		go f.drain(ctx, chatID)
	}
}

func (f *Frontend) drain(ctx context.Context, chatID int64) {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		queue := f.pending[chatID]
		if len(queue) == 0 {
			delete(f.pending, chatID)
			f.mu.Unlock()
			return
		}
		u := queue[0]
		f.pending[chatID] = queue[1:]
		f.mu.Unlock()

		f.process(ctx, u)
	}
}

func (f *Frontend) process(ctx context.Context, u tgbotapi.Update) {
	in, ok := toInbound(u, f.botUsername)
	if !ok {
		if u.CallbackQuery != nil {
			f.answer(u.CallbackQuery.ID, render.Instruction{})
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	reply := f.handler.HandleEvent(ctx, in)
	chatID, _ := strconv.ParseInt(in.ConversationID, 10, 64)
	if u.CallbackQuery != nil {
		f.replyToPress(chatID, u.CallbackQuery, reply)
		return
	}
	f.replyToMessage(chatID, reply)
}

func (f *Frontend) replyToMessage(chatID int64, in render.Instruction) {
	switch in.Kind {
	case render.NoOp:
	case render.Acknowledge:
		if in.Notice != "" {
			f.send(tgbotapi.NewMessage(chatID, in.Notice))
		}
	default:
		f.show(chatID, in)
	}
}

// replyToPress answers the callback and updates the chat. Text screens
// replace the pressed message in place; anything else replaces it with a
// new message.
func (f *Frontend) replyToPress(chatID int64, cq *tgbotapi.CallbackQuery, in render.Instruction) {
	f.answer(cq.ID, in)

	switch in.Kind {
	case render.NoOp, render.Acknowledge:
		return
	}

	source := cq.Message
	if canEditInPlace(source, in) {
		_, err := f.request(editText(chatID, source.MessageID, in))
		if err == nil || isNotModified(err) {
			return
		}
		f.logger.Debug("edit failed, sending new message", "chat", chatID, "error", err)
	} else if source != nil {
		if _, err := f.request(tgbotapi.NewDeleteMessage(chatID, source.MessageID)); err != nil {
			f.logger.Debug("deleting pressed message", "chat", chatID, "error", err)
		}
	}
	f.show(chatID, in)
}

// show sends in as a new message. A poster Telegram refuses to fetch falls
// back to the caption as text.
func (f *Frontend) show(chatID int64, in render.Instruction) {
	if in.Kind == render.ShowMediaWithCaption && in.MediaURL != "" {
		if err := f.send(photoMessage(chatID, in)); err == nil {
			return
		}
	}
	_ = f.send(textMessage(chatID, in))
}

func (f *Frontend) answer(queryID string, in render.Instruction) {
	if _, err := f.request(callbackAnswer(queryID, in)); err != nil {
		f.logger.Debug("answering callback", "error", err)
	}
}

func (f *Frontend) send(c tgbotapi.Chattable) error {
	_, err := f.api.Send(c)
	if err != nil {
		f.logger.Error("telegram send failed", "error", err)
	}
	return err
}

func (f *Frontend) request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return f.api.Request(c)
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
