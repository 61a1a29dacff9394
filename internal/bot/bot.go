// Package bot is the Telegram front end of the guided recheck: it lists
// stale products, hands out the recheck workbook and applies it when the
// filled copy comes back.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/homestock/internal/domain/catalog"
	"github.com/Spok95/homestock/internal/domain/recheck"
	"github.com/Spok95/homestock/internal/domain/stock"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
}

type CategoryLister interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
}

type Bot struct {
	api        API
	log        *slog.Logger
	ledger     *stock.Ledger
	recheck    *recheck.Service
	categories CategoryLister
	allowed    map[int64]bool
	client     *http.Client
	now        func() time.Time
}

// New builds a bot that answers only the given chats; with no chats it
// answers everyone.
func New(api API, log *slog.Logger, ledger *stock.Ledger, rc *recheck.Service, categories CategoryLister, chats []int64) *Bot {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	allowed := map[int64]bool{}
	for _, id := range chats {
		if id != 0 {
			allowed[id] = true
		}
	}
	return &Bot{
		api: api, log: log, ledger: ledger, recheck: rc, categories: categories,
		allowed: allowed, client: &http.Client{Timeout: 30 * time.Second}, now: time.Now,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, upd)
		}
	}
}

func (b *Bot) handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		if !b.permitted(upd.Message.Chat.ID) {
			return
		}
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		if !b.permitted(upd.CallbackQuery.Message.Chat.ID) {
			return
		}
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) permitted(chatID int64) bool {
	if len(b.allowed) == 0 || b.allowed[chatID] {
		return true
	}
	b.log.Warn("message from unknown chat ignored", "chat_id", chatID)
	return false
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Document != nil:
		b.handleWorkbook(ctx, msg)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// downloadFile fetches an uploaded file by its Telegram file id.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxWorkbook))
}
