// Package notify sends stock reports to Telegram chats.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/homestock/internal/domain/stock"
)

// maxListed caps the product names put into one message.
const maxListed = 20

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	api   Sender
	log   *slog.Logger
	chats []int64
}

// New sends through api to chats. Chat ids of zero are ignored.
func New(api Sender, chats []int64, log *slog.Logger) *Telegram {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	// one message per chat even when configured twice
	seen := map[int64]struct{}{}
	var uniq []int64
	for _, id := range chats {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	return &Telegram{api: api, log: log, chats: uniq}
}

func (t *Telegram) send(msg tgbotapi.Chattable) error {
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send failed", "err", err)
		return err
	}
	return nil
}

// StaleText renders the summary line and the first product names.
func StaleText(entries []stock.Entry, horizonDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d product(s) not rechecked for %d+ days", len(entries), horizonDays)
	for i, e := range entries {
		if i == maxListed {
			fmt.Fprintf(&sb, "\n… and %d more", len(entries)-maxListed)
			break
		}
		fmt.Fprintf(&sb, "\n• %s", e.Product.Name)
	}
	return sb.String()
}

// StaleReport sends the stale summary to every chat, with the recheck
// workbook attached when one is given. It keeps going after a failed chat
// and returns the first error.
func (t *Telegram) StaleReport(_ context.Context, entries []stock.Entry, horizonDays int, workbook []byte, at time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	text := StaleText(entries, horizonDays)
	var first error
	for _, chatID := range t.chats {
		var msg tgbotapi.Chattable
		if len(workbook) > 0 {
			doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
				Name:  fmt.Sprintf("recheck_%s.xlsx", at.Format("20060102_150405")),
				Bytes: workbook,
			})
			doc.Caption = text
			msg = doc
		} else {
			msg = tgbotapi.NewMessage(chatID, text)
		}
		if err := t.send(msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
