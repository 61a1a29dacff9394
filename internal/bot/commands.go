package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/infra/notify"
	"github.com/Spok95/homestock/internal/infra/sheets"
)

const maxWorkbook = 8 << 20

const helpText = `/stale [days] - products not rechecked lately, with a workbook to fill in
/use <product id> <amount> - record consumption
/set <product id> <quantity> - set the counted quantity
Send the filled workbook back to apply it.`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)

	case "stale":
		days := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				b.reply(chatID, "Usage: /stale [days]")
				return
			}
			days = n
		}
		b.sendStale(ctx, chatID, days)

	case "use":
		id, amount, ok := productAmount(args)
		if !ok || !amount.IsPositive() {
			b.reply(chatID, "Usage: /use <product id> <amount>")
			return
		}
		if _, err := b.ledger.RecordAdjustment(ctx, id, amount.Neg(), stock.ReasonConsumed); err != nil {
			b.reply(chatID, b.userError(err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Recorded %s used of product %d.", amount, id))

	case "set":
		id, qty, ok := productAmount(args)
		if !ok {
			b.reply(chatID, "Usage: /set <product id> <quantity>")
			return
		}
		snap, err := b.ledger.SetQuantity(ctx, id, qty, stock.ModeExact, stock.BucketNone)
		if err != nil {
			b.reply(chatID, b.userError(err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Product %d now at %s.", id, snap.Quantity))

	default:
		b.reply(chatID, "Unknown command.\n"+helpText)
	}
}

func productAmount(args []string) (int64, decimal.Decimal, bool) {
	if len(args) != 2 {
		return 0, decimal.Zero, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", "."))
	if err != nil {
		return 0, decimal.Zero, false
	}
	return id, v, true
}

// sendStale posts the stale summary with a confirm-all button, followed by
// the recheck workbook.
func (b *Bot) sendStale(ctx context.Context, chatID int64, days int) {
	sess, err := b.recheck.Start(ctx, days)
	if err != nil {
		b.reply(chatID, b.userError(err))
		return
	}
	if len(sess.Entries) == 0 {
		b.reply(chatID, fmt.Sprintf("Everything was rechecked within %d days.", sess.HorizonDays))
		return
	}

	m := tgbotapi.NewMessage(chatID, notify.StaleText(sess.Entries, sess.HorizonDays))
	m.ReplyMarkup = staleKeyboard(sess.HorizonDays)
	b.send(m)

	names := map[int64]string{}
	if b.categories != nil {
		cats, err := b.categories.ListCategories(ctx)
		if err != nil {
			b.log.Warn("categories unavailable for workbook", "err", err)
		}
		for _, c := range cats {
			names[c.ID] = c.Name
		}
	}
	data, err := sheets.ExportRecheck(sess.Entries, names)
	if err != nil {
		b.log.Error("export recheck workbook", "err", err)
		b.reply(chatID, "Could not build the workbook.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("recheck_%s.xlsx", b.now().Format("20060102_150405")),
		Bytes: data,
	})
	doc.Caption = "Fill in the counted column (and new_status if needed), then send the file back."
	b.send(doc)
}

func (b *Bot) handleWorkbook(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !strings.HasSuffix(strings.ToLower(msg.Document.FileName), ".xlsx") {
		b.reply(chatID, "Please send the .xlsx workbook from /stale.")
		return
	}
	data, err := b.downloadFile(ctx, msg.Document.FileID)
	if err != nil {
		b.log.Error("download workbook", "err", err)
		b.reply(chatID, "Could not download the file from Telegram.")
		return
	}
	pre, post, err := sheets.ImportRecheck(data)
	if err != nil {
		b.reply(chatID, b.userError(err))
		return
	}
	res, err := b.recheck.Complete(ctx, pre, post)
	if err != nil {
		b.reply(chatID, b.userError(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Recheck saved: %d updated, %d confirmed unchanged.",
		len(res.Plan.Writes), res.Touched))
}

func (b *Bot) onCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	action, arg, _ := strings.Cut(cq.Data, ":")
	switch action {
	case cbTouchAll:
		days, _ := strconv.Atoi(arg)
		sess, err := b.recheck.Start(ctx, days)
		if err != nil {
			b.answer(cq.ID, b.userError(err))
			return
		}
		ids := make([]int64, 0, len(sess.Entries))
		for _, e := range sess.Entries {
			ids = append(ids, e.Product.ID)
		}
		n, err := b.ledger.Touch(ctx, ids)
		if err != nil {
			b.answer(cq.ID, b.userError(err))
			return
		}
		b.answer(cq.ID, "Done")
		b.editTextAndClear(chatID, cq.Message.MessageID, fmt.Sprintf("Marked %d product(s) as still accurate.", n))
	default:
		b.answer(cq.ID, "")
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("answer callback failed", "err", err)
	}
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

// userError turns a domain error into a chat reply. Storage failures are
// logged and reported generically.
func (b *Bot) userError(err error) string {
	var (
		ve *errs.ValidationError
		ce *errs.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return "Invalid input: " + ve.Msg
	case errs.IsNotFound(err):
		return err.Error()
	case errors.As(err, &ce):
		return fmt.Sprintf("These products changed since the workbook was made: %v. Send /stale for a fresh one.", ce.ProductIDs)
	default:
		b.log.Error("bot request failed", "err", err)
		return "Something went wrong, try again later."
	}
}
