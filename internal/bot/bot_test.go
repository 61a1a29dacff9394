package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/recheck"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/domain/stock/stocktest"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	callbacks []tgbotapi.CallbackConfig
	fileURL   string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) { return f.fileURL, nil }

func (f *fakeAPI) texts() []string {
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func setup(t *testing.T, chats ...int64) (*Bot, *fakeAPI, *stocktest.Store) {
	t.Helper()
	st := stocktest.NewStore()
	clock := func() time.Time { return now }
	ledger := stock.NewLedger(st, nil, stock.WithClock(clock))
	engine := reconcile.NewEngine(st, nil, reconcile.WithClock(clock))
	for id := int64(1); id <= 3; id++ {
		st.AddProduct(stock.ProductRef{ID: id, Name: "product"})
		snap := stock.NewSnapshot(id, now.AddDate(0, 0, -40))
		snap.Quantity = decimal.NewFromInt(5)
		st.PutSnapshot(snap)
	}
	api := &fakeAPI{}
	b := New(api, nil, ledger, recheck.NewService(ledger, engine, 30, nil), nil, chats)
	b.now = clock
	return b, api, st
}

func command(chatID int64, text string) tgbotapi.Update {
	name, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func TestStaleCommand_SendsSummaryAndWorkbook(t *testing.T) {
	b, api, _ := setup(t)
	b.handle(context.Background(), command(10, "/stale"))

	if len(api.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(api.sent))
	}
	m, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok || !strings.HasPrefix(m.Text, "3 product(s)") {
		t.Fatalf("unexpected summary %+v", api.sent[0])
	}
	if _, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatalf("summary has no keyboard")
	}
	doc, ok := api.sent[1].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("expected a document, got %T", api.sent[1])
	}
	if fb := doc.File.(tgbotapi.FileBytes); fb.Name != "recheck_20250310_080000.xlsx" || len(fb.Bytes) == 0 {
		t.Fatalf("unexpected attachment %s (%d bytes)", fb.Name, len(fb.Bytes))
	}

	b.handle(context.Background(), command(10, "/stale 60"))
	if !strings.HasPrefix(api.last(), "Everything was rechecked within 60 days") {
		t.Fatalf("reply = %q", api.last())
	}
}

func TestUseAndSet(t *testing.T) {
	b, api, st := setup(t)
	ctx := context.Background()

	b.handle(ctx, command(10, "/use 1 2"))
	if s, _ := st.GetSnapshot(1); !s.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("quantity = %s (reply %q)", s.Quantity, api.last())
	}
	b.handle(ctx, command(10, "/set 2 7,5"))
	if s, _ := st.GetSnapshot(2); !s.Quantity.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("quantity = %s (reply %q)", s.Quantity, api.last())
	}
	b.handle(ctx, command(10, "/use 1 -2"))
	if !strings.HasPrefix(api.last(), "Usage") {
		t.Fatalf("reply = %q", api.last())
	}
	b.handle(ctx, command(10, "/use 99 1"))
	if !strings.Contains(api.last(), "not found") {
		t.Fatalf("reply = %q", api.last())
	}
}

func TestTouchAllCallback(t *testing.T) {
	b, api, st := setup(t)
	b.handle(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q1",
		Data:    cbTouchAll + ":30",
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: 10}},
	}})
	if len(api.callbacks) != 1 || api.callbacks[0].Text != "Done" {
		t.Fatalf("callbacks = %+v", api.callbacks)
	}
	if api.last() != "Marked 3 product(s) as still accurate." {
		t.Fatalf("reply = %q", api.last())
	}
	if s, _ := st.GetSnapshot(3); !s.LastUpdated.Equal(now) {
		t.Fatalf("not touched: %v", s.LastUpdated)
	}
}

func TestWorkbookUpload(t *testing.T) {
	b, api, st := setup(t)
	ctx := context.Background()
	b.handle(ctx, command(10, "/stale"))
	workbook := api.sent[1].(tgbotapi.DocumentConfig).File.(tgbotapi.FileBytes).Bytes

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(workbook)
	}))
	defer srv.Close()
	api.fileURL = srv.URL

	b.handle(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 10},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "recheck.XLSX"},
	}})
	if api.last() != "Recheck saved: 0 updated, 3 confirmed unchanged." {
		t.Fatalf("reply = %q", api.last())
	}
	if s, _ := st.GetSnapshot(1); !s.LastUpdated.Equal(now) {
		t.Fatalf("not touched: %v", s.LastUpdated)
	}

	b.handle(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 10},
		Document: &tgbotapi.Document{FileID: "f2", FileName: "notes.txt"},
	}})
	if !strings.HasPrefix(api.last(), "Please send the .xlsx") {
		t.Fatalf("reply = %q", api.last())
	}
}

func TestUnknownChatIgnored(t *testing.T) {
	b, api, _ := setup(t, 10)
	b.handle(context.Background(), command(11, "/stale"))
	if len(api.sent) != 0 {
		t.Fatalf("answered a foreign chat: %d messages", len(api.sent))
	}
}
