package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autorename/autorename/internal/conversation"
	"github.com/autorename/autorename/internal/database"
)

const testBotName = "AutoRenameBot"

func privateChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func commandMessage(text string, commandLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 42, UserName: "alice", FirstName: "Alice"},
		Chat:      privateChat(42),
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: commandLen}},
	}
}

func TestToEventCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		length   int
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{"plain", "/start", 6, true, "start", ""},
		{"with args", "/set_caption  Hello world ", 12, true, "set_caption", " Hello world "},
		{"upper case", "/Help", 5, true, "help", ""},
		{"own mention", "/ping@AutoRenameBot", 19, true, "ping", ""},
		{"own mention any case", "/ping@autorenamebot", 19, true, "ping", ""},
		{"other bot", "/ping@OtherBot", 14, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := toEvent(tgbotapi.Update{Message: commandMessage(tt.text, tt.length)}, testBotName)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			cmd, isCmd := ev.(conversation.Command)
			if !isCmd {
				t.Fatalf("expected Command, got %T", ev)
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if cmd.Args != tt.wantArgs {
				t.Errorf("Args = %q, want %q", cmd.Args, tt.wantArgs)
			}
			if cmd.From.ID != 42 || cmd.From.Username != "alice" || cmd.From.FirstName != "Alice" {
				t.Errorf("unexpected sender %+v", cmd.From)
			}
		})
	}
}

func TestToEventIgnoresNonPrivateChats(t *testing.T) {
	msg := commandMessage("/start", 6)
	msg.Chat = &tgbotapi.Chat{ID: -5, Type: "group"}

	if _, ok := toEvent(tgbotapi.Update{Message: msg}, testBotName); ok {
		t.Error("group messages should be ignored")
	}

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: -5, Type: "supergroup"}},
		Data:    "help",
	}
	if _, ok := toEvent(tgbotapi.Update{CallbackQuery: cb}, testBotName); ok {
		t.Error("group callbacks should be ignored")
	}
}

func TestToEventIgnoresEmptyUpdates(t *testing.T) {
	if _, ok := toEvent(tgbotapi.Update{}, testBotName); ok {
		t.Error("an update with no payload should be ignored")
	}

	sticker := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 42},
		Chat:    privateChat(42),
		Sticker: &tgbotapi.Sticker{FileID: "s"},
	}
	if _, ok := toEvent(tgbotapi.Update{Message: sticker}, testBotName); ok {
		t.Error("stickers should be ignored")
	}
}

func TestToEventCallback(t *testing.T) {
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 77, Chat: privateChat(42)},
		Data:    "cancel_awaiting_format",
	}

	ev, ok := toEvent(tgbotapi.Update{CallbackQuery: cb}, testBotName)
	if !ok {
		t.Fatal("expected a ButtonPress")
	}
	press, isPress := ev.(conversation.ButtonPress)
	if !isPress {
		t.Fatalf("expected ButtonPress, got %T", ev)
	}
	if press.Data != "cancel_awaiting_format" || press.MessageID != 77 || press.From.ID != 42 {
		t.Errorf("unexpected press %+v", press)
	}
}

func TestToEventFiles(t *testing.T) {
	from := &tgbotapi.User{ID: 42}

	doc := &tgbotapi.Message{From: from, Chat: privateChat(42), Document: &tgbotapi.Document{
		FileID:       "doc-id",
		FileUniqueID: "doc-u",
		FileName:     "Show.S01E02.mkv",
		MimeType:     "video/x-matroska",
		FileSize:     1024,
	}}
	ev, ok := toEvent(tgbotapi.Update{Message: doc}, testBotName)
	if !ok {
		t.Fatal("expected a Document event")
	}
	d, isDoc := ev.(conversation.Document)
	if !isDoc {
		t.Fatalf("expected Document, got %T", ev)
	}
	want := database.FileRef{
		FileID:       "doc-id",
		FileUniqueID: "doc-u",
		FileName:     "Show.S01E02.mkv",
		MimeType:     "video/x-matroska",
		FileSize:     1024,
		Kind:         database.KindDocument,
	}
	if d.File != want {
		t.Errorf("File = %+v, want %+v", d.File, want)
	}

	vid := &tgbotapi.Message{From: from, Chat: privateChat(42), Video: &tgbotapi.Video{
		FileID:   "vid-id",
		FileName: "clip.mp4",
		FileSize: 2048,
	}}
	ev, ok = toEvent(tgbotapi.Update{Message: vid}, testBotName)
	if !ok {
		t.Fatal("expected a Video event")
	}
	v, isVideo := ev.(conversation.Video)
	if !isVideo {
		t.Fatalf("expected Video, got %T", ev)
	}
	if v.File.Kind != database.KindVideo || v.File.FileName != "clip.mp4" || v.File.FileSize != 2048 {
		t.Errorf("unexpected video ref %+v", v.File)
	}
}

func TestToEventPhotoTakesLargestSize(t *testing.T) {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: privateChat(42),
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileUniqueID: "s", Width: 90},
			{FileID: "medium", FileUniqueID: "m", Width: 320},
			{FileID: "large", FileUniqueID: "l", Width: 1280},
		},
	}

	ev, ok := toEvent(tgbotapi.Update{Message: msg}, testBotName)
	if !ok {
		t.Fatal("expected a Photo event")
	}
	p, isPhoto := ev.(conversation.Photo)
	if !isPhoto {
		t.Fatalf("expected Photo, got %T", ev)
	}
	if p.FileID != "large" || p.FileUniqueID != "l" {
		t.Errorf("expected the largest size, got %+v", p)
	}
}

func TestToEventText(t *testing.T) {
	msg := &tgbotapi.Message{From: &tgbotapi.User{ID: 42}, Chat: privateChat(42), Text: "{title} [{quality}]"}

	ev, ok := toEvent(tgbotapi.Update{Message: msg}, testBotName)
	if !ok {
		t.Fatal("expected a Text event")
	}
	text, isText := ev.(conversation.Text)
	if !isText {
		t.Fatalf("expected Text, got %T", ev)
	}
	if text.Body != "{title} [{quality}]" {
		t.Errorf("Body = %q", text.Body)
	}
}

func TestToMarkup(t *testing.T) {
	if toMarkup(nil) != nil {
		t.Error("an empty keyboard should produce no markup")
	}

	kb := conversation.Keyboard{
		{{Text: "Help", Data: "help"}, {Text: "About", Data: "about"}},
		{{Text: "Cancel", Data: "cancel_awaiting_caption"}},
	}
	markup := toMarkup(kb)
	if markup == nil {
		t.Fatal("expected markup")
	}
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected layout %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[1][0]
	if btn.Text != "Cancel" || btn.CallbackData == nil || *btn.CallbackData != "cancel_awaiting_caption" {
		t.Errorf("unexpected button %+v", btn)
	}
}

func TestUserRateLimiterReuse(t *testing.T) {
	b := newBot(&tgbotapi.BotAPI{})
	defer b.callbacks.Close()
	defer b.thumbnails.Close()

	first := b.getUserRateLimiter(1)
	if first != b.getUserRateLimiter(1) {
		t.Error("the same chat should reuse its limiter")
	}
	if first == b.getUserRateLimiter(2) {
		t.Error("different chats should get separate limiters")
	}
	if first.Burst() != 20 {
		t.Errorf("Burst = %d, want 20", first.Burst())
	}
}

func TestCallbackDedup(t *testing.T) {
	b := newBot(&tgbotapi.BotAPI{})
	defer b.callbacks.Close()
	defer b.thumbnails.Close()

	if !b.callbacks.SetIfAbsent("cb-1", struct{}{}, callbackDedupWindow) {
		t.Fatal("first delivery should be accepted")
	}
	if b.callbacks.SetIfAbsent("cb-1", struct{}{}, callbackDedupWindow) {
		t.Error("a redelivered callback should be rejected")
	}
	if !b.callbacks.SetIfAbsent("cb-2", struct{}{}, time.Second) {
		t.Error("a different callback should be accepted")
	}
}

func TestGetWorkerPoolStatsBeforeStart(t *testing.T) {
	b := newBot(&tgbotapi.BotAPI{})
	defer b.callbacks.Close()
	defer b.thumbnails.Close()

	if got := b.GetWorkerPoolStats()["worker_pool"]; got != "not initialized" {
		t.Errorf("expected an uninitialized pool, got %v", got)
	}
}
