package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autorename/autorename/internal/conversation"
	"github.com/autorename/autorename/internal/database"
)

// toEvent converts a private-chat update. Group traffic, edits and service
// messages report ok=false.
func toEvent(update tgbotapi.Update, botUsername string) (conversation.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil || !cb.Message.Chat.IsPrivate() {
			return nil, false
		}
		return conversation.ButtonPress{
			From:      toUser(cb.From),
			Data:      cb.Data,
			MessageID: cb.Message.MessageID,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil, false
	}
	from := toUser(msg.From)

	switch {
	case msg.IsCommand():
		if mention := commandMention(msg); mention != "" && !strings.EqualFold(mention, botUsername) {
			return nil, false
		}
		return conversation.Command{
			From: from,
			Name: strings.ToLower(msg.Command()),
			Args: msg.CommandArguments(),
		}, true

	case msg.Document != nil:
		d := msg.Document
		return conversation.Document{From: from, File: database.FileRef{
			FileID:       d.FileID,
			FileUniqueID: d.FileUniqueID,
			FileName:     d.FileName,
			MimeType:     d.MimeType,
			FileSize:     int64(d.FileSize),
			Kind:         database.KindDocument,
		}}, true

	case msg.Video != nil:
		v := msg.Video
		return conversation.Video{From: from, File: database.FileRef{
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			FileName:     v.FileName,
			MimeType:     v.MimeType,
			FileSize:     int64(v.FileSize),
			Kind:         database.KindVideo,
		}}, true

	case len(msg.Photo) > 0:
		// sizes are ascending; the last is the original
		p := msg.Photo[len(msg.Photo)-1]
		return conversation.Photo{From: from, FileID: p.FileID, FileUniqueID: p.FileUniqueID}, true

	case msg.Text != "":
		return conversation.Text{From: from, Body: msg.Text}, true
	}

	return nil, false
}

func toUser(u *tgbotapi.User) conversation.User {
	return conversation.User{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

// commandMention returns the "bot" in "/cmd@bot", or "".
func commandMention(msg *tgbotapi.Message) string {
	full := msg.CommandWithAt()
	if i := strings.IndexByte(full, '@'); i >= 0 {
		return full[i+1:]
	}
	return ""
}
