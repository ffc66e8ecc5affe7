package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/conversation"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
)

// maxThumbnailBytes is the platform limit for a document thumbnail.
const maxThumbnailBytes = 200 * 1024

func toMarkup(kb conversation.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, btn := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, row)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// Send renders an HTML reply. An edit that the platform refuses falls back to
// a new message.
func (b *Bot) Send(ctx context.Context, chatID int64, m conversation.Message) error {
	markup := toMarkup(m.Keyboard)

	if m.EditID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, m.EditID, m.Text)
		edit.ParseMode = consts.ParseModeHTML
		edit.ReplyMarkup = markup
		_, err := b.rateLimitedSend(ctx, chatID, edit)
		if err == nil || isNotModified(err) {
			return nil
		}
		logger.Debug("Edit failed, sending new message", map[string]interface{}{
			"chat_id":    chatID,
			"message_id": m.EditID,
			"error":      err.Error(),
		})
	}

	msg := tgbotapi.NewMessage(chatID, m.Text)
	msg.ParseMode = consts.ParseModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := b.rateLimitedSend(ctx, chatID, msg); err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
		return err
	}
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

// SendPhoto re-sends a stored photo by file id.
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, p conversation.PhotoMessage) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
	photo.Caption = p.Caption
	photo.ParseMode = consts.ParseModeHTML
	if markup := toMarkup(p.Keyboard); markup != nil {
		photo.ReplyMarkup = *markup
	}
	if _, err := b.rateLimitedSend(ctx, chatID, photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// SendText sends plain text without any parse mode.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := b.rateLimitedSend(ctx, chatID, tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// Post writes an audit line to a channel.
func (b *Bot) Post(ctx context.Context, chatID int64, text string) error {
	return b.SendText(ctx, chatID, text)
}

// Deliver streams the original file back under its new name. The caption is
// Markdown; the thumbnail is attached when it can be fetched.
func (b *Bot) Deliver(ctx context.Context, chatID int64, d conversation.Delivery) error {
	body, err := b.openFile(ctx, d.File.FileID)
	if err != nil {
		return err
	}
	defer body.Close()

	upload := tgbotapi.FileReader{Name: d.FileName, Reader: body}

	var thumb tgbotapi.RequestFileData
	if d.Thumbnail != nil {
		if data, err := b.thumbnailBytes(ctx, d.Thumbnail); err != nil {
			logger.Warn("Sending without thumbnail", map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		} else {
			thumb = tgbotapi.FileBytes{Name: "thumb.jpg", Bytes: data}
		}
	}

	var c tgbotapi.Chattable
	if d.File.Kind == database.KindVideo {
		v := tgbotapi.NewVideo(chatID, upload)
		v.Caption = d.Caption
		v.ParseMode = consts.ParseModeMarkdown
		v.SupportsStreaming = true
		v.Thumb = thumb
		c = v
	} else {
		doc := tgbotapi.NewDocument(chatID, upload)
		doc.Caption = d.Caption
		doc.ParseMode = consts.ParseModeMarkdown
		doc.Thumb = thumb
		c = doc
	}

	if _, err := b.rateLimitedSend(ctx, chatID, c); err != nil {
		return fmt.Errorf("failed to upload renamed file: %w", err)
	}
	logger.Debug("Renamed file uploaded", map[string]interface{}{
		"chat_id":   chatID,
		"file_name": d.FileName,
		"kind":      string(d.File.Kind),
	})
	return nil
}

// openFile starts a download of a platform file. The caller closes the body.
func (b *Bot) openFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// thumbnailBytes downloads a stored thumbnail, caching it by unique id.
func (b *Bot) thumbnailBytes(ctx context.Context, t *database.Thumbnail) ([]byte, error) {
	key := t.FileUniqueID
	if key == "" {
		key = t.FileID
	}
	if data, ok := b.thumbnails.Get(key); ok {
		return data, nil
	}

	body, err := b.openFile(ctx, t.FileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxThumbnailBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) > maxThumbnailBytes {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", maxThumbnailBytes)
	}

	b.thumbnails.Set(key, data)
	return data, nil
}
