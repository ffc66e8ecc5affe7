package conversation

import (
	"context"
	"fmt"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
)

func (r *Router) showFormat(ctx context.Context, userID int64) error {
	format, ok, err := r.store.GetFormat(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_format", err)
	}
	if !ok {
		return r.send(ctx, userID, Message{
			Text:     consts.ErrorNoFormat,
			Keyboard: Keyboard{row(button(consts.ButtonChangeFormat, consts.CallbackChangeFormat))},
		})
	}
	return r.send(ctx, userID, Message{
		Text:     fmt.Sprintf("📝 <b>Your Current Format:</b>\n\n<code>%s</code>", escape(format)),
		Keyboard: Keyboard{row(button(consts.ButtonChangeFormat, consts.CallbackChangeFormat))},
	})
}

func (r *Router) showCaption(ctx context.Context, userID int64) error {
	caption, ok, err := r.store.GetCaption(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_caption", err)
	}
	if !ok {
		return r.send(ctx, userID, Message{
			Text:     "❌ You haven't set a custom caption yet!",
			Keyboard: Keyboard{row(button(consts.ButtonSetCaption, consts.CallbackAddCaption))},
		})
	}
	return r.send(ctx, userID, Message{
		Text: fmt.Sprintf("📝 <b>Your Current Caption:</b>\n\n%s", escape(caption)),
		Keyboard: Keyboard{row(
			button(consts.ButtonChange, consts.CallbackChangeCaption),
			button(consts.ButtonDelete, consts.CallbackDelCaption),
		)},
	})
}

func (r *Router) deleteCaption(ctx context.Context, userID int64, editID int) error {
	deleted, err := r.store.DeleteCaption(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "delete_caption", err)
	}
	if !deleted {
		return r.fail(ctx, userID, "delete_caption", nothingToDelete("caption"))
	}
	r.audit.Record(ctx, userID, "User deleted caption")
	return r.send(ctx, userID, Message{Text: "✅ Caption deleted successfully!", EditID: editID})
}

func affixCallbacks(kind database.AffixKind) (set, change, del string) {
	if kind == database.Suffix {
		return consts.ButtonSetSuffix, consts.CallbackChangeSuffix, consts.CallbackDelSuffix
	}
	return consts.ButtonSetPrefix, consts.CallbackChangePrefix, consts.CallbackDelPrefix
}

func (r *Router) showAffix(ctx context.Context, userID int64, kind database.AffixKind) error {
	value, ok, err := r.store.GetAffix(ctx, userID, kind)
	if err != nil {
		return r.fail(ctx, userID, "get_"+string(kind), err)
	}
	setLabel, change, del := affixCallbacks(kind)
	if !ok {
		return r.send(ctx, userID, Message{
			Text:     fmt.Sprintf("❌ You haven't set a %s yet!", kind),
			Keyboard: Keyboard{row(button(setLabel, change))},
		})
	}
	return r.send(ctx, userID, Message{
		Text: fmt.Sprintf("📝 <b>Your Current %s:</b>\n\n<code>%s</code>", affixLabel(kind), escape(value)),
		Keyboard: Keyboard{row(
			button(consts.ButtonChange, change),
			button(consts.ButtonDelete, del),
		)},
	})
}

func (r *Router) deleteAffix(ctx context.Context, userID int64, kind database.AffixKind, editID int) error {
	deleted, err := r.store.DeleteAffix(ctx, userID, kind)
	if err != nil {
		return r.fail(ctx, userID, "delete_"+string(kind), err)
	}
	if !deleted {
		return r.fail(ctx, userID, "delete_"+string(kind), nothingToDelete(string(kind)))
	}
	r.audit.Recordf(ctx, userID, "User deleted %s", kind)
	return r.send(ctx, userID, Message{Text: fmt.Sprintf("✅ %s deleted successfully!", affixLabel(kind)), EditID: editID})
}

func (r *Router) showThumbnail(ctx context.Context, userID int64) error {
	thumb, err := r.store.GetThumbnail(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_thumbnail", err)
	}
	if thumb == nil {
		return r.send(ctx, userID, Message{
			Text:     "❌ You haven't set a thumbnail yet!\n\nSend /setthumb and then a photo.",
			Keyboard: Keyboard{row(button(consts.ButtonUploadThumb, consts.CallbackUploadThumb))},
		})
	}
	return r.sender.SendPhoto(ctx, userID, PhotoMessage{
		FileID:  thumb.FileID,
		Caption: "🖼️ <b>Your Current Thumbnail</b>",
		Keyboard: Keyboard{row(
			button(consts.ButtonChange, consts.CallbackChangeThumb),
			button(consts.ButtonDelete, consts.CallbackDeleteThumb),
		)},
	})
}

// deleteThumbnail always answers with a new message; the preview it may be
// pressed from is a photo.
func (r *Router) deleteThumbnail(ctx context.Context, userID int64) error {
	deleted, err := r.store.DeleteThumbnail(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "delete_thumbnail", err)
	}
	if !deleted {
		return r.fail(ctx, userID, "delete_thumbnail", nothingToDelete("thumbnail"))
	}
	r.audit.Record(ctx, userID, "User deleted thumbnail")
	return r.send(ctx, userID, Message{Text: "✅ Thumbnail deleted successfully!"})
}

func (r *Router) showMetadata(ctx context.Context, userID int64) error {
	return r.renderMetadata(ctx, userID, 0)
}

func (r *Router) renderMetadata(ctx context.Context, userID int64, editID int) error {
	md, err := r.store.GetMetadata(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_metadata", err)
	}
	if md.IsEmpty() {
		return r.send(ctx, userID, Message{
			Text: "❌ No metadata set yet!\n\nUse the buttons below to add metadata:",
			Keyboard: Keyboard{row(
				button(consts.ButtonAddTitle, consts.CallbackAddTitle),
				button(consts.ButtonAddAuthor, consts.CallbackAddAuthor),
			)},
			EditID: editID,
		})
	}
	return r.send(ctx, userID, Message{
		Text: fmt.Sprintf("📋 <b>Your Metadata:</b>\n\n• Title: %s\n• Author: %s",
			orNotSet(md.Title), orNotSet(md.Author)),
		Keyboard: Keyboard{
			row(
				button(consts.ButtonEditTitle, consts.CallbackEditTitle),
				button(consts.ButtonEditAuthor, consts.CallbackEditAuthor),
			),
			row(button(consts.ButtonClearAll, consts.CallbackClearMetadata)),
		},
		EditID: editID,
	})
}

func (r *Router) clearMetadata(ctx context.Context, userID int64, editID int) error {
	cleared, err := r.store.ClearMetadata(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "clear_metadata", err)
	}
	if !cleared {
		return r.fail(ctx, userID, "clear_metadata", nothingToDelete("metadata"))
	}
	r.audit.Record(ctx, userID, "User cleared metadata")
	return r.send(ctx, userID, Message{Text: "✅ Metadata cleared!", EditID: editID})
}

func orNotSet(s string) string {
	if s == "" {
		return "<i>Not set</i>"
	}
	return escape(s)
}
