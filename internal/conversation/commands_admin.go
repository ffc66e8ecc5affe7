package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/logger"
)

func (r *Router) listAdmins(ctx context.Context, userID int64) error {
	admins, err := r.store.ListAdmins(ctx)
	if err != nil {
		return r.fail(ctx, userID, "list_admins", err)
	}

	var b strings.Builder
	b.WriteString("👮 <b>Admins</b>\n\n")
	fmt.Fprintf(&b, "👑 Owner: <code>%d</code>\n", r.gate.OwnerID())
	if len(admins) == 0 {
		b.WriteString("\nNo other admins.")
	}
	for i, a := range admins {
		fmt.Fprintf(&b, "%d. <code>%d</code>\n", i+1, a.UserID)
	}
	return r.sendLong(ctx, userID, b.String(), nil)
}

func (r *Router) listBanned(ctx context.Context, userID int64) error {
	ids, err := r.store.ListBanned(ctx)
	if err != nil {
		return r.fail(ctx, userID, "list_banned", err)
	}
	if len(ids) == 0 {
		return r.reply(ctx, userID, "✅ No banned users.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚫 <b>Banned Users (%d)</b>\n\n", len(ids))
	for i, id := range ids {
		fmt.Fprintf(&b, "%d. <code>%d</code>\n", i+1, id)
	}
	return r.sendLong(ctx, userID, b.String(), nil)
}

func (r *Router) listChannels(ctx context.Context, userID int64) error {
	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		return r.fail(ctx, userID, "list_channels", err)
	}
	if len(channels) == 0 {
		return r.reply(ctx, userID, "📢 No force subscribe channels.\n\nAdd one with /addchnl.")
	}

	var b strings.Builder
	b.WriteString("📢 <b>Force Subscribe Channels</b>\n\n")
	for i, ch := range channels {
		fmt.Fprintf(&b, "%d. @%s\n", i+1, escape(ch))
	}
	return r.sendLong(ctx, userID, b.String(), nil)
}

func (r *Router) chooseChannelToRemove(ctx context.Context, userID int64) error {
	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		return r.fail(ctx, userID, "list_channels", err)
	}
	if len(channels) == 0 {
		return r.reply(ctx, userID, "📢 No force subscribe channels to remove.")
	}

	kb := make(Keyboard, 0, len(channels))
	for _, ch := range channels {
		kb = append(kb, row(button("❌ @"+ch, consts.CallbackRemoveChannelPrefix+ch)))
	}
	return r.send(ctx, userID, Message{Text: "📢 <b>Select a channel to remove:</b>", Keyboard: kb})
}

func (r *Router) removeChannel(ctx context.Context, e ButtonPress, channel string) error {
	if ok, err := r.authorize(ctx, e.From.ID); !ok {
		return err
	}

	removed, err := r.store.RemoveChannel(ctx, channel)
	if err != nil {
		return r.fail(ctx, e.From.ID, "remove_channel", err)
	}
	if !removed {
		return r.send(ctx, e.From.ID, Message{Text: fmt.Sprintf("❌ Channel @%s is not in the list.", escape(channel)), EditID: e.MessageID})
	}

	logger.Info("Force sub channel removed", map[string]interface{}{
		"user_id": e.From.ID,
		"channel": channel,
	})
	r.audit.Recordf(ctx, e.From.ID, "Removed force sub channel: %s", channel)
	return r.send(ctx, e.From.ID, Message{Text: fmt.Sprintf("✅ Channel @%s removed!", escape(channel)), EditID: e.MessageID})
}
