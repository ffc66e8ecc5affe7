package conversation

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/session"
)

var flowPrompts = map[session.Flow]string{
	session.FlowFormat: `📝 <b>Set Your Auto-Rename Format</b>

Use these variables in your format:
• <code>{season}</code> - Season number
• <code>{episode}</code> - Episode number
• <code>{title}</code> - Original file name
• <code>{quality}</code> - Video quality
• <code>{audio}</code> - Audio type

<b>Examples:</b>
<code>S{season}E{episode} - {title}</code>
<code>{title} ({quality})</code>

Send your desired format as a message.`,
	session.FlowCaption: `📝 <b>Set Your Custom Caption</b>

Send the caption to attach to every renamed file. Markdown works: <code>*bold*</code>, <code>_italic_</code>, <code>` + "`code`" + `</code>.`,
	session.FlowPrefix: `📝 <b>Set Your Prefix</b>

Send the text to put at the start of every renamed file.
Example: prefix <code>[HD]</code> turns <code>movie.mp4</code> into <code>[HD]movie.mp4</code>. Spaces are kept as sent.`,
	session.FlowSuffix: `📝 <b>Set Your Suffix</b>

Send the text to put at the end of every renamed file, before the extension.
Example: suffix <code>_final</code> turns <code>movie.mp4</code> into <code>movie_final.mp4</code>.`,
	session.FlowTitle:       "✏️ <b>Set Metadata Title</b>\n\nSend the title:",
	session.FlowAuthor:      "✏️ <b>Set Metadata Author</b>\n\nSend the author:",
	session.FlowThumbnail:   "📸 <b>Send a Photo for Thumbnail</b>\n\nSend any image and I'll use it as the thumbnail for all your renamed files.\n\nRecommended: 320x180 pixels or a similar aspect ratio.",
	session.FlowAddAdmin:    "👮 <b>Add Admin</b>\n\nSend the user ID to promote:",
	session.FlowRemoveAdmin: "👮 <b>Remove Admin</b>\n\nSend the user ID to demote:",
	session.FlowBan:         "🚫 <b>Ban User</b>\n\nSend the user ID to ban:",
	session.FlowUnban:       "✅ <b>Unban User</b>\n\nSend the user ID to unban:",
	session.FlowAddChannel:  "📢 <b>Add Force Subscribe Channel</b>\n\nSend the channel username, for example <code>mychannel</code>:",
	session.FlowBroadcast:   "📢 <b>Broadcast Message</b>\n\nSend the message you want to broadcast to all users:",
}

func cancelData(flow session.Flow) string {
	return consts.CallbackCancelPrefix + flow.String()
}

// beginFlow records flow as the user's pending action and prompts for input.
// Any other pending flow is dropped.
func (r *Router) beginFlow(ctx context.Context, userID int64, flow session.Flow) error {
	_, replaced := r.sessions.Begin(userID, flow)
	if replaced != nil {
		r.metrics.RecordFlow(replaced.Flow.String(), "replaced")
		logger.Debug("Pending flow replaced", map[string]interface{}{
			"user_id":  userID,
			"previous": replaced.Flow.String(),
			"flow":     flow.String(),
		})
	}
	r.metrics.RecordFlow(flow.String(), "begin")

	return r.send(ctx, userID, Message{
		Text:     flowPrompts[flow],
		Keyboard: cancelKeyboard(cancelData(flow)),
	})
}

// handleText completes a pending text flow. Text with no matching flow is
// left for nobody; it is not an error.
func (r *Router) handleText(ctx context.Context, e Text) error {
	s, ok := r.sessions.Peek(e.From.ID)
	if !ok || s.Awaiting != session.InputText {
		return nil
	}

	if s.Flow.Privileged() {
		ok, err := r.gate.IsAuthorized(ctx, e.From.ID)
		if err != nil {
			return r.fail(ctx, e.From.ID, "is_authorized", err)
		}
		if !ok {
			r.sessions.Complete(e.From.ID, s)
			r.metrics.RecordFlow(s.Flow.String(), "denied")
			return r.fail(ctx, e.From.ID, "", ErrNotAuthorized)
		}
	}

	out, err := r.applyText(ctx, e.From, s.Flow, e.Body)
	if err != nil {
		// session stays pending so the user can retry
		return r.fail(ctx, e.From.ID, s.Flow.String(), err)
	}
	r.completeFlow(e.From.ID, s)
	return r.deliverOutcome(ctx, e.From.ID, out)
}

// handlePhoto completes a pending thumbnail flow. Other photos are ignored.
func (r *Router) handlePhoto(ctx context.Context, e Photo) error {
	s, ok := r.sessions.Peek(e.From.ID)
	if !ok || s.Awaiting != session.InputPhoto {
		return nil
	}

	thumb := database.Thumbnail{
		FileID:       e.FileID,
		FileUniqueID: e.FileUniqueID,
		UpdatedAt:    time.Now(),
	}
	if err := r.store.SetThumbnail(ctx, e.From.ID, thumb); err != nil {
		return r.fail(ctx, e.From.ID, "set_thumbnail", err)
	}
	r.completeFlow(e.From.ID, s)

	return r.deliverOutcome(ctx, e.From.ID, outcome{
		reply: "✅ Thumbnail saved successfully!\n\n📁 This image will be used for all your renamed files.",
		audit: "User set thumbnail",
	})
}

func (r *Router) completeFlow(userID int64, s session.Session) {
	if !r.sessions.Complete(userID, s) {
		logger.Warn("Flow was replaced before completion", map[string]interface{}{
			"user_id": userID,
			"flow":    s.Flow.String(),
		})
	}
	r.metrics.RecordFlow(s.Flow.String(), "complete")
	logger.Info("Flow completed", map[string]interface{}{
		"user_id": userID,
		"flow":    s.Flow.String(),
		"outcome": "saved",
	})
}

// cancelFlow handles a cancel button. Only the flow the button was created
// for is cancelled.
func (r *Router) cancelFlow(ctx context.Context, e ButtonPress, name string) error {
	flow, ok := session.ParseFlow(name)
	if !ok || !r.sessions.CancelFlow(e.From.ID, flow) {
		return r.send(ctx, e.From.ID, Message{Text: consts.ErrorExpiredButton, EditID: e.MessageID})
	}
	r.metrics.RecordFlow(flow.String(), "cancel")
	logger.Info("Flow cancelled", map[string]interface{}{
		"user_id": e.From.ID,
		"flow":    flow.String(),
		"outcome": "cancelled",
	})
	return r.send(ctx, e.From.ID, Message{Text: consts.SuccessCancelled, EditID: e.MessageID})
}

// outcome is the visible result of a successful write.
type outcome struct {
	reply string
	audit string
	// after runs once the reply is sent
	after func()
}

func (r *Router) deliverOutcome(ctx context.Context, userID int64, out outcome) error {
	err := r.reply(ctx, userID, out.reply)
	if out.audit != "" {
		r.audit.Record(ctx, userID, out.audit)
	}
	if out.after != nil {
		out.after()
	}
	return err
}

// applyText performs the write a text flow stands for. It is shared by the
// flow path and the inline "/command value" form.
func (r *Router) applyText(ctx context.Context, u User, flow session.Flow, input string) (outcome, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return outcome{}, validation(consts.ErrorEmptyInput)
	}

	switch flow {
	case session.FlowFormat:
		if err := r.store.SetFormat(ctx, u.ID, text); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ Format saved: <code>%s</code>", html.EscapeString(text)),
			audit: fmt.Sprintf("Set rename format: %s", text),
		}, nil

	case session.FlowCaption:
		// sent with legacy Markdown, so it has to parse
		if !markdownParses(text) {
			return outcome{}, validation(consts.ErrorInvalidCaption)
		}
		if err := r.store.SetCaption(ctx, u.ID, text); err != nil {
			return outcome{}, err
		}
		return outcome{reply: "✅ Caption saved successfully!", audit: "User set caption"}, nil

	case session.FlowPrefix, session.FlowSuffix:
		kind := database.Prefix
		if flow == session.FlowSuffix {
			kind = database.Suffix
		}
		// stored verbatim so a separator such as "[HD] " survives
		if err := r.store.SetAffix(ctx, u.ID, kind, input); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ %s saved: <code>%s</code>", affixLabel(kind), html.EscapeString(input)),
			audit: fmt.Sprintf("Set %s: %q", kind, input),
		}, nil

	case session.FlowTitle, session.FlowAuthor:
		patch := database.MetadataPatch{Title: &text}
		label := "Title"
		if flow == session.FlowAuthor {
			patch = database.MetadataPatch{Author: &text}
			label = "Author"
		}
		if err := r.store.UpdateMetadata(ctx, u.ID, patch); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ %s saved: <code>%s</code>", label, html.EscapeString(text)),
			audit: fmt.Sprintf("Set metadata %s", strings.ToLower(label)),
		}, nil

	case session.FlowAddAdmin:
		id, err := parseUserID(text)
		if err != nil {
			return outcome{}, err
		}
		if err := r.store.AddAdmin(ctx, id); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ User <code>%d</code> is now an admin!", id),
			audit: fmt.Sprintf("Added admin: %d", id),
		}, nil

	case session.FlowRemoveAdmin:
		id, err := parseUserID(text)
		if err != nil {
			return outcome{}, err
		}
		removed, err := r.store.RemoveAdmin(ctx, id)
		if err != nil {
			return outcome{}, err
		}
		if !removed {
			return outcome{reply: consts.ErrorNotAnAdmin}, nil
		}
		return outcome{
			reply: fmt.Sprintf("✅ User <code>%d</code> is no longer an admin!", id),
			audit: fmt.Sprintf("Removed admin: %d", id),
		}, nil

	case session.FlowBan:
		id, err := parseUserID(text)
		if err != nil {
			return outcome{}, err
		}
		if r.gate.IsOwner(id) {
			return outcome{}, validation(consts.ErrorCannotBanOwner)
		}
		if err := r.store.SetBanned(ctx, id, true); err != nil {
			return outcome{}, err
		}
		if s, ok := r.sessions.Cancel(id); ok {
			r.metrics.RecordFlow(s.Flow.String(), "banned")
		}
		return outcome{
			reply: fmt.Sprintf("✅ User <code>%d</code> has been banned!", id),
			audit: fmt.Sprintf("Banned user: %d", id),
		}, nil

	case session.FlowUnban:
		id, err := parseUserID(text)
		if err != nil {
			return outcome{}, err
		}
		if err := r.store.SetBanned(ctx, id, false); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ User <code>%d</code> has been unbanned!", id),
			audit: fmt.Sprintf("Unbanned user: %d", id),
		}, nil

	case session.FlowAddChannel:
		channel := database.NormalizeChannel(text)
		if channel == "" {
			return outcome{}, validation(consts.ErrorEmptyInput)
		}
		if err := r.store.AddChannel(ctx, channel); err != nil {
			return outcome{}, err
		}
		return outcome{
			reply: fmt.Sprintf("✅ Channel @%s added for force subscribe!", html.EscapeString(channel)),
			audit: fmt.Sprintf("Added force sub channel: %s", channel),
		}, nil

	case session.FlowBroadcast:
		return outcome{
			reply: "📢 Broadcasting message...",
			after: func() { r.startBroadcast(u.ID, input) },
		}, nil
	}

	return outcome{}, fmt.Errorf("flow %s does not take text", flow)
}

func parseUserID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation(consts.ErrorInvalidUserID)
	}
	return id, nil
}

func affixLabel(kind database.AffixKind) string {
	if kind == database.Suffix {
		return "Suffix"
	}
	return "Prefix"
}
