package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/session"
)

// Commands that start a flow. With an argument, the value is stored at once.
var flowCommands = map[string]session.Flow{
	"autorename":  session.FlowFormat,
	"set_caption": session.FlowCaption,
	"set_prefix":  session.FlowPrefix,
	"set_suffix":  session.FlowSuffix,
	"setthumb":    session.FlowThumbnail,
	"add_admin":   session.FlowAddAdmin,
	"deladmin":    session.FlowRemoveAdmin,
	"ban":         session.FlowBan,
	"unban":       session.FlowUnban,
	"addchnl":     session.FlowAddChannel,
	"broadcast":   session.FlowBroadcast,
}

// Privileged commands that do not start a flow.
var adminCommands = map[string]bool{
	"admins":   true,
	"banned":   true,
	"listchnl": true,
	"delchnl":  true,
}

func (r *Router) handleCommand(ctx context.Context, c Command) error {
	logger.Debug("Handling command", map[string]interface{}{
		"user_id": c.From.ID,
		"command": c.Name,
	})

	if flow, ok := flowCommands[c.Name]; ok {
		return r.handleFlowCommand(ctx, c, flow)
	}

	if adminCommands[c.Name] {
		if ok, err := r.authorize(ctx, c.From.ID); !ok {
			return err
		}
	}

	switch c.Name {
	case "start":
		return r.handleStart(ctx, c.From)
	case "help":
		return r.send(ctx, c.From.ID, Message{Text: helpText, Keyboard: homeKeyboard()})
	case "about":
		return r.send(ctx, c.From.ID, Message{Text: aboutText, Keyboard: homeKeyboard()})
	case "tutorial":
		return r.send(ctx, c.From.ID, Message{Text: tutorialText, Keyboard: Keyboard{row(button(consts.ButtonStartNow, consts.CallbackBackHome))}})
	case "ping":
		return r.reply(ctx, c.From.ID, "🏓 Pong!")
	case "status":
		return r.handleStatus(ctx, c.From.ID)
	case "leaderboard":
		return r.showLeaderboard(ctx, c.From.ID, 0)
	case "cancel":
		return r.handleCancel(ctx, c.From.ID)

	// settings
	case "showformat":
		return r.showFormat(ctx, c.From.ID)
	case "see_caption":
		return r.showCaption(ctx, c.From.ID)
	case "del_caption":
		return r.deleteCaption(ctx, c.From.ID, 0)
	case "see_prefix":
		return r.showAffix(ctx, c.From.ID, database.Prefix)
	case "del_prefix":
		return r.deleteAffix(ctx, c.From.ID, database.Prefix, 0)
	case "see_suffix":
		return r.showAffix(ctx, c.From.ID, database.Suffix)
	case "del_suffix":
		return r.deleteAffix(ctx, c.From.ID, database.Suffix, 0)
	case "viewthumb":
		return r.showThumbnail(ctx, c.From.ID)
	case "delthumb":
		return r.deleteThumbnail(ctx, c.From.ID)
	case "metadata":
		return r.showMetadata(ctx, c.From.ID)

	// sequences
	case "start_sequence":
		return r.startSequence(ctx, c.From.ID)
	case "end_sequence":
		return r.endSequence(ctx, c.From)

	// admin
	case "admins":
		return r.listAdmins(ctx, c.From.ID)
	case "banned":
		return r.listBanned(ctx, c.From.ID)
	case "listchnl":
		return r.listChannels(ctx, c.From.ID)
	case "delchnl":
		return r.chooseChannelToRemove(ctx, c.From.ID)

	default:
		return r.reply(ctx, c.From.ID, consts.ErrorUnknownCommand)
	}
}

func (r *Router) handleFlowCommand(ctx context.Context, c Command, flow session.Flow) error {
	if flow.Privileged() {
		if ok, err := r.authorize(ctx, c.From.ID); !ok {
			return err
		}
	}

	if strings.TrimSpace(c.Args) == "" || flow.Awaits() != session.InputText {
		return r.beginFlow(ctx, c.From.ID, flow)
	}

	out, err := r.applyText(ctx, c.From, flow, c.Args)
	if err != nil {
		return r.fail(ctx, c.From.ID, flow.String(), err)
	}
	logger.Info("Setting stored inline", map[string]interface{}{
		"user_id": c.From.ID,
		"flow":    flow.String(),
		"outcome": "saved",
	})
	return r.deliverOutcome(ctx, c.From.ID, out)
}

func (r *Router) handleCancel(ctx context.Context, userID int64) error {
	s, ok := r.sessions.Cancel(userID)
	if !ok {
		return r.reply(ctx, userID, consts.SuccessNothing)
	}
	r.metrics.RecordFlow(s.Flow.String(), "cancel")
	logger.Info("Flow cancelled", map[string]interface{}{
		"user_id": userID,
		"flow":    s.Flow.String(),
		"outcome": "cancelled",
	})
	return r.reply(ctx, userID, consts.SuccessCancelled)
}

func (r *Router) handleStart(ctx context.Context, u User) error {
	existing, err := r.store.GetUser(ctx, u.ID)
	if err != nil {
		return r.fail(ctx, u.ID, "get_user", err)
	}
	if err := r.store.UpsertUser(ctx, u.profile()); err != nil {
		return r.fail(ctx, u.ID, "upsert_user", err)
	}
	if existing == nil {
		logger.Info("New user registered", map[string]interface{}{
			"user_id":  u.ID,
			"username": u.Username,
		})
		r.audit.Recordf(ctx, u.ID, "New user started the bot: %s", displayName(u))
	}

	text := welcomeText(u)
	if r.startPic != "" {
		err := r.sender.SendPhoto(ctx, u.ID, PhotoMessage{FileID: r.startPic, Caption: text, Keyboard: startKeyboard()})
		if err == nil {
			return nil
		}
		logger.Warn("Failed to send start picture", map[string]interface{}{
			"user_id": u.ID,
			"error":   err.Error(),
		})
	}
	return r.send(ctx, u.ID, Message{Text: text, Keyboard: startKeyboard()})
}

func (r *Router) handleStatus(ctx context.Context, userID int64) error {
	users, err := r.store.CountUsers(ctx)
	if err != nil {
		return r.fail(ctx, userID, "count_users", err)
	}
	var renamed int64
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_user", err)
	}
	if user != nil {
		renamed = user.RenameCount
	}

	text := fmt.Sprintf(`🤖 <b>Bot Status</b>

✅ Bot is running smoothly!

<b>Statistics:</b>
• Users: %d
• Pending prompts: %d
• Your files renamed: %d`, users, r.sessions.Len(), renamed)
	return r.reply(ctx, userID, text)
}
