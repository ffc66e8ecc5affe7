package conversation

import (
	"context"
	"strings"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/session"
)

// Buttons that open a prompt.
var callbackFlows = map[string]session.Flow{
	consts.CallbackChangeFormat:  session.FlowFormat,
	consts.CallbackChangeCaption: session.FlowCaption,
	consts.CallbackAddCaption:    session.FlowCaption,
	consts.CallbackChangePrefix:  session.FlowPrefix,
	consts.CallbackChangeSuffix:  session.FlowSuffix,
	consts.CallbackUploadThumb:   session.FlowThumbnail,
	consts.CallbackChangeThumb:   session.FlowThumbnail,
	consts.CallbackEditTitle:     session.FlowTitle,
	consts.CallbackAddTitle:      session.FlowTitle,
	consts.CallbackEditAuthor:    session.FlowAuthor,
	consts.CallbackAddAuthor:     session.FlowAuthor,
}

func (r *Router) handleButton(ctx context.Context, e ButtonPress) error {
	logger.Debug("Handling callback", map[string]interface{}{
		"user_id": e.From.ID,
		"data":    e.Data,
	})

	if name, ok := strings.CutPrefix(e.Data, consts.CallbackCancelPrefix); ok {
		return r.cancelFlow(ctx, e, name)
	}
	if channel, ok := strings.CutPrefix(e.Data, consts.CallbackRemoveChannelPrefix); ok {
		return r.removeChannel(ctx, e, channel)
	}
	if flow, ok := callbackFlows[e.Data]; ok {
		return r.beginFlow(ctx, e.From.ID, flow)
	}

	switch e.Data {
	case consts.CallbackHelp:
		return r.send(ctx, e.From.ID, Message{Text: helpText, Keyboard: homeKeyboard(), EditID: e.MessageID})
	case consts.CallbackAbout:
		return r.send(ctx, e.From.ID, Message{Text: aboutText, Keyboard: homeKeyboard(), EditID: e.MessageID})
	case consts.CallbackTutorial:
		return r.send(ctx, e.From.ID, Message{Text: tutorialText, Keyboard: homeKeyboard(), EditID: e.MessageID})
	case consts.CallbackBackHome:
		return r.send(ctx, e.From.ID, Message{
			Text:     welcomeText(e.From),
			Keyboard: startKeyboard(),
			EditID:   e.MessageID,
		})
	case consts.CallbackLeaderboard, consts.CallbackRefreshLeaderboard:
		return r.showLeaderboard(ctx, e.From.ID, e.MessageID)

	case consts.CallbackDelCaption:
		return r.deleteCaption(ctx, e.From.ID, e.MessageID)
	case consts.CallbackDelPrefix:
		return r.deleteAffix(ctx, e.From.ID, database.Prefix, e.MessageID)
	case consts.CallbackDelSuffix:
		return r.deleteAffix(ctx, e.From.ID, database.Suffix, e.MessageID)
	case consts.CallbackDeleteThumb:
		return r.deleteThumbnail(ctx, e.From.ID)
	case consts.CallbackClearMetadata:
		return r.clearMetadata(ctx, e.From.ID, e.MessageID)

	default:
		logger.Warn("Unknown callback data", map[string]interface{}{
			"user_id": e.From.ID,
			"data":    e.Data,
		})
		return r.reply(ctx, e.From.ID, consts.ErrorExpiredButton)
	}
}
