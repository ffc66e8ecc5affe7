package conversation

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
)

const leaderboardSize = 10

const welcomeTemplate = `✨ <b>Welcome to File Rename Bot, %s!</b> ✨

This bot renames your files with custom formats and adds thumbnails.

<b>Features:</b>
• ⚡ Fast file renaming
• 🖼️ Custom thumbnail support
• 📝 Custom captions
• 📊 Leaderboard system
• 🔢 Sequence mode for batches

<b>Use /tutorial to learn more!</b>`

const helpText = `📚 <b>Available Commands</b>

<b>Renaming:</b>
/autorename - Set auto rename format
/showformat - View your format
/start_sequence - Start collecting files
/end_sequence - Rename collected files in order
/cancel - Cancel the pending prompt

<b>Thumbnail &amp; Caption:</b>
/setthumb - Set thumbnail
/viewthumb - View thumbnail
/delthumb - Delete thumbnail
/set_caption - Set custom caption
/see_caption - View caption
/del_caption - Delete caption

<b>Prefix/Suffix:</b>
/set_prefix, /see_prefix, /del_prefix
/set_suffix, /see_suffix, /del_suffix

<b>Other:</b>
/metadata - View metadata
/leaderboard - View leaderboard
/status - Bot status
/ping - Check the bot
/tutorial - Usage guide

<b>Admin Commands:</b>
/add_admin, /deladmin, /admins
/ban, /unban, /banned
/addchnl, /delchnl, /listchnl
/broadcast - Message every user`

const aboutText = `ℹ️ <b>About File Rename Bot</b>

Send any document or video and get it back under the name your format describes, with your caption and thumbnail attached.

Your settings are stored per account and apply to every file you send.`

const tutorialText = `📖 <b>How to Use File Rename Bot</b>

<b>Basic Steps:</b>
1. Set a format with /autorename
2. Send your file to the bot
3. Download the renamed file

<b>Setting Format:</b>
Example: <code>S{season}E{episode} - {title}</code>
Season and episode are read from names like <code>Show.S01E05.mkv</code>.

<b>Thumbnails:</b>
Use /setthumb and send an image. It is attached to every renamed file.

<b>Custom Caption:</b>
Use /set_caption to add a caption to files.

<b>Sequence Mode:</b>
1. Use /start_sequence
2. Send multiple files
3. Use /end_sequence when done
4. All files are sent back in order`

func startKeyboard() Keyboard {
	return Keyboard{
		row(button(consts.ButtonHelp, consts.CallbackHelp), button(consts.ButtonTutorial, consts.CallbackTutorial)),
		row(button(consts.ButtonLeaderboard, consts.CallbackLeaderboard), button(consts.ButtonAbout, consts.CallbackAbout)),
	}
}

func homeKeyboard() Keyboard {
	return Keyboard{row(button(consts.ButtonBackHome, consts.CallbackBackHome))}
}

func welcomeText(u User) string {
	return fmt.Sprintf(welcomeTemplate, escape(displayName(u)))
}

func displayName(u User) string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return fmt.Sprintf("User %d", u.ID)
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}

// showLeaderboard sends, or edits into editID, the top renamers plus the
// caller's own position.
func (r *Router) showLeaderboard(ctx context.Context, userID int64, editID int) error {
	entries, err := r.store.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		return r.fail(ctx, userID, "leaderboard", err)
	}
	rank, err := r.store.RankOf(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "rank_of", err)
	}
	var own int64
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "get_user", err)
	}
	if user != nil {
		own = user.RenameCount
	}

	return r.send(ctx, userID, Message{
		Text: renderLeaderboard(entries, rank, own),
		Keyboard: Keyboard{
			row(button(consts.ButtonRefresh, consts.CallbackRefreshLeaderboard)),
			row(button(consts.ButtonBackHome, consts.CallbackBackHome)),
		},
		EditID: editID,
	})
}

func renderLeaderboard(entries []database.LeaderboardEntry, rank int, own int64) string {
	if len(entries) == 0 {
		return "📊 No renames yet! Be the first."
	}

	var b strings.Builder
	b.WriteString("🏆 <b>File Rename Leaderboard</b>\n\n")
	medals := []string{consts.EmojiGold, consts.EmojiSilver, consts.EmojiBronze}
	for _, e := range entries {
		marker := fmt.Sprintf("%d.", e.Rank)
		if e.Rank >= 1 && e.Rank <= len(medals) {
			marker = medals[e.Rank-1]
		}
		fmt.Fprintf(&b, "%s %s - %d files\n", marker, escape(e.DisplayName()), e.RenameCount)
	}

	b.WriteString("\n")
	if rank > 0 {
		fmt.Fprintf(&b, "📍 Your position: #%d with %d files", rank, own)
	} else {
		b.WriteString("📍 You haven't renamed any files yet.")
	}
	return b.String()
}
