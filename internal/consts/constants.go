package consts

// Button Labels with Emojis
const (
	ButtonCancel       = "❌ Cancel"
	ButtonChange       = "🔄 Change"
	ButtonDelete       = "🗑️ Delete"
	ButtonRefresh      = "🔄 Refresh"
	ButtonBackHome     = "🏠 Back to Home"
	ButtonHelp         = "❓ Help"
	ButtonAbout        = "ℹ️ About"
	ButtonTutorial     = "📖 Tutorial"
	ButtonLeaderboard  = "🏆 Leaderboard"
	ButtonStartNow     = "🚀 Start Now"
	ButtonChangeFormat = "🔄 Change Format"
	ButtonSetCaption   = "➕ Set Caption"
	ButtonSetPrefix    = "➕ Set Prefix"
	ButtonSetSuffix    = "➕ Set Suffix"
	ButtonUploadThumb  = "⬆️ Upload Thumbnail"
	ButtonEditTitle    = "✏️ Title"
	ButtonEditAuthor   = "✏️ Author"
	ButtonAddTitle     = "➕ Add Title"
	ButtonAddAuthor    = "➕ Add Author"
	ButtonClearAll     = "🗑️ Clear All"
)

// Callback data. Values are matched exactly unless they end in "_".
const (
	CallbackHelp               = "help"
	CallbackAbout              = "about"
	CallbackTutorial           = "tutorial"
	CallbackBackHome           = "back_home"
	CallbackLeaderboard        = "leaderboard"
	CallbackRefreshLeaderboard = "refresh_leaderboard"

	CallbackChangeFormat  = "change_format"
	CallbackChangeCaption = "change_caption"
	CallbackAddCaption    = "add_caption"
	CallbackDelCaption    = "del_caption"
	CallbackChangePrefix  = "change_prefix"
	CallbackDelPrefix     = "del_prefix"
	CallbackChangeSuffix  = "change_suffix"
	CallbackDelSuffix     = "del_suffix"
	CallbackUploadThumb   = "upload_thumb"
	CallbackChangeThumb   = "change_thumb"
	CallbackDeleteThumb   = "delete_thumb"
	CallbackEditTitle     = "edit_title"
	CallbackEditAuthor    = "edit_author"
	CallbackAddTitle      = "add_title"
	CallbackAddAuthor     = "add_author"
	CallbackClearMetadata = "clear_metadata"

	CallbackCancelPrefix        = "cancel_"
	CallbackRemoveChannelPrefix = "remove_chnl_"
)

// Common Error Messages
const (
	ErrorBanned             = "❌ You are banned!"
	ErrorPermissionDenied   = "❌ You don't have permission to use this command!"
	ErrorStorageUnavailable = "⚠️ Storage is temporarily unavailable. Please try again in a moment."
	ErrorInvalidUserID      = "❌ Invalid user ID! Send a numeric Telegram user ID."
	ErrorEmptyInput         = "❌ Input cannot be empty. Send it again or press Cancel."
	ErrorNoFormat           = "❌ You haven't set a rename format!\n\nUse /autorename first."
	ErrorNoActiveSequence   = "❌ No active sequence! Use /start_sequence first."
	ErrorFileTooLarge       = "❌ File is too large to rename. Telegram bots can only download files up to 20 MB."
	ErrorInvalidCaption     = "❌ That caption has an unclosed *, _, ` or [ and Telegram would reject it. Close the marker or escape it with \\ and send it again."
	ErrorDeliveryFailed     = "❌ Failed to send the renamed file. Please try again."
	ErrorCannotBanOwner     = "❌ The owner cannot be banned."
	ErrorNotAnAdmin         = "❌ That user is not an admin."
	ErrorUnknownCommand     = "🤔 Unknown command. Use /help to see what I can do."
	ErrorExpiredButton      = "⌛ This button has expired."
)

// Success Messages
const (
	SuccessCancelled = "❌ Cancelled!"
	SuccessNothing   = "ℹ️ Nothing to cancel."
)

// HTML Parse Mode
const (
	ParseModeHTML     = "HTML"
	ParseModeMarkdown = "Markdown"
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

// Bot API limits
const (
	// MaxDownloadSize is the largest file getFile will serve.
	MaxDownloadSize = 20 * 1024 * 1024
	// GlobalSendRate is the bot-wide outbound message budget per second.
	GlobalSendRate = 30
)

// Status Emojis
const (
	EmojiSuccess = "✅"
	EmojiError   = "❌"
	EmojiWarning = "⚠️"
	EmojiGold    = "🥇"
	EmojiSilver  = "🥈"
	EmojiBronze  = "🥉"
)
