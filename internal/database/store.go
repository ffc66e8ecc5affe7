package database

import "context"

// Every method returns an error satisfying errors.Is(err, ErrStorageUnavailable)
// when the backend cannot be reached. "Absent" is never an error: getters
// report it through a bool or a nil pointer, deleters through deleted=false.

// UserStore tracks known users, their counters and ban flags.
type UserStore interface {
	UpsertUser(ctx context.Context, p Profile) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	IncrementRenameCount(ctx context.Context, userID int64) error
	SetBanned(ctx context.Context, userID int64, banned bool) error
	IsBanned(ctx context.Context, userID int64) (bool, error)
	ListBanned(ctx context.Context) ([]int64, error)
	ListUserIDs(ctx context.Context, limit int64) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
	Leaderboard(ctx context.Context, limit int64) ([]LeaderboardEntry, error)
	// RankOf is 1-based; 0 means the user has no renames yet.
	RankOf(ctx context.Context, userID int64) (int, error)
}

// SettingsStore holds the per-field rename configuration.
type SettingsStore interface {
	GetFormat(ctx context.Context, userID int64) (string, bool, error)
	SetFormat(ctx context.Context, userID int64, format string) error

	GetCaption(ctx context.Context, userID int64) (string, bool, error)
	SetCaption(ctx context.Context, userID int64, caption string) error
	DeleteCaption(ctx context.Context, userID int64) (bool, error)

	GetAffix(ctx context.Context, userID int64, kind AffixKind) (string, bool, error)
	SetAffix(ctx context.Context, userID int64, kind AffixKind, value string) error
	DeleteAffix(ctx context.Context, userID int64, kind AffixKind) (bool, error)

	GetThumbnail(ctx context.Context, userID int64) (*Thumbnail, error)
	SetThumbnail(ctx context.Context, userID int64, thumb Thumbnail) error
	DeleteThumbnail(ctx context.Context, userID int64) (bool, error)

	GetMetadata(ctx context.Context, userID int64) (Metadata, error)
	UpdateMetadata(ctx context.Context, userID int64, patch MetadataPatch) error
	ClearMetadata(ctx context.Context, userID int64) (bool, error)
}

// AdminStore is the admin roster. The owner is not stored here.
type AdminStore interface {
	AddAdmin(ctx context.Context, userID int64) error
	RemoveAdmin(ctx context.Context, userID int64) (bool, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	ListAdmins(ctx context.Context) ([]Admin, error)
}

// ChannelStore is the force-subscribe channel list.
type ChannelStore interface {
	AddChannel(ctx context.Context, username string) error
	RemoveChannel(ctx context.Context, username string) (bool, error)
	ListChannels(ctx context.Context) ([]string, error)
}

// SequenceStore persists collected batches.
type SequenceStore interface {
	StartSequence(ctx context.Context, userID int64) error
	// AppendSequence reports appended=false when no sequence is active.
	AppendSequence(ctx context.Context, userID int64, item FileRef) (bool, error)
	// EndSequence reports wasActive=false when nothing was being collected.
	EndSequence(ctx context.Context, userID int64) (items []FileRef, wasActive bool, err error)
	GetSequence(ctx context.Context, userID int64) (*Sequence, error)
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	SettingsStore
	AdminStore
	ChannelStore
	SequenceStore
	Close(ctx context.Context) error
}
