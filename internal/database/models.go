package database

import (
	"fmt"
	"time"
)

// User is a chat participant as seen by the bot.
type User struct {
	UserID      int64     `db:"user_id" json:"user_id" bson:"_id"`
	Username    string    `db:"username" json:"username" bson:"username"`
	FirstName   string    `db:"first_name" json:"first_name" bson:"first_name"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at" bson:"joined_date"`
	RenameCount int64     `db:"rename_count" json:"rename_count" bson:"rename_count"`
	IsBanned    bool      `db:"is_banned" json:"is_banned" bson:"is_banned"`
}

// Profile is the identity data refreshed on every contact.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
}

// DisplayName prefers @username, then first name, then the numeric id.
func (u *User) DisplayName() string {
	return displayName(u.UserID, u.Username, u.FirstName)
}

func displayName(id int64, username, firstName string) string {
	switch {
	case username != "":
		return "@" + username
	case firstName != "":
		return firstName
	default:
		return fmt.Sprintf("User %d", id)
	}
}

// Thumbnail references a stored platform photo.
type Thumbnail struct {
	FileID       string    `db:"file_id" json:"file_id" bson:"file_id"`
	FileUniqueID string    `db:"file_unique_id" json:"file_unique_id" bson:"file_unique_id"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// Metadata holds the optional title and author tags.
type Metadata struct {
	Title  string `json:"title" bson:"title,omitempty"`
	Author string `json:"author" bson:"author,omitempty"`
}

func (m Metadata) IsEmpty() bool {
	return m.Title == "" && m.Author == ""
}

// MetadataPatch is a partial update; nil fields are left untouched.
type MetadataPatch struct {
	Title  *string
	Author *string
}

// AffixKind selects the prefix or suffix slot.
type AffixKind string

const (
	Prefix AffixKind = "prefix"
	Suffix AffixKind = "suffix"
)

func (k AffixKind) Valid() bool {
	return k == Prefix || k == Suffix
}

// FileKind is the media class a file arrived as.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindVideo    FileKind = "video"
)

// FileRef points at an inbound file on the platform.
type FileRef struct {
	FileID       string   `json:"file_id" bson:"file_id"`
	FileUniqueID string   `json:"file_unique_id" bson:"file_unique_id"`
	FileName     string   `json:"file_name" bson:"file_name"`
	MimeType     string   `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	FileSize     int64    `json:"file_size" bson:"file_size"`
	Kind         FileKind `json:"kind" bson:"kind"`
}

// Sequence is the collected batch for one user. Items survive End until the
// next Start.
type Sequence struct {
	Active    bool      `json:"is_active" bson:"is_active"`
	Items     []FileRef `json:"files" bson:"files"`
	StartedAt time.Time `json:"started_at" bson:"started_at"`
}

// Admin is a roster entry.
type Admin struct {
	UserID  int64     `db:"user_id" json:"user_id" bson:"_id"`
	AddedAt time.Time `db:"added_at" json:"added_at" bson:"added_at"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int
	UserID      int64
	Username    string
	FirstName   string
	RenameCount int64
}

func (e LeaderboardEntry) DisplayName() string {
	return displayName(e.UserID, e.Username, e.FirstName)
}
