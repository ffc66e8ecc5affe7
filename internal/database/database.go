package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autorename/autorename/internal/logger"
	_ "github.com/lib/pq"
)

var _ Store = (*DB)(nil)

// DB is the PostgreSQL-backed Store.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.InfoMsg("Database connection established successfully")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close(ctx context.Context) error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) initTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		username VARCHAR(255) NOT NULL DEFAULT '',
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		rename_count BIGINT NOT NULL DEFAULT 0,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_users_rename_count ON users(rename_count DESC, user_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id BIGINT PRIMARY KEY,
		format TEXT,
		caption TEXT,
		prefix TEXT,
		suffix TEXT,
		thumb_file_id TEXT,
		thumb_unique_id TEXT,
		thumb_updated_at TIMESTAMP WITH TIME ZONE,
		meta_title TEXT,
		meta_author TEXT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS admins (
		user_id BIGINT PRIMARY KEY,
		added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS force_sub_channels (
		username VARCHAR(255) PRIMARY KEY,
		added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sequences (
		user_id BIGINT PRIMARY KEY,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		files JSONB NOT NULL DEFAULT '[]',
		started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMP WITH TIME ZONE
	);
	`

	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return err
	}

	// Columns added after the first release
	migrations := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS first_name VARCHAR(255) NOT NULL DEFAULT ''`,
		`ALTER TABLE sequences ADD COLUMN IF NOT EXISTS ended_at TIMESTAMP WITH TIME ZONE`,
	}
	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("failed to apply migration %q: %w", m, err)
		}
	}

	return nil
}

// Users

func (db *DB) UpsertUser(ctx context.Context, p Profile) error {
	query := `
	INSERT INTO users (user_id, username, first_name, joined_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE SET
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name
	`
	_, err := db.conn.ExecContext(ctx, query, p.UserID, p.Username, p.FirstName, time.Now())
	return unavailable("upsert user", err)
}

func (db *DB) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
	SELECT user_id, username, first_name, joined_at, rename_count, is_banned
	FROM users
	WHERE user_id = $1
	`

	user := &User{}
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &user.FirstName,
		&user.JoinedAt, &user.RenameCount, &user.IsBanned,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return user, nil
}

func (db *DB) IncrementRenameCount(ctx context.Context, userID int64) error {
	query := `
	INSERT INTO users (user_id, rename_count, joined_at)
	VALUES ($1, 1, $2)
	ON CONFLICT (user_id) DO UPDATE SET
		rename_count = users.rename_count + 1
	`
	_, err := db.conn.ExecContext(ctx, query, userID, time.Now())
	return unavailable("increment rename count", err)
}

func (db *DB) SetBanned(ctx context.Context, userID int64, banned bool) error {
	query := `
	INSERT INTO users (user_id, is_banned, joined_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET
		is_banned = EXCLUDED.is_banned
	`
	_, err := db.conn.ExecContext(ctx, query, userID, banned, time.Now())
	return unavailable("set ban flag", err)
}

func (db *DB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var banned bool
	err := db.conn.QueryRowContext(ctx, `SELECT is_banned FROM users WHERE user_id = $1`, userID).Scan(&banned)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, unavailable("check ban flag", err)
	}
	return banned, nil
}

func (db *DB) ListBanned(ctx context.Context) ([]int64, error) {
	return db.queryIDs(ctx, "list banned users",
		`SELECT user_id FROM users WHERE is_banned ORDER BY user_id`)
}

func (db *DB) ListUserIDs(ctx context.Context, limit int64) ([]int64, error) {
	return db.queryIDs(ctx, "list users",
		`SELECT user_id FROM users ORDER BY user_id LIMIT $1`, limit)
}

func (db *DB) queryIDs(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return ids, nil
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, unavailable("count users", err)
	}
	return n, nil
}

func (db *DB) Leaderboard(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	query := `
	SELECT user_id, username, first_name, rename_count
	FROM users
	WHERE rename_count > 0
	ORDER BY rename_count DESC, user_id ASC
	LIMIT $1
	`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, unavailable("load leaderboard", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		e := LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.FirstName, &e.RenameCount); err != nil {
			return nil, unavailable("load leaderboard", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load leaderboard", err)
	}
	return entries, nil
}

func (db *DB) RankOf(ctx context.Context, userID int64) (int, error) {
	query := `
	SELECT COUNT(*) + 1
	FROM users o, users me
	WHERE me.user_id = $1
	  AND (o.rename_count > me.rename_count
	       OR (o.rename_count = me.rename_count AND o.user_id < me.user_id))
	`
	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT rename_count FROM users WHERE user_id = $1`, userID).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, unavailable("rank user", err)
	}
	if count == 0 {
		return 0, nil
	}

	var rank int
	if err := db.conn.QueryRowContext(ctx, query, userID).Scan(&rank); err != nil {
		return 0, unavailable("rank user", err)
	}
	return rank, nil
}

// Settings. Every field is its own nullable column so writes to different
// fields never overwrite each other.

var textColumns = map[string]bool{
	"format":  true,
	"caption": true,
	"prefix":  true,
	"suffix":  true,
}

func (db *DB) getText(ctx context.Context, column string, userID int64) (string, bool, error) {
	if !textColumns[column] {
		return "", false, fmt.Errorf("unknown settings column %q", column)
	}
	var v sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+column+` FROM user_settings WHERE user_id = $1`, userID).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get "+column, err)
	}
	return v.String, v.Valid, nil
}

func (db *DB) setText(ctx context.Context, column string, userID int64, value string) error {
	if !textColumns[column] {
		return fmt.Errorf("unknown settings column %q", column)
	}
	query := `
	INSERT INTO user_settings (user_id, ` + column + `, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET
		` + column + ` = EXCLUDED.` + column + `,
		updated_at = EXCLUDED.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query, userID, value, time.Now())
	return unavailable("set "+column, err)
}

func (db *DB) clearText(ctx context.Context, column string, userID int64) (bool, error) {
	if !textColumns[column] {
		return false, fmt.Errorf("unknown settings column %q", column)
	}
	result, err := db.conn.ExecContext(ctx,
		`UPDATE user_settings SET `+column+` = NULL, updated_at = $2 WHERE user_id = $1 AND `+column+` IS NOT NULL`,
		userID, time.Now())
	if err != nil {
		return false, unavailable("delete "+column, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("delete "+column, err)
	}
	return rowsAffected > 0, nil
}

func (db *DB) GetFormat(ctx context.Context, userID int64) (string, bool, error) {
	return db.getText(ctx, "format", userID)
}

func (db *DB) SetFormat(ctx context.Context, userID int64, format string) error {
	return db.setText(ctx, "format", userID, format)
}

func (db *DB) GetCaption(ctx context.Context, userID int64) (string, bool, error) {
	return db.getText(ctx, "caption", userID)
}

func (db *DB) SetCaption(ctx context.Context, userID int64, caption string) error {
	return db.setText(ctx, "caption", userID, caption)
}

func (db *DB) DeleteCaption(ctx context.Context, userID int64) (bool, error) {
	return db.clearText(ctx, "caption", userID)
}

func (db *DB) GetAffix(ctx context.Context, userID int64, kind AffixKind) (string, bool, error) {
	return db.getText(ctx, string(kind), userID)
}

func (db *DB) SetAffix(ctx context.Context, userID int64, kind AffixKind, value string) error {
	return db.setText(ctx, string(kind), userID, value)
}

func (db *DB) DeleteAffix(ctx context.Context, userID int64, kind AffixKind) (bool, error) {
	return db.clearText(ctx, string(kind), userID)
}

func (db *DB) GetThumbnail(ctx context.Context, userID int64) (*Thumbnail, error) {
	query := `
	SELECT thumb_file_id, thumb_unique_id, thumb_updated_at
	FROM user_settings
	WHERE user_id = $1 AND thumb_file_id IS NOT NULL
	`
	var uniqueID sql.NullString
	var updatedAt sql.NullTime
	thumb := &Thumbnail{}
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&thumb.FileID, &uniqueID, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get thumbnail", err)
	}
	thumb.FileUniqueID = uniqueID.String
	thumb.UpdatedAt = updatedAt.Time
	return thumb, nil
}

func (db *DB) SetThumbnail(ctx context.Context, userID int64, thumb Thumbnail) error {
	if thumb.UpdatedAt.IsZero() {
		thumb.UpdatedAt = time.Now()
	}
	query := `
	INSERT INTO user_settings (user_id, thumb_file_id, thumb_unique_id, thumb_updated_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (user_id) DO UPDATE SET
		thumb_file_id = EXCLUDED.thumb_file_id,
		thumb_unique_id = EXCLUDED.thumb_unique_id,
		thumb_updated_at = EXCLUDED.thumb_updated_at,
		updated_at = EXCLUDED.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query, userID, thumb.FileID, thumb.FileUniqueID, thumb.UpdatedAt)
	return unavailable("set thumbnail", err)
}

func (db *DB) DeleteThumbnail(ctx context.Context, userID int64) (bool, error) {
	query := `
	UPDATE user_settings
	SET thumb_file_id = NULL, thumb_unique_id = NULL, thumb_updated_at = NULL, updated_at = $2
	WHERE user_id = $1 AND thumb_file_id IS NOT NULL
	`
	return db.execAffected(ctx, "delete thumbnail", query, userID, time.Now())
}

func (db *DB) GetMetadata(ctx context.Context, userID int64) (Metadata, error) {
	var title, author sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT meta_title, meta_author FROM user_settings WHERE user_id = $1`, userID).Scan(&title, &author)
	if err == sql.ErrNoRows {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, unavailable("get metadata", err)
	}
	return Metadata{Title: title.String, Author: author.String}, nil
}

func (db *DB) UpdateMetadata(ctx context.Context, userID int64, patch MetadataPatch) error {
	// COALESCE keeps the stored value for fields absent from the patch.
	query := `
	INSERT INTO user_settings (user_id, meta_title, meta_author, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE SET
		meta_title = COALESCE($2, user_settings.meta_title),
		meta_author = COALESCE($3, user_settings.meta_author),
		updated_at = EXCLUDED.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query, userID, nullable(patch.Title), nullable(patch.Author), time.Now())
	return unavailable("update metadata", err)
}

func (db *DB) ClearMetadata(ctx context.Context, userID int64) (bool, error) {
	query := `
	UPDATE user_settings
	SET meta_title = NULL, meta_author = NULL, updated_at = $2
	WHERE user_id = $1
	  AND (COALESCE(meta_title, '') <> '' OR COALESCE(meta_author, '') <> '')
	`
	return db.execAffected(ctx, "clear metadata", query, userID, time.Now())
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (db *DB) execAffected(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, unavailable(op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(op, err)
	}
	return rowsAffected > 0, nil
}

// Admins

func (db *DB) AddAdmin(ctx context.Context, userID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO admins (user_id, added_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, time.Now())
	return unavailable("add admin", err)
}

func (db *DB) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	return db.execAffected(ctx, "remove admin", `DELETE FROM admins WHERE user_id = $1`, userID)
}

func (db *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, unavailable("check admin", err)
	}
	return exists, nil
}

func (db *DB) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT user_id, added_at FROM admins ORDER BY added_at, user_id`)
	if err != nil {
		return nil, unavailable("list admins", err)
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.UserID, &a.AddedAt); err != nil {
			return nil, unavailable("list admins", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list admins", err)
	}
	return admins, nil
}

// Channels

func (db *DB) AddChannel(ctx context.Context, username string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO force_sub_channels (username, added_at) VALUES ($1, $2) ON CONFLICT (username) DO NOTHING`,
		NormalizeChannel(username), time.Now())
	return unavailable("add channel", err)
}

func (db *DB) RemoveChannel(ctx context.Context, username string) (bool, error) {
	return db.execAffected(ctx, "remove channel",
		`DELETE FROM force_sub_channels WHERE username = $1`, NormalizeChannel(username))
}

func (db *DB) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT username FROM force_sub_channels ORDER BY username`)
	if err != nil {
		return nil, unavailable("list channels", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, unavailable("list channels", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list channels", err)
	}
	return names, nil
}

// Sequences. Items live in a JSONB array; appends use the || operator so two
// writers never lose each other's items.

func (db *DB) StartSequence(ctx context.Context, userID int64) error {
	query := `
	INSERT INTO sequences (user_id, is_active, files, started_at, ended_at)
	VALUES ($1, TRUE, '[]', $2, NULL)
	ON CONFLICT (user_id) DO UPDATE SET
		is_active = TRUE,
		files = '[]',
		started_at = EXCLUDED.started_at,
		ended_at = NULL
	`
	_, err := db.conn.ExecContext(ctx, query, userID, time.Now())
	return unavailable("start sequence", err)
}

func (db *DB) AppendSequence(ctx context.Context, userID int64, item FileRef) (bool, error) {
	payload, err := json.Marshal([]FileRef{item})
	if err != nil {
		return false, fmt.Errorf("failed to encode sequence item: %w", err)
	}
	return db.execAffected(ctx, "append sequence item",
		`UPDATE sequences SET files = files || $2::jsonb WHERE user_id = $1 AND is_active`,
		userID, string(payload))
}

func (db *DB) EndSequence(ctx context.Context, userID int64) ([]FileRef, bool, error) {
	query := `
	UPDATE sequences
	SET is_active = FALSE, ended_at = $2
	WHERE user_id = $1 AND is_active
	RETURNING files
	`
	var raw []byte
	err := db.conn.QueryRowContext(ctx, query, userID, time.Now()).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("end sequence", err)
	}

	var items []FileRef
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, true, fmt.Errorf("failed to decode sequence items: %w", err)
	}
	return items, true, nil
}

func (db *DB) GetSequence(ctx context.Context, userID int64) (*Sequence, error) {
	var raw []byte
	seq := &Sequence{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT is_active, files, started_at FROM sequences WHERE user_id = $1`, userID,
	).Scan(&seq.Active, &raw, &seq.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get sequence", err)
	}
	if err := json.Unmarshal(raw, &seq.Items); err != nil {
		return nil, fmt.Errorf("failed to decode sequence items: %w", err)
	}
	return seq, nil
}
