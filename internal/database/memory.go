package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memSettings struct {
	format, caption, prefix, suffix *string
	thumb                           *Thumbnail
	meta                            Metadata
}

// MemoryStore keeps everything in process memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[int64]*User
	settings  map[int64]*memSettings
	admins    map[int64]time.Time
	channels  map[string]time.Time
	sequences map[int64]*Sequence
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]*User),
		settings:  make(map[int64]*memSettings),
		admins:    make(map[int64]time.Time),
		channels:  make(map[string]time.Time),
		sequences: make(map[int64]*Sequence),
		now:       time.Now,
	}
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// caller holds m.mu
func (m *MemoryStore) user(id int64) *User {
	u, ok := m.users[id]
	if !ok {
		u = &User{UserID: id, JoinedAt: m.now()}
		m.users[id] = u
	}
	return u
}

// caller holds m.mu
func (m *MemoryStore) slot(id int64) *memSettings {
	s, ok := m.settings[id]
	if !ok {
		s = &memSettings{}
		m.settings[id] = s
	}
	return s
}

func (m *MemoryStore) UpsertUser(ctx context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(p.UserID)
	u.Username = p.Username
	u.FirstName = p.FirstName
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) IncrementRenameCount(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).RenameCount++
	return nil
}

func (m *MemoryStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).IsBanned = banned
	return nil
}

func (m *MemoryStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	return ok && u.IsBanned, nil
}

func (m *MemoryStore) ListBanned(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, u := range m.users {
		if u.IsBanned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) ListUserIDs(ctx context.Context, limit int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// ranked returns users with at least one rename, best first. Caller holds m.mu.
func (m *MemoryStore) ranked() []*User {
	var out []*User
	for _, u := range m.users {
		if u.RenameCount > 0 {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RenameCount != out[j].RenameCount {
			return out[i].RenameCount > out[j].RenameCount
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (m *MemoryStore) Leaderboard(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranked := m.ranked()
	if limit > 0 && int64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}
	entries := make([]LeaderboardEntry, 0, len(ranked))
	for i, u := range ranked {
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      u.UserID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			RenameCount: u.RenameCount,
		})
	}
	return entries, nil
}

func (m *MemoryStore) RankOf(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, u := range m.ranked() {
		if u.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func getText(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func (m *MemoryStore) GetFormat(ctx context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[userID]; ok {
		v, ok := getText(s.format)
		return v, ok, nil
	}
	return "", false, nil
}

func (m *MemoryStore) SetFormat(ctx context.Context, userID int64, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot(userID).format = &format
	return nil
}

func (m *MemoryStore) GetCaption(ctx context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[userID]; ok {
		v, ok := getText(s.caption)
		return v, ok, nil
	}
	return "", false, nil
}

func (m *MemoryStore) SetCaption(ctx context.Context, userID int64, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot(userID).caption = &caption
	return nil
}

func (m *MemoryStore) DeleteCaption(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok || s.caption == nil {
		return false, nil
	}
	s.caption = nil
	return true, nil
}

func (s *memSettings) affix(kind AffixKind) **string {
	if kind == Suffix {
		return &s.suffix
	}
	return &s.prefix
}

func (m *MemoryStore) GetAffix(ctx context.Context, userID int64, kind AffixKind) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[userID]; ok {
		v, ok := getText(*s.affix(kind))
		return v, ok, nil
	}
	return "", false, nil
}

func (m *MemoryStore) SetAffix(ctx context.Context, userID int64, kind AffixKind, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.slot(userID).affix(kind) = &value
	return nil
}

func (m *MemoryStore) DeleteAffix(ctx context.Context, userID int64, kind AffixKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok || *s.affix(kind) == nil {
		return false, nil
	}
	*s.affix(kind) = nil
	return true, nil
}

func (m *MemoryStore) GetThumbnail(ctx context.Context, userID int64) (*Thumbnail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[userID]
	if !ok || s.thumb == nil {
		return nil, nil
	}
	cp := *s.thumb
	return &cp, nil
}

func (m *MemoryStore) SetThumbnail(ctx context.Context, userID int64, thumb Thumbnail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if thumb.UpdatedAt.IsZero() {
		thumb.UpdatedAt = m.now()
	}
	m.slot(userID).thumb = &thumb
	return nil
}

func (m *MemoryStore) DeleteThumbnail(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok || s.thumb == nil {
		return false, nil
	}
	s.thumb = nil
	return true, nil
}

func (m *MemoryStore) GetMetadata(ctx context.Context, userID int64) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[userID]; ok {
		return s.meta, nil
	}
	return Metadata{}, nil
}

func (m *MemoryStore) UpdateMetadata(ctx context.Context, userID int64, patch MetadataPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(userID)
	if patch.Title != nil {
		s.meta.Title = *patch.Title
	}
	if patch.Author != nil {
		s.meta.Author = *patch.Author
	}
	return nil
}

func (m *MemoryStore) ClearMetadata(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok || s.meta.IsEmpty() {
		return false, nil
	}
	s.meta = Metadata{}
	return true, nil
}

func (m *MemoryStore) AddAdmin(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[userID]; !ok {
		m.admins[userID] = m.now()
	}
	return nil
}

func (m *MemoryStore) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[userID]; !ok {
		return false, nil
	}
	delete(m.admins, userID)
	return true, nil
}

func (m *MemoryStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[userID]
	return ok, nil
}

func (m *MemoryStore) ListAdmins(ctx context.Context) ([]Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admins := make([]Admin, 0, len(m.admins))
	for id, at := range m.admins {
		admins = append(admins, Admin{UserID: id, AddedAt: at})
	}
	sort.Slice(admins, func(i, j int) bool {
		if !admins[i].AddedAt.Equal(admins[j].AddedAt) {
			return admins[i].AddedAt.Before(admins[j].AddedAt)
		}
		return admins[i].UserID < admins[j].UserID
	})
	return admins, nil
}

func (m *MemoryStore) AddChannel(ctx context.Context, username string) error {
	name := NormalizeChannel(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[name]; !ok {
		m.channels[name] = m.now()
	}
	return nil
}

func (m *MemoryStore) RemoveChannel(ctx context.Context, username string) (bool, error) {
	name := NormalizeChannel(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[name]; !ok {
		return false, nil
	}
	delete(m.channels, name)
	return true, nil
}

func (m *MemoryStore) ListChannels(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) StartSequence(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[userID] = &Sequence{Active: true, Items: []FileRef{}, StartedAt: m.now()}
	return nil
}

func (m *MemoryStore) AppendSequence(ctx context.Context, userID int64, item FileRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[userID]
	if !ok || !seq.Active {
		return false, nil
	}
	seq.Items = append(seq.Items, item)
	return true, nil
}

func (m *MemoryStore) EndSequence(ctx context.Context, userID int64) ([]FileRef, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[userID]
	if !ok || !seq.Active {
		return nil, false, nil
	}
	seq.Active = false
	return append([]FileRef(nil), seq.Items...), true, nil
}

func (m *MemoryStore) GetSequence(ctx context.Context, userID int64) (*Sequence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq, ok := m.sequences[userID]
	if !ok {
		return nil, nil
	}
	cp := *seq
	cp.Items = append([]FileRef(nil), seq.Items...)
	return &cp, nil
}

// NormalizeChannel strips whitespace and a leading @ from a channel username.
func NormalizeChannel(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
