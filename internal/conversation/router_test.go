package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autorename/autorename/internal/access"
	"github.com/autorename/autorename/internal/auditlog"
	"github.com/autorename/autorename/internal/broadcast"
	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/metrics"
	"github.com/autorename/autorename/internal/rename"
	"github.com/autorename/autorename/internal/sequence"
	"github.com/autorename/autorename/internal/session"
)

const (
	ownerID    int64 = 1
	userID     int64 = 5
	logChannel int64 = -100
)

type sentMessage struct {
	chatID int64
	msg    Message
}

type recordingSender struct {
	mu         sync.Mutex
	messages   []sentMessage
	photos     []PhotoMessage
	deliveries []Delivery
	broadcasts map[int64]string
	posts      []string

	deliverErr error
	failText   map[int64]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{broadcasts: make(map[int64]string), failText: make(map[int64]bool)}
}

func (s *recordingSender) Send(ctx context.Context, chatID int64, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{chatID: chatID, msg: m})
	return nil
}

func (s *recordingSender) SendPhoto(ctx context.Context, chatID int64, p PhotoMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, p)
	return nil
}

func (s *recordingSender) Deliver(ctx context.Context, chatID int64, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliverErr != nil {
		return s.deliverErr
	}
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *recordingSender) SendText(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failText[chatID] {
		return errors.New("chat not found")
	}
	s.broadcasts[chatID] = text
	return nil
}

func (s *recordingSender) Post(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, text)
	return nil
}

func (s *recordingSender) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].chatID == chatID {
			return s.messages[i].msg.Text
		}
	}
	t.Fatalf("no message sent to %d", chatID)
	return ""
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// failingStore fails the operations named in ops with a storage error.
type failingStore struct {
	*database.MemoryStore
	mu  sync.Mutex
	ops map[string]bool
}

func (f *failingStore) fail(op string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[op] = on
}

func (f *failingStore) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ops[op] {
		return &database.StorageError{Op: op, Err: errors.New("connection refused")}
	}
	return nil
}

func (f *failingStore) SetFormat(ctx context.Context, userID int64, format string) error {
	if err := f.err("set_format"); err != nil {
		return err
	}
	return f.MemoryStore.SetFormat(ctx, userID, format)
}

func (f *failingStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	if err := f.err("is_banned"); err != nil {
		return false, err
	}
	return f.MemoryStore.IsBanned(ctx, userID)
}

type harness struct {
	router   *Router
	sender   *recordingSender
	mem      *database.MemoryStore
	store    *failingStore
	sessions *session.Registry
	registry *prometheus.Registry
	audit    *auditlog.Sink
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := database.NewMemoryStore()
	store := &failingStore{MemoryStore: mem, ops: make(map[string]bool)}
	sender := newRecordingSender()
	sessions := session.NewRegistry(0)
	reg := prometheus.NewRegistry()
	audit := auditlog.NewSink(sender, logChannel)

	r := NewRouter(Deps{
		Store:       store,
		Sessions:    sessions,
		Gate:        access.NewGate(ownerID, store, store),
		Renamer:     rename.NewPipeline(store, rename.Options{Quality: "720p", Audio: "AAC", ExtractEpisode: true}),
		Sequences:   sequence.NewCollector(store),
		Broadcaster: broadcast.NewBroadcaster(store, sender, 100, 0),
		Audit:       audit,
		Metrics:     metrics.NewCollectorWithRegistry(reg, func() float64 { return float64(sessions.Len()) }),
		Sender:      sender,
		MaxFileSize: 1 << 20,
	})
	t.Cleanup(audit.Close)
	t.Cleanup(r.Close)

	return &harness{router: r, sender: sender, mem: mem, store: store, sessions: sessions, registry: reg, audit: audit}
}

// posts waits for queued audit lines and returns everything posted so far.
func (h *harness) posts(t *testing.T) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.audit.Flush(ctx))
	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	return append([]string(nil), h.sender.posts...)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func (h *harness) handle(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, h.router.Handle(context.Background(), ev))
}

func (h *harness) command(t *testing.T, from int64, name, args string) {
	t.Helper()
	h.handle(t, Command{From: User{ID: from}, Name: name, Args: args})
}

func (h *harness) text(t *testing.T, from int64, body string) {
	t.Helper()
	h.handle(t, Text{From: User{ID: from}, Body: body})
}

func (h *harness) document(t *testing.T, from int64, name string) {
	t.Helper()
	h.handle(t, Document{From: User{ID: from}, File: database.FileRef{
		FileID:   "id-" + name,
		FileName: name,
		FileSize: 1024,
		Kind:     database.KindDocument,
	}})
}

func (h *harness) pending(userID int64) session.Flow {
	s, ok := h.sessions.Peek(userID)
	if !ok {
		return session.FlowNone
	}
	return s.Flow
}

func TestRouter_NewFlowReplacesPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, userID, "set_caption", "")
	assert.Equal(t, session.FlowCaption, h.pending(userID))

	h.command(t, userID, "set_prefix", "")
	assert.Equal(t, session.FlowPrefix, h.pending(userID))

	h.text(t, userID, "[HD] ")

	prefix, ok, err := h.mem.GetAffix(ctx, userID, database.Prefix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[HD] ", prefix)

	_, ok, err = h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok, "replaced caption flow must not consume the text")
	assert.Equal(t, session.FlowNone, h.pending(userID))
}

func TestRouter_StorageFailureKeepsSessionPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, userID, "autorename", "")
	h.store.fail("set_format", true)
	h.text(t, userID, "{title}")

	assert.Equal(t, consts.ErrorStorageUnavailable, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowFormat, h.pending(userID))
	assert.Equal(t, 1.0, counterValue(t, h.registry, "autorename_storage_errors_total", "op", session.FlowFormat.String()))

	h.store.fail("set_format", false)
	h.text(t, userID, "{title}")

	format, ok, err := h.mem.GetFormat(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{title}", format)
	assert.Equal(t, session.FlowNone, h.pending(userID))
}

func TestRouter_BanCheckFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.store.fail("is_banned", true)

	h.command(t, userID, "start", "")
	assert.Equal(t, consts.ErrorStorageUnavailable, h.sender.lastText(t, userID))
}

func TestRouter_DeleteUnsetValues(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"del_prefix", "❌ You don't have a prefix to delete!"},
		{"del_suffix", "❌ You don't have a suffix to delete!"},
		{"del_caption", "❌ You don't have a caption to delete!"},
		{"delthumb", "❌ You don't have a thumbnail to delete!"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			h := newHarness(t)
			h.command(t, userID, tt.command, "")
			assert.Equal(t, tt.want, h.sender.lastText(t, userID))
		})
	}
}

func TestRouter_DeletePrefix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.mem.SetAffix(ctx, userID, database.Prefix, "[HD]"))
	h.command(t, userID, "del_prefix", "")

	assert.Equal(t, "✅ Prefix deleted successfully!", h.sender.lastText(t, userID))
	_, ok, err := h.mem.GetAffix(ctx, userID, database.Prefix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouter_BannedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, userID, "set_caption", "")
	require.NoError(t, h.mem.SetBanned(ctx, userID, true))
	before := h.sender.count()

	h.text(t, userID, "my caption")
	assert.Equal(t, before, h.sender.count(), "text from a banned user gets no reply")
	assert.Equal(t, session.FlowNone, h.pending(userID))

	_, ok, err := h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	h.command(t, userID, "start", "")
	assert.Equal(t, consts.ErrorBanned, h.sender.lastText(t, userID))

	h.document(t, userID, "a.mkv")
	assert.Equal(t, consts.ErrorBanned, h.sender.lastText(t, userID))
}

func TestRouter_AdminCommandRequiresAuthorization(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"ban", "unban", "add_admin", "deladmin", "addchnl", "broadcast", "admins", "banned", "listchnl", "delchnl"} {
		h.command(t, userID, name, "")
		assert.Equal(t, consts.ErrorPermissionDenied, h.sender.lastText(t, userID), name)
		assert.Equal(t, session.FlowNone, h.pending(userID), name)
	}

	h.command(t, ownerID, "ban", "")
	assert.Equal(t, session.FlowBan, h.pending(ownerID))
}

func TestRouter_PrivilegedFlowRechecksAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.mem.AddAdmin(ctx, userID))
	h.command(t, userID, "ban", "")
	require.Equal(t, session.FlowBan, h.pending(userID))

	_, err := h.mem.RemoveAdmin(ctx, userID)
	require.NoError(t, err)
	h.text(t, userID, "7")

	assert.Equal(t, consts.ErrorPermissionDenied, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowNone, h.pending(userID))
	banned, err := h.mem.IsBanned(ctx, 7)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestRouter_CaptionMustParseAsMarkdown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, userID, "set_caption", "")
	h.text(t, userID, "Join @my_channel")

	assert.Equal(t, consts.ErrorInvalidCaption, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowCaption, h.pending(userID), "the flow stays open for a corrected caption")
	_, ok, err := h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	h.text(t, userID, "Join @my\\_channel")
	caption, ok, err := h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Join @my\\_channel", caption)

	h.command(t, userID, "set_caption", "2 * 3")
	assert.Equal(t, consts.ErrorInvalidCaption, h.sender.lastText(t, userID))
	caption, _, err = h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Join @my\\_channel", caption, "a rejected inline caption leaves the stored one")
}

func TestRouter_AffixesKeepSurroundingSpaces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.SetFormat(ctx, userID, "{title}"))

	h.command(t, userID, "set_prefix", "")
	h.text(t, userID, "[HD] ")
	h.command(t, userID, "set_suffix", "")
	h.text(t, userID, " x265")

	suffix, _, err := h.mem.GetAffix(ctx, userID, database.Suffix)
	require.NoError(t, err)
	assert.Equal(t, " x265", suffix)

	h.document(t, userID, "episode.mkv")
	require.Len(t, h.sender.deliveries, 1)
	assert.Equal(t, "[HD] episode x265.mkv", h.sender.deliveries[0].FileName)

	// blank input is still rejected
	h.command(t, userID, "set_prefix", "")
	h.text(t, userID, "   ")
	assert.Equal(t, consts.ErrorEmptyInput, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowPrefix, h.pending(userID))
}

func TestRouter_InlineArguments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, userID, "set_caption", "*Enjoy*")
	caption, ok, err := h.mem.GetCaption(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "*Enjoy*", caption)
	assert.Equal(t, session.FlowNone, h.pending(userID))

	h.command(t, ownerID, "ban", "7")
	banned, err := h.mem.IsBanned(ctx, 7)
	require.NoError(t, err)
	assert.True(t, banned)

	h.command(t, ownerID, "ban", "1")
	assert.Equal(t, consts.ErrorCannotBanOwner, h.sender.lastText(t, ownerID))

	// thumbnails always need a photo
	h.command(t, userID, "setthumb", "ignored")
	assert.Equal(t, session.FlowThumbnail, h.pending(userID))
}

func TestRouter_InvalidUserIDKeepsFlowPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, ownerID, "add_admin", "")
	h.text(t, ownerID, "not-a-number")

	assert.Equal(t, consts.ErrorInvalidUserID, h.sender.lastText(t, ownerID))
	assert.Equal(t, session.FlowAddAdmin, h.pending(ownerID))

	h.text(t, ownerID, "42")
	isAdmin, err := h.mem.IsAdmin(ctx, 42)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, session.FlowNone, h.pending(ownerID))
}

func TestRouter_RemoveAdminThatIsNotAdmin(t *testing.T) {
	h := newHarness(t)

	h.command(t, ownerID, "deladmin", "")
	h.text(t, ownerID, "42")

	assert.Equal(t, consts.ErrorNotAnAdmin, h.sender.lastText(t, ownerID))
	assert.Equal(t, session.FlowNone, h.pending(ownerID))
}

func TestRouter_EmptyInputKeepsFlowPending(t *testing.T) {
	h := newHarness(t)

	h.command(t, userID, "autorename", "")
	h.text(t, userID, "   ")

	assert.Equal(t, consts.ErrorEmptyInput, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowFormat, h.pending(userID))
}

func TestRouter_TextWithoutFlowIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.text(t, userID, "hello")
	assert.Zero(t, h.sender.count())
}

func TestRouter_PhotoCompletesThumbnailFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.handle(t, Photo{From: User{ID: userID}, FileID: "stray"})
	assert.Zero(t, h.sender.count(), "photo without a thumbnail flow is ignored")

	h.command(t, userID, "setthumb", "")
	h.text(t, userID, "not a photo")
	assert.Equal(t, session.FlowThumbnail, h.pending(userID))

	h.handle(t, Photo{From: User{ID: userID}, FileID: "photo-1", FileUniqueID: "u-1"})

	thumb, err := h.mem.GetThumbnail(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, thumb)
	assert.Equal(t, "photo-1", thumb.FileID)
	assert.Equal(t, session.FlowNone, h.pending(userID))

	h.command(t, userID, "viewthumb", "")
	require.Len(t, h.sender.photos, 1)
	assert.Equal(t, "photo-1", h.sender.photos[0].FileID)
}

func TestRouter_RenameDelivers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.mem.SetFormat(ctx, userID, "S{season}E{episode} {quality}"))
	require.NoError(t, h.mem.SetCaption(ctx, userID, "*Enjoy*"))
	require.NoError(t, h.mem.UpsertUser(ctx, database.Profile{UserID: userID}))

	h.document(t, userID, "My.Show.S1E2.mkv")

	require.Len(t, h.sender.deliveries, 1)
	d := h.sender.deliveries[0]
	assert.Equal(t, "S01E02 720p.mkv", d.FileName)
	assert.Equal(t, "*Enjoy*", d.Caption)
	assert.Equal(t, "id-My.Show.S1E2.mkv", d.File.FileID)

	u, err := h.mem.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.RenameCount)

	posts := h.posts(t)
	require.NotEmpty(t, posts)
	assert.Contains(t, posts[len(posts)-1], "File renamed: My.Show.S1E2.mkv → S01E02 720p.mkv")
	assert.Equal(t, 1.0, counterValue(t, h.registry, "autorename_renames_total", "status", "ok"))
}

func TestRouter_RenameWithoutFormat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.UpsertUser(ctx, database.Profile{UserID: userID}))

	h.document(t, userID, "a.mkv")

	assert.Equal(t, consts.ErrorNoFormat, h.sender.lastText(t, userID))
	assert.Empty(t, h.sender.deliveries)
	u, err := h.mem.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, u.RenameCount)
}

func TestRouter_RenameRejectsOversizedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.SetFormat(ctx, userID, "{title}"))
	require.NoError(t, h.mem.UpsertUser(ctx, database.Profile{UserID: userID}))

	h.handle(t, Video{From: User{ID: userID}, File: database.FileRef{FileName: "big.mp4", FileSize: 2 << 20, Kind: database.KindVideo}})
	assert.Equal(t, consts.ErrorFileTooLarge, h.sender.lastText(t, userID))
	assert.Empty(t, h.sender.deliveries)

	u, err := h.mem.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, u.RenameCount, "a rejected file must not be counted")
	assert.Equal(t, 1.0, counterValue(t, h.registry, "autorename_renames_total", "status", "too_large"))

	h.handle(t, Video{From: User{ID: userID}, File: database.FileRef{FileName: "edge.mp4", FileSize: 1 << 20, Kind: database.KindVideo}})
	require.Len(t, h.sender.deliveries, 1, "a file exactly at the limit is accepted")
}

func TestRouter_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.SetFormat(ctx, userID, "{title}"))
	h.sender.deliverErr = errors.New("upload failed")

	h.document(t, userID, "a.mkv")
	assert.Equal(t, consts.ErrorDeliveryFailed, h.sender.lastText(t, userID))
}

func TestRouter_SequenceRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.SetFormat(ctx, userID, "{title} [{quality}]"))

	h.command(t, userID, "end_sequence", "")
	assert.Equal(t, consts.ErrorNoActiveSequence, h.sender.lastText(t, userID))

	h.command(t, userID, "start_sequence", "")
	h.document(t, userID, "b.mkv")
	h.document(t, userID, "a.mkv")
	h.document(t, userID, "c.mkv")
	assert.Empty(t, h.sender.deliveries, "files are held while a sequence is active")

	h.command(t, userID, "end_sequence", "")

	require.Len(t, h.sender.deliveries, 3)
	assert.Equal(t, "b [720p].mkv", h.sender.deliveries[0].FileName)
	assert.Equal(t, "a [720p].mkv", h.sender.deliveries[1].FileName)
	assert.Equal(t, "c [720p].mkv", h.sender.deliveries[2].FileName)

	last := h.sender.lastText(t, userID)
	assert.Contains(t, last, "Collected: 3")
	assert.Contains(t, last, "Delivered: 3")

	h.document(t, userID, "d.mkv")
	assert.Len(t, h.sender.deliveries, 4, "files are renamed directly after the sequence ends")
}

func TestRouter_Broadcast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []int64{10, 11, 12} {
		require.NoError(t, h.mem.UpsertUser(ctx, database.Profile{UserID: id}))
	}
	h.sender.failText[11] = true

	h.command(t, ownerID, "broadcast", "")
	h.text(t, ownerID, "Maintenance at noon")
	h.router.Wait()

	assert.Equal(t, session.FlowNone, h.pending(ownerID))
	assert.Equal(t, "Maintenance at noon", h.sender.broadcasts[10])
	assert.Equal(t, "Maintenance at noon", h.sender.broadcasts[12])

	last := h.sender.lastText(t, ownerID)
	assert.Contains(t, last, "Broadcast complete!")
	assert.Contains(t, last, "Sent: 2")
	assert.Contains(t, last, "Failed: 1")
}

func TestRouter_CancelButtonOnlyCancelsItsFlow(t *testing.T) {
	h := newHarness(t)

	h.command(t, userID, "set_caption", "")
	h.handle(t, ButtonPress{From: User{ID: userID}, Data: cancelData(session.FlowPrefix), MessageID: 3})

	assert.Equal(t, consts.ErrorExpiredButton, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowCaption, h.pending(userID))

	h.handle(t, ButtonPress{From: User{ID: userID}, Data: cancelData(session.FlowCaption), MessageID: 3})
	assert.Equal(t, consts.SuccessCancelled, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowNone, h.pending(userID))
}

func TestRouter_CancelCommand(t *testing.T) {
	h := newHarness(t)

	h.command(t, userID, "cancel", "")
	assert.Equal(t, consts.SuccessNothing, h.sender.lastText(t, userID))

	h.command(t, userID, "autorename", "")
	h.command(t, userID, "cancel", "")
	assert.Equal(t, consts.SuccessCancelled, h.sender.lastText(t, userID))
	assert.Equal(t, session.FlowNone, h.pending(userID))
}

func TestRouter_ChannelManagement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.command(t, ownerID, "addchnl", "@news")
	channels, err := h.mem.ListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, channels)

	h.command(t, ownerID, "delchnl", "")
	h.sender.mu.Lock()
	kb := h.sender.messages[len(h.sender.messages)-1].msg.Keyboard
	h.sender.mu.Unlock()
	require.Len(t, kb, 1)
	assert.Equal(t, consts.CallbackRemoveChannelPrefix+"news", kb[0][0].Data)

	h.handle(t, ButtonPress{From: User{ID: userID}, Data: kb[0][0].Data})
	assert.Equal(t, consts.ErrorPermissionDenied, h.sender.lastText(t, userID))

	h.handle(t, ButtonPress{From: User{ID: ownerID}, Data: kb[0][0].Data, MessageID: 9})
	channels, err = h.mem.ListChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestRouter_StartRegistersUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.handle(t, Command{From: User{ID: userID, Username: "alice"}, Name: "start"})

	u, err := h.mem.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Username)
	assert.Contains(t, h.sender.lastText(t, userID), "@alice")
	posts := h.posts(t)
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0], "New user started the bot: @alice")

	h.handle(t, Command{From: User{ID: userID, Username: "alice"}, Name: "start"})
	assert.Len(t, h.posts(t), 1, "returning users are not audited")
}

func TestRouter_UnknownInputs(t *testing.T) {
	h := newHarness(t)

	h.command(t, userID, "frobnicate", "")
	assert.Equal(t, consts.ErrorUnknownCommand, h.sender.lastText(t, userID))

	h.handle(t, ButtonPress{From: User{ID: userID}, Data: "stale_button"})
	assert.Equal(t, consts.ErrorExpiredButton, h.sender.lastText(t, userID))
}

func TestRenderLeaderboard(t *testing.T) {
	entries := []database.LeaderboardEntry{
		{Rank: 1, UserID: 1, Username: "a", RenameCount: 9},
		{Rank: 2, UserID: 2, FirstName: "B<b>", RenameCount: 5},
		{Rank: 3, UserID: 3, RenameCount: 2},
		{Rank: 4, UserID: 4, Username: "d", RenameCount: 1},
	}

	out := renderLeaderboard(entries, 2, 5)
	assert.Contains(t, out, "🥇 @a - 9 files")
	assert.Contains(t, out, "🥈 B&lt;b&gt; - 5 files")
	assert.Contains(t, out, "🥉 User 3 - 2 files")
	assert.Contains(t, out, "4. @d - 1 files")
	assert.Contains(t, out, "#2 with 5 files")

	assert.Contains(t, renderLeaderboard(entries, 0, 0), "haven't renamed")
	assert.Contains(t, renderLeaderboard(nil, 0, 0), "No renames yet")
}

func TestSplitText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitText("hello", 10))
	})

	t.Run("splits at line boundaries", func(t *testing.T) {
		chunks := splitText("aaaa\nbbbb\ncccc", 10)
		assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, chunks)
	})

	t.Run("hard splits long lines by rune", func(t *testing.T) {
		chunks := splitText(strings.Repeat("é", 25), 10)
		require.Len(t, chunks, 3)
		assert.Equal(t, strings.Repeat("é", 10), chunks[0])
		assert.Equal(t, strings.Repeat("é", 5), chunks[2])
	})

	t.Run("no chunk exceeds the limit", func(t *testing.T) {
		text := strings.Repeat("line of text\n", 500)
		for _, c := range splitText(text, consts.MaxMessageLength) {
			assert.LessOrEqual(t, len([]rune(c)), consts.MaxMessageLength)
		}
		assert.Equal(t, text, strings.Join(splitText(text, consts.MaxMessageLength), ""))
	})
}
