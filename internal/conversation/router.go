package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/autorename/autorename/internal/access"
	"github.com/autorename/autorename/internal/auditlog"
	"github.com/autorename/autorename/internal/broadcast"
	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/metrics"
	"github.com/autorename/autorename/internal/rename"
	"github.com/autorename/autorename/internal/sequence"
	"github.com/autorename/autorename/internal/session"
)

// Deps are the collaborators a Router drives. Audit and Metrics may be nil.
type Deps struct {
	Store       database.Store
	Sessions    *session.Registry
	Gate        *access.Gate
	Renamer     *rename.Pipeline
	Sequences   *sequence.Collector
	Broadcaster *broadcast.Broadcaster
	Audit       *auditlog.Sink
	Metrics     *metrics.Collector
	Sender      Sender

	StartPic    string
	MaxFileSize int64
}

// Router turns inbound events into store writes and replies. Callers must
// deliver events for one user one at a time; different users may run
// concurrently.
type Router struct {
	store       database.Store
	sessions    *session.Registry
	gate        *access.Gate
	renamer     *rename.Pipeline
	sequences   *sequence.Collector
	broadcaster *broadcast.Broadcaster
	audit       *auditlog.Sink
	metrics     *metrics.Collector
	sender      Sender

	startPic    string
	maxFileSize int64

	// background work (broadcasts) outlives the triggering event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRouter(d Deps) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		store:       d.Store,
		sessions:    d.Sessions,
		gate:        d.Gate,
		renamer:     d.Renamer,
		sequences:   d.Sequences,
		broadcaster: d.Broadcaster,
		audit:       d.Audit,
		metrics:     d.Metrics,
		sender:      d.Sender,
		startPic:    d.StartPic,
		maxFileSize: d.MaxFileSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Wait blocks until background broadcasts finish.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Close cancels background broadcasts and waits for them.
func (r *Router) Close() {
	r.cancel()
	r.wg.Wait()
}

// Handle processes one event. User-facing failures are answered here; the
// returned error is only set when a reply could not be sent.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	start := time.Now()
	err := r.dispatch(ctx, ev)

	status := "ok"
	if err != nil {
		status = "error"
		logger.Error("Failed to handle event", map[string]interface{}{
			"user_id": ev.Actor().ID,
			"kind":    ev.Kind(),
			"error":   err.Error(),
		})
	}
	r.metrics.RecordEvent(ev.Kind(), status, time.Since(start))
	return err
}

func (r *Router) dispatch(ctx context.Context, ev Event) error {
	u := ev.Actor()

	banned, err := r.gate.IsBanned(ctx, u.ID)
	if err != nil {
		return r.fail(ctx, u.ID, "is_banned", err)
	}
	if banned {
		return r.rejectBanned(ctx, ev)
	}

	switch e := ev.(type) {
	case Command:
		return r.handleCommand(ctx, e)
	case Text:
		return r.handleText(ctx, e)
	case Photo:
		return r.handlePhoto(ctx, e)
	case Document:
		return r.handleFile(ctx, e.From, e.File)
	case Video:
		return r.handleFile(ctx, e.From, e.File)
	case ButtonPress:
		return r.handleButton(ctx, e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

// rejectBanned answers commands, files and buttons. Plain text and photos are
// dropped without a reply, together with any pending prompt.
func (r *Router) rejectBanned(ctx context.Context, ev Event) error {
	u := ev.Actor()
	logger.Debug("Rejected banned user", map[string]interface{}{
		"user_id": u.ID,
		"kind":    ev.Kind(),
	})

	switch ev.(type) {
	case Text, Photo:
		if s, ok := r.sessions.Cancel(u.ID); ok {
			r.metrics.RecordFlow(s.Flow.String(), "banned")
		}
		return nil
	}
	return r.fail(ctx, u.ID, "", ErrBanned)
}

// authorize reports whether userID may run privileged actions, answering the
// user when not.
func (r *Router) authorize(ctx context.Context, userID int64) (bool, error) {
	ok, err := r.gate.IsAuthorized(ctx, userID)
	if err != nil {
		return false, r.fail(ctx, userID, "is_authorized", err)
	}
	if !ok {
		logger.Warn("Unauthorized privileged request", map[string]interface{}{
			"user_id": userID,
		})
		return false, r.fail(ctx, userID, "", ErrNotAuthorized)
	}
	return true, nil
}

// fail answers err with its fixed reply. Only a failed send is returned.
func (r *Router) fail(ctx context.Context, userID int64, op string, err error) error {
	var ue *userError
	var text string

	switch {
	case errors.As(err, &ue):
		text = ue.reply
	case errors.Is(err, ErrBanned):
		text = consts.ErrorBanned
	case errors.Is(err, ErrNotAuthorized):
		text = consts.ErrorPermissionDenied
	case errors.Is(err, rename.ErrNoFormatConfigured):
		text = consts.ErrorNoFormat
	case errors.Is(err, sequence.ErrNoActiveSequence):
		text = consts.ErrorNoActiveSequence
	case errors.Is(err, errDeliveryFailed):
		text = consts.ErrorDeliveryFailed
	default:
		// storage failures and anything unexpected
		r.metrics.RecordStorageError(op)
		logger.Error("Operation failed", map[string]interface{}{
			"user_id": userID,
			"op":      op,
			"error":   err.Error(),
		})
		text = consts.ErrorStorageUnavailable
	}
	return r.reply(ctx, userID, text)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	return r.send(ctx, chatID, Message{Text: text})
}

func (r *Router) send(ctx context.Context, chatID int64, m Message) error {
	if err := r.sender.Send(ctx, chatID, m); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// sendLong splits text at the message size limit. Only the last chunk gets
// the keyboard.
func (r *Router) sendLong(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	chunks := splitText(text, consts.MaxMessageLength)
	for i, chunk := range chunks {
		m := Message{Text: chunk}
		if i == len(chunks)-1 {
			m.Keyboard = kb
		}
		if err := r.send(ctx, chatID, m); err != nil {
			return err
		}
	}
	return nil
}
