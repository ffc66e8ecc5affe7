package auditlog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/autorename/autorename/internal/logger"
)

const (
	timestampLayout = "2006-01-02 15:04:05"

	// DefaultQueueSize is how many lines may wait for the log channel.
	DefaultQueueSize = 256
	postTimeout      = 30 * time.Second
)

// Poster delivers plain text to a chat.
type Poster interface {
	Post(ctx context.Context, chatID int64, text string) error
}

type entry struct {
	userID int64
	line   string
	// flush markers carry ack and no line
	ack chan struct{}
}

// Sink writes one audit line per state-changing action to a log channel.
// Lines are queued and posted by a single goroutine, so Record never waits on
// the channel. Delivery is best effort: a full queue drops the line and post
// failures are logged.
type Sink struct {
	poster  Poster
	channel int64
	now     func() time.Time

	queue  chan entry
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewSink returns a sink posting to channel. A zero channel disables posting.
func NewSink(poster Poster, channel int64) *Sink {
	return NewSinkWithQueue(poster, channel, DefaultQueueSize)
}

// NewSinkWithQueue is NewSink with an explicit queue length.
func NewSinkWithQueue(poster Poster, channel int64, size int) *Sink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	s := &Sink{
		poster:  poster,
		channel: channel,
		now:     time.Now,
		queue:   make(chan entry, size),
		done:    make(chan struct{}),
	}
	if s.Enabled() {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

func (s *Sink) Enabled() bool {
	return s != nil && s.poster != nil && s.channel != 0
}

// Format renders an audit line. userID 0 omits the user footer.
func Format(at time.Time, text string, userID int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n%s", at.Format(timestampLayout), text)
	if userID != 0 {
		fmt.Fprintf(&b, "\n\nUser ID: %d", userID)
	}
	return b.String()
}

// Record queues text attributed to userID. The timestamp is taken now, not
// when the line is posted.
func (s *Sink) Record(ctx context.Context, userID int64, text string) {
	if !s.Enabled() {
		return
	}
	e := entry{userID: userID, line: Format(s.now(), text, userID)}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		logger.Warn("Audit queue full, dropping line", map[string]interface{}{
			"channel": s.channel,
			"user_id": userID,
		})
	}
}

// Recordf is Record with formatting.
func (s *Sink) Recordf(ctx context.Context, userID int64, format string, args ...interface{}) {
	if !s.Enabled() {
		return
	}
	s.Record(ctx, userID, fmt.Sprintf(format, args...))
}

// Flush blocks until every line queued before the call has been posted, or
// ctx is done.
func (s *Sink) Flush(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	ack := make(chan struct{})

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.queue <- entry{ack: ack}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close posts what is already queued and stops the sink. Later records are
// ignored.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.queue {
		if e.ack != nil {
			close(e.ack)
			continue
		}
		s.post(e)
	}
}

func (s *Sink) post(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	if err := s.poster.Post(ctx, s.channel, e.line); err != nil {
		logger.Warn("Failed to deliver audit line", map[string]interface{}{
			"channel": s.channel,
			"user_id": e.userID,
			"error":   err.Error(),
		})
	}
}
