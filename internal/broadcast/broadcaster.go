package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/autorename/autorename/internal/logger"
)

// Recipients lists up to limit known user ids.
type Recipients interface {
	ListUserIDs(ctx context.Context, limit int64) ([]int64, error)
}

// Sender delivers one copy of the message.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Tally is the outcome of one broadcast.
type Tally struct {
	JobID   string
	Total   int
	Success int
	Failed  int
}

func (t Tally) String() string {
	return fmt.Sprintf("%d/%d delivered, %d failed", t.Success, t.Total, t.Failed)
}

// Broadcaster fans a message out to every known user. A failed delivery is
// counted and the fan-out continues.
type Broadcaster struct {
	recipients Recipients
	sender     Sender
	pageSize   int64
	limiter    *rate.Limiter
}

// NewBroadcaster paces sends at perSecond; zero or less means unpaced.
func NewBroadcaster(recipients Recipients, sender Sender, pageSize int64, perSecond float64) *Broadcaster {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Broadcaster{
		recipients: recipients,
		sender:     sender,
		pageSize:   pageSize,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Run delivers text to every recipient. It only fails when the recipient list
// cannot be read or ctx ends; per-recipient errors go into the tally.
func (b *Broadcaster) Run(ctx context.Context, text string) (Tally, error) {
	tally := Tally{JobID: uuid.NewString()}

	ids, err := b.recipients.ListUserIDs(ctx, b.pageSize)
	if err != nil {
		return tally, fmt.Errorf("failed to list recipients: %w", err)
	}
	tally.Total = len(ids)

	start := time.Now()
	logger.Info("Broadcast started", map[string]interface{}{
		"job_id":     tally.JobID,
		"recipients": tally.Total,
	})

	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			return tally, fmt.Errorf("broadcast interrupted: %w", err)
		}
		if err := b.sender.SendText(ctx, id, text); err != nil {
			tally.Failed++
			logger.Debug("Broadcast delivery failed", map[string]interface{}{
				"job_id":  tally.JobID,
				"user_id": id,
				"error":   err.Error(),
			})
			continue
		}
		tally.Success++
	}

	logger.Info("Broadcast finished", map[string]interface{}{
		"job_id":   tally.JobID,
		"success":  tally.Success,
		"failed":   tally.Failed,
		"duration": time.Since(start).String(),
	})
	return tally, nil
}
