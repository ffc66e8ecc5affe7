package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
)

// ErrNoActiveSequence is returned by Add and End outside a sequence.
var ErrNoActiveSequence = errors.New("no active sequence")

// Collector gathers files between Start and End. Per-user ordering comes from
// the caller delivering one event per user at a time; the store serializes
// appends for the same user.
type Collector struct {
	store database.SequenceStore
}

func NewCollector(store database.SequenceStore) *Collector {
	return &Collector{store: store}
}

// Start begins a fresh batch, discarding any earlier one.
func (c *Collector) Start(ctx context.Context, userID int64) error {
	if err := c.store.StartSequence(ctx, userID); err != nil {
		return fmt.Errorf("failed to start sequence: %w", err)
	}
	logger.Info("Sequence started", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// Add appends item to the active batch.
func (c *Collector) Add(ctx context.Context, userID int64, item database.FileRef) error {
	ok, err := c.store.AppendSequence(ctx, userID, item)
	if err != nil {
		return fmt.Errorf("failed to add to sequence: %w", err)
	}
	if !ok {
		return ErrNoActiveSequence
	}
	return nil
}

// Active reports whether userID is collecting.
func (c *Collector) Active(ctx context.Context, userID int64) (bool, error) {
	seq, err := c.store.GetSequence(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to read sequence: %w", err)
	}
	return seq != nil && seq.Active, nil
}

// End closes the batch and returns its items in arrival order.
func (c *Collector) End(ctx context.Context, userID int64) ([]database.FileRef, error) {
	items, wasActive, err := c.store.EndSequence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to end sequence: %w", err)
	}
	if !wasActive {
		return nil, ErrNoActiveSequence
	}
	logger.Info("Sequence ended", map[string]interface{}{
		"user_id": userID,
		"items":   len(items),
	})
	return items, nil
}

// Items returns the current or most recently ended batch. Nil means no
// sequence was ever started.
func (c *Collector) Items(ctx context.Context, userID int64) ([]database.FileRef, error) {
	seq, err := c.store.GetSequence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	if seq == nil {
		return nil, nil
	}
	return seq.Items, nil
}
