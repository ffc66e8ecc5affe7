package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/rename"
)

// handleFile collects f into an active sequence, or renames and returns it.
func (r *Router) handleFile(ctx context.Context, u User, f database.FileRef) error {
	if f.FileName == "" {
		f.FileName = rename.FallbackName
	}
	if r.maxFileSize > 0 && f.FileSize > r.maxFileSize {
		r.metrics.RecordRename("too_large")
		logger.Warn("Rejected oversized file", map[string]interface{}{
			"user_id":   u.ID,
			"file_size": f.FileSize,
		})
		return r.reply(ctx, u.ID, consts.ErrorFileTooLarge)
	}

	active, err := r.sequences.Active(ctx, u.ID)
	if err != nil {
		return r.fail(ctx, u.ID, "get_sequence", err)
	}
	if active {
		if err := r.sequences.Add(ctx, u.ID, f); err != nil {
			return r.fail(ctx, u.ID, "append_sequence", err)
		}
		logger.Debug("File added to sequence", map[string]interface{}{
			"user_id": u.ID,
			"file":    f.FileName,
		})
		return r.reply(ctx, u.ID, fmt.Sprintf("📥 Added to sequence: <code>%s</code>\n\nSend more files or use /end_sequence.", escape(f.FileName)))
	}

	if err := r.renameAndDeliver(ctx, u.ID, f); err != nil {
		return r.fail(ctx, u.ID, "rename", err)
	}
	return nil
}

// renameAndDeliver runs one file through the pipeline and sends it back.
func (r *Router) renameAndDeliver(ctx context.Context, userID int64, f database.FileRef) error {
	res, err := r.renamer.Rename(ctx, userID, f.FileName)
	if err != nil {
		switch {
		case errors.Is(err, rename.ErrNoFormatConfigured):
			r.metrics.RecordRename("no_format")
		default:
			r.metrics.RecordRename("error")
		}
		return err
	}

	d := Delivery{File: f, FileName: res.FileName, Thumbnail: res.Thumbnail}
	if res.HasCaption {
		d.Caption = res.Caption
	}
	if err := r.sender.Deliver(ctx, userID, d); err != nil {
		r.metrics.RecordRename("delivery_failed")
		logger.Error("Failed to deliver renamed file", map[string]interface{}{
			"user_id": userID,
			"file":    res.FileName,
			"error":   err.Error(),
		})
		return fmt.Errorf("%w: %v", errDeliveryFailed, err)
	}

	r.metrics.RecordRename("ok")
	logger.Info("File renamed", map[string]interface{}{
		"user_id":  userID,
		"original": f.FileName,
		"renamed":  res.FileName,
		"outcome":  "delivered",
	})
	r.audit.Recordf(ctx, userID, "File renamed: %s → %s", f.FileName, res.FileName)
	return nil
}

func (r *Router) startSequence(ctx context.Context, userID int64) error {
	if err := r.sequences.Start(ctx, userID); err != nil {
		return r.fail(ctx, userID, "start_sequence", err)
	}
	r.audit.Record(ctx, userID, "User started a sequence")
	return r.reply(ctx, userID, "🔢 <b>Sequence started!</b>\n\nSend your files now. Use /end_sequence when done and they will come back in order.")
}

// endSequence closes the batch and renames every item in arrival order. A
// failed item is reported and the rest continue.
func (r *Router) endSequence(ctx context.Context, u User) error {
	items, err := r.sequences.End(ctx, u.ID)
	if err != nil {
		return r.fail(ctx, u.ID, "end_sequence", err)
	}
	if len(items) == 0 {
		return r.reply(ctx, u.ID, "ℹ️ Sequence ended. No files were collected.")
	}

	if err := r.reply(ctx, u.ID, fmt.Sprintf("⏳ Sequence ended. Renaming %d files...", len(items))); err != nil {
		return err
	}

	delivered := 0
	for i, item := range items {
		if err := r.renameAndDeliver(ctx, u.ID, item); err != nil {
			if errors.Is(err, rename.ErrNoFormatConfigured) {
				// nothing else in the batch can succeed
				return r.fail(ctx, u.ID, "rename", err)
			}
			logger.Warn("Sequence item failed", map[string]interface{}{
				"user_id": u.ID,
				"index":   i,
				"file":    item.FileName,
				"error":   err.Error(),
			})
			if sendErr := r.fail(ctx, u.ID, "rename", err); sendErr != nil {
				return sendErr
			}
			continue
		}
		delivered++
	}

	r.audit.Recordf(ctx, u.ID, "Sequence released: %d of %d files delivered", delivered, len(items))
	return r.reply(ctx, u.ID, fmt.Sprintf("✅ <b>Sequence complete!</b>\n\n📥 Collected: %d\n📤 Delivered: %d", len(items), delivered))
}
