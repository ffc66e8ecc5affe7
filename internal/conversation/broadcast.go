package conversation

import (
	"fmt"

	"github.com/autorename/autorename/internal/logger"
)

// startBroadcast fans text out in the background and reports the tally to
// the initiator. It holds no session or store lock while running.
func (r *Router) startBroadcast(initiator int64, text string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Broadcast panic recovered", map[string]interface{}{
					"user_id": initiator,
					"panic":   rec,
				})
			}
		}()

		ctx := r.ctx
		tally, err := r.broadcaster.Run(ctx, text)
		r.metrics.RecordBroadcast(tally.Success, tally.Failed)
		if err != nil {
			logger.Error("Broadcast failed", map[string]interface{}{
				"user_id": initiator,
				"job_id":  tally.JobID,
				"error":   err.Error(),
			})
			msg := fmt.Sprintf("❌ Broadcast stopped early.\n\n✅ Sent: %d\n❌ Failed: %d", tally.Success, tally.Failed)
			if sendErr := r.reply(ctx, initiator, msg); sendErr != nil {
				logger.Warn("Failed to report broadcast result", map[string]interface{}{
					"user_id": initiator,
					"error":   sendErr.Error(),
				})
			}
			return
		}

		msg := fmt.Sprintf("✅ Broadcast complete!\n\n✅ Sent: %d\n❌ Failed: %d", tally.Success, tally.Failed)
		if err := r.reply(ctx, initiator, msg); err != nil {
			logger.Warn("Failed to report broadcast result", map[string]interface{}{
				"user_id": initiator,
				"error":   err.Error(),
			})
		}
		r.audit.Recordf(ctx, initiator, "Broadcast %s sent to %d users (%d failed)", tally.JobID, tally.Success, tally.Failed)
	}()
}
