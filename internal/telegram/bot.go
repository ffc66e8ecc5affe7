package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/autorename/autorename/internal/cache"
	"github.com/autorename/autorename/internal/config"
	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/logger"
)

const (
	callbackDedupWindow = 30 * time.Second
	thumbnailCacheTTL   = 30 * time.Minute
)

type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client

	// Rate limiting
	globalLimiter  *rate.Limiter           // Global rate limiter (30 msg/sec)
	userLimiters   map[int64]*rate.Limiter // Per-chat rate limiters
	userLimitersMu sync.RWMutex            // Protects userLimiters map
	cleanupStarted bool                    // Track if cleanup goroutine is started

	// Callback deduplication, callback_id -> seen
	callbacks *cache.Cache[string, struct{}]
	// Downloaded thumbnails, file_unique_id -> jpeg bytes
	thumbnails *cache.Cache[string, []byte]

	// Worker pool for concurrent processing
	workerPool *WorkerPool
	poolConfig WorkerPoolConfig
}

func NewBot(cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newBot(api), nil
}

func newBot(api *tgbotapi.BotAPI) *Bot {
	return &Bot{
		api:        api,
		httpClient: &http.Client{Timeout: 10 * time.Minute},

		globalLimiter: rate.NewLimiter(rate.Limit(consts.GlobalSendRate), consts.GlobalSendRate),
		userLimiters:  make(map[int64]*rate.Limiter),

		callbacks:  cache.NewWithConfig[string, struct{}](10000, callbackDedupWindow, time.Minute),
		thumbnails: cache.NewWithConfig[string, []byte](200, thumbnailCacheTTL, 5*time.Minute),

		poolConfig: DefaultWorkerPoolConfig(),
	}
}

// Username is the bot's own handle.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Start long-polls for updates and feeds them to handler until ctx is done.
func (b *Bot) Start(ctx context.Context, handler Handler) error {
	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username":          b.api.Self.UserName,
		"global_rate_limit": "30 msg/sec",
		"user_rate_limit":   "1 msg/chat/sec, burst 20",
	})

	b.workerPool = NewWorkerPool(handler, b.poolConfig)
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.InfoMsg("Update loop stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	logger.Debug("Received update", map[string]interface{}{
		"update_id":    update.UpdateID,
		"has_message":  update.Message != nil,
		"has_callback": update.CallbackQuery != nil,
	})

	if cb := update.CallbackQuery; cb != nil {
		// stop the client spinner whatever happens next
		b.answerCallback(ctx, cb)
		if !b.callbacks.SetIfAbsent(cb.ID, struct{}{}, callbackDedupWindow) {
			logger.Debug("Duplicate callback ignored", map[string]interface{}{
				"callback_id": cb.ID,
			})
			return
		}
	}

	ev, ok := toEvent(update, b.api.Self.UserName)
	if !ok {
		logger.Debug("Update has no supported payload, skipping", nil)
		return
	}

	if err := b.workerPool.Submit(ctx, ev); err != nil {
		logger.Error("Failed to submit event to worker pool", map[string]interface{}{
			"error":   err.Error(),
			"user_id": ev.Actor().ID,
			"kind":    ev.Kind(),
		})
	}
}

func (b *Bot) answerCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	var chatID int64
	if cb.From != nil {
		chatID = cb.From.ID
	}
	if _, err := b.rateLimitedRequest(ctx, chatID, tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn("Failed to answer callback", map[string]interface{}{
			"callback_id": cb.ID,
			"error":       err.Error(),
		})
	}
}

// Stop drains the worker pool and releases caches.
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	if b.workerPool != nil {
		if err := b.workerPool.Stop(b.poolConfig.ShutdownTimeout); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}
	b.callbacks.Close()
	b.thumbnails.Close()

	logger.InfoMsg("Bot stopped successfully")
	return nil
}

// GetWorkerPoolStats returns current worker pool statistics
func (b *Bot) GetWorkerPoolStats() map[string]interface{} {
	if b.workerPool == nil {
		return map[string]interface{}{
			"worker_pool": "not initialized",
		}
	}
	return b.workerPool.GetStats()
}

// Rate limiting methods

// getUserRateLimiter gets or creates a rate limiter for a specific chat
func (b *Bot) getUserRateLimiter(chatID int64) *rate.Limiter {
	b.userLimitersMu.RLock()
	limiter, exists := b.userLimiters[chatID]
	b.userLimitersMu.RUnlock()

	if !exists {
		b.userLimitersMu.Lock()
		// Double-check in case another goroutine created it
		if limiter, exists = b.userLimiters[chatID]; !exists {
			limiter = rate.NewLimiter(rate.Limit(1), 20)
			b.userLimiters[chatID] = limiter

			if !b.cleanupStarted {
				b.cleanupStarted = true
				go b.cleanupUserLimiters()
			}
		}
		b.userLimitersMu.Unlock()
	}

	return limiter
}

// cleanupUserLimiters drops limiters that have refilled completely, since a
// fresh limiter behaves the same.
func (b *Bot) cleanupUserLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		b.userLimitersMu.Lock()
		before := len(b.userLimiters)
		now := time.Now()
		for chatID, limiter := range b.userLimiters {
			if limiter.TokensAt(now) >= float64(limiter.Burst()) {
				delete(b.userLimiters, chatID)
			}
		}
		logger.Debug("Cleaned up user rate limiters", map[string]interface{}{
			"before": before,
			"after":  len(b.userLimiters),
		})
		b.userLimitersMu.Unlock()
	}
}

func (b *Bot) wait(ctx context.Context, chatID int64) error {
	if err := b.globalLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.getUserRateLimiter(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("user rate limiter error: %w", err)
	}
	return nil
}

// rateLimitedSend sends a message with rate limiting
func (b *Bot) rateLimitedSend(ctx context.Context, chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.wait(ctx, chatID); err != nil {
		return tgbotapi.Message{}, err
	}

	logger.Debug("Sending rate-limited message", map[string]interface{}{
		"chat_id": chatID,
	})
	return b.api.Send(msg)
}

// rateLimitedRequest sends a request with rate limiting
func (b *Bot) rateLimitedRequest(ctx context.Context, chatID int64, req tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := b.wait(ctx, chatID); err != nil {
		return nil, err
	}

	logger.Debug("Sending rate-limited request", map[string]interface{}{
		"chat_id": chatID,
	})
	return b.api.Request(req)
}
