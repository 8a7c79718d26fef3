package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// tracker remembers the messages of the current screen per chat so the next
// screen can remove them.
type tracker struct {
	mu    sync.Mutex
	chats map[int64][]int64
}

func newTracker() *tracker {
	return &tracker{chats: make(map[int64][]int64)}
}

func (t *tracker) track(chatID int64, messageIDs ...int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chats[chatID] = append(t.chats[chatID], messageIDs...)
}

func (t *tracker) take(chatID int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.chats[chatID]
	delete(t.chats, chatID)
	return ids
}

// clear deletes every tracked message of the chat. Failures are logged only;
// the user may already have removed them.
func (b *Bot) clear(ctx context.Context, chatID int64) {
	for _, id := range b.tracker.take(chatID) {
		if err := b.msgr.DeleteMessage(ctx, chatID, id); err != nil {
			b.logger.Debug("Failed to delete message",
				zap.Int64("chat_id", chatID),
				zap.Int64("message_id", id),
				zap.Error(err),
			)
		}
	}
}
