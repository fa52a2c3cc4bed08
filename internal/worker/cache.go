package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"nyayachat/internal/models"
	"nyayachat/internal/redis"
)

const (
	redisInvalidateChannel = "relay:invalidate"
	redisStateTTL          = 30 * time.Minute
)

const (
	scopeUser         = "user"
	scopeConversation = "conversation"
)

type invalidateMessage struct {
	UserID         int64  `json:"user_id"`
	ConversationID int64  `json:"conversation_id"`
	Scope          string `json:"scope"`
}

// historyCache keeps hot conversation history in redis so chat requests
// avoid a database read per turn, with pub/sub invalidation across
// instances.
type historyCache struct {
	client *redis.Client
}

func newHistoryCache(client *redis.Client) *historyCache {
	return &historyCache{client: client}
}

func (r *historyCache) startListener(handler func(invalidateMessage)) {
	if r == nil || r.client == nil || handler == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	go func() {
		ctx := context.Background()
		pubsub := raw.Subscribe(ctx, redisInvalidateChannel)
		ch := pubsub.Channel()
		for msg := range ch {
			var inv invalidateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				log.Printf("relay invalidation decode failed: %v", err)
				continue
			}
			if inv.ConversationID > 0 {
				r.invalidateConversation(inv.ConversationID)
			}
			handler(inv)
		}
	}()
}

func (r *historyCache) publishInvalidation(msg invalidateMessage) {
	if r == nil || r.client == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("relay invalidation marshal failed: %v", err)
		return
	}
	if err := raw.Publish(context.Background(), redisInvalidateChannel, payload).Err(); err != nil {
		log.Printf("relay publish invalidation failed: %v", err)
	}
}

func (r *historyCache) cacheConversation(conversation *models.Conversation, history []*models.Message) {
	if r == nil || r.client == nil || conversation == nil || conversation.ID <= 0 {
		return
	}
	ctx := context.Background()
	data, err := json.Marshal(conversation)
	if err == nil {
		key := fmt.Sprintf("relay:conversation:%d", conversation.ID)
		if err := r.client.Set(ctx, key, data, redisStateTTL); err != nil {
			log.Printf("relay cache conversation failed: %v", err)
		}
	}
	r.cacheHistory(conversation.ID, history)
}

func (r *historyCache) cacheHistory(conversationID int64, history []*models.Message) {
	if r == nil || r.client == nil || conversationID <= 0 {
		return
	}
	ctx := context.Background()
	data, err := json.Marshal(history)
	if err != nil {
		log.Printf("relay cache history marshal failed: %v", err)
		return
	}
	key := fmt.Sprintf("relay:history:%d", conversationID)
	if err := r.client.Set(ctx, key, data, redisStateTTL); err != nil {
		log.Printf("relay cache history failed: %v", err)
	}
}

func (r *historyCache) loadConversation(userID, conversationID int64) (*models.Conversation, []*models.Message, bool) {
	if r == nil || r.client == nil || conversationID <= 0 {
		return nil, nil, false
	}
	ctx := context.Background()
	key := fmt.Sprintf("relay:conversation:%d", conversationID)
	rawConversation, err := r.client.Get(ctx, key)
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("relay load conversation failed: %v", err)
		}
		return nil, nil, false
	}
	var conversation models.Conversation
	if err := json.Unmarshal([]byte(rawConversation), &conversation); err != nil {
		log.Printf("relay decode conversation failed: %v", err)
		return nil, nil, false
	}
	if conversation.UserID != userID {
		return nil, nil, false
	}

	var history []*models.Message
	historyKey := fmt.Sprintf("relay:history:%d", conversationID)
	rawHistory, err := r.client.Get(ctx, historyKey)
	if err == nil {
		if err := json.Unmarshal([]byte(rawHistory), &history); err != nil {
			log.Printf("relay decode history failed: %v", err)
			history = nil
		}
	} else if err != redis.ErrCacheMiss {
		log.Printf("relay load history failed: %v", err)
	}
	return &conversation, history, true
}

func (r *historyCache) invalidateConversation(conversationID int64) {
	if r == nil || r.client == nil || conversationID <= 0 {
		return
	}
	ctx := context.Background()
	conversationKey := fmt.Sprintf("relay:conversation:%d", conversationID)
	historyKey := fmt.Sprintf("relay:history:%d", conversationID)
	if err := r.client.Del(ctx, conversationKey, historyKey); err != nil && err != redis.ErrCacheMiss {
		log.Printf("relay invalidate conversation failed: %v", err)
	}
}

// ConversationCache is the exported view used by the HTTP layer.
type ConversationCache struct {
	inner *historyCache
}

func (c *ConversationCache) Store(conversation *models.Conversation, history []*models.Message) {
	c.inner.cacheConversation(conversation, history)
}

func (c *ConversationCache) Load(userID, conversationID int64) (*models.Conversation, []*models.Message, bool) {
	return c.inner.loadConversation(userID, conversationID)
}

func (c *ConversationCache) Invalidate(conversationID int64) {
	c.inner.invalidateConversation(conversationID)
}
