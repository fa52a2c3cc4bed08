package chatstream

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"nyayachat/internal/models"
)

// Streamer opens one streaming chat exchange against the relay.
type Streamer interface {
	Stream(ctx context.Context, history []ChatMessage, conversationID int64) (io.ReadCloser, error)
}

// HistoryStore persists the durable transcript. Client implements it;
// tests substitute fakes.
type HistoryStore interface {
	CreateConversation(ctx context.Context, title string) (int64, error)
	AppendMessage(ctx context.Context, conversationID int64, role models.Role, content, agentName string, confidence models.Confidence) error
}

// Controller drives the send pipeline for one conversation view:
// optimistic user insert, streamed assistant reply with live metadata,
// bounded retries, rollback on terminal failure, and exactly one
// durable write per side once the full reply is known.
//
// A generation counter gates every transcript mutation. Send and
// Cancel bump it; a request whose generation no longer matches exits
// without touching the transcript or reporting an error.
type Controller struct {
	streamer Streamer
	store    HistoryStore
	retry    *retrier

	mu             sync.Mutex
	messages       []ChatMessage
	conversationID int64
	generation     uint64
	cancelActive   context.CancelFunc
	failedContent  string
	onUpdate       func([]ChatMessage)
}

func NewController(streamer Streamer, store HistoryStore, conversationID int64) *Controller {
	return &Controller{
		streamer:       streamer,
		store:          store,
		retry:          newRetrier(),
		conversationID: conversationID,
	}
}

// SetOnUpdate registers a callback invoked with a transcript snapshot
// after every mutation. The callback runs while internal state is
// locked: it must not call back into the Controller. Must be set
// before the first Send.
func (c *Controller) SetOnUpdate(fn func([]ChatMessage)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Messages returns a snapshot of the transcript.
func (c *Controller) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// ConversationID returns the server-side conversation, zero until the
// first successful exchange provisions one.
func (c *Controller) ConversationID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// SeedHistory replaces the transcript, used when reopening a stored
// conversation.
func (c *Controller) SeedHistory(history []ChatMessage) {
	c.mu.Lock()
	c.messages = append([]ChatMessage(nil), history...)
	c.notifyLocked()
	c.mu.Unlock()
}

// Cancel abandons the in-flight request, if any. The abandoned request
// exits silently; its partial assistant reply is removed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.generation++
	if c.cancelActive != nil {
		c.cancelActive()
		c.cancelActive = nil
	}
	c.dropPendingAssistantLocked()
	c.notifyLocked()
	c.mu.Unlock()
}

// Retry resends the last user turn that failed terminally. No-op when
// nothing failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	content := c.failedContent
	c.failedContent = ""
	c.mu.Unlock()
	if content == "" {
		return nil
	}
	return c.Send(ctx, content)
}

// Send submits one user turn and blocks until the exchange settles:
// reply streamed and persisted, terminal failure rolled back, or the
// request superseded by a newer Send or Cancel. Superseded requests
// return nil.
func (c *Controller) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("message content must not be empty")
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancelActive != nil {
		c.cancelActive()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancelActive = cancel
	c.dropPendingAssistantLocked()

	userMsg := NewUserMessage(content)
	c.messages = append(c.messages, userMsg)
	history := append([]ChatMessage(nil), c.messages...)
	conversationID := c.conversationID
	c.notifyLocked()
	c.mu.Unlock()

	defer cancel()

	reply := NewAssistantMessage()

	err := c.retry.run(reqCtx, func(attemptCtx context.Context) error {
		return c.streamAttempt(attemptCtx, gen, history, conversationID, &reply)
	})

	if !c.isCurrent(gen) {
		return nil
	}
	if err != nil {
		c.rollback(gen, userMsg.ID, reply.ID, content, err)
		return err
	}

	reply.Finish()
	c.finalize(gen, userMsg.ID, reply)
	c.persist(ctx, userMsg, reply)
	return nil
}

// streamAttempt runs one attempt: open the stream, decode tokens into
// the reply, and refresh the transcript per token. The reply only
// enters the transcript once the first token arrives. Its content is
// reset at the start so a retried attempt never doubles up tokens.
func (c *Controller) streamAttempt(ctx context.Context, gen uint64, history []ChatMessage, conversationID int64, reply *ChatMessage) error {
	reply.Content = ""
	reply.AgentName = DefaultAgentName
	reply.Confidence = ""

	body, err := c.streamer.Stream(ctx, history, conversationID)
	if err != nil {
		return err
	}
	defer body.Close()

	decoder := &Decoder{}
	buf := make([]byte, 4096)
	for {
		if !c.isCurrent(gen) {
			return nil
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, token := range decoder.Decode(buf[:n]) {
				reply.Append(token)
			}
			if reply.Content != "" {
				c.upsertIfCurrent(gen, *reply)
			}
		}
		if readErr != nil {
			if readErr != io.EOF && reply.Content == "" {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &StreamError{Message: "assistant connection dropped, please retry", Retry: true}
			}
			break
		}
	}
	for _, token := range decoder.Flush() {
		reply.Append(token)
	}
	if reply.Content != "" {
		c.upsertIfCurrent(gen, *reply)
	}
	return nil
}

// persist does the durable writes for a settled exchange, one for the
// user turn and one for the full assistant reply. Failures are logged;
// the transcript the user saw is already final.
func (c *Controller) persist(ctx context.Context, userMsg, reply ChatMessage) {
	if c.store == nil {
		return
	}
	conversationID := c.ConversationID()
	if conversationID <= 0 {
		created, err := c.store.CreateConversation(ctx, "New Conversation")
		if err != nil {
			log.Printf("chatstream: create conversation failed: %v", err)
			return
		}
		conversationID = created
		c.mu.Lock()
		c.conversationID = created
		c.mu.Unlock()
	}
	if err := c.store.AppendMessage(ctx, conversationID, models.RoleUser, userMsg.Content, "", ""); err != nil {
		log.Printf("chatstream: persist user turn failed: %v", err)
	}
	if err := c.store.AppendMessage(ctx, conversationID, models.RoleAssistant, reply.Content, reply.AgentName, reply.Confidence); err != nil {
		log.Printf("chatstream: persist assistant reply failed: %v", err)
	}
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// upsertIfCurrent replaces the transcript entry with msg's ID, or
// appends it when absent. This is how the assistant reply first shows
// up: on the token that gave it content.
func (c *Controller) upsertIfCurrent(gen uint64, msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	for i := range c.messages {
		if c.messages[i].ID == msg.ID {
			c.messages[i] = msg
			c.notifyLocked()
			return
		}
	}
	c.messages = append(c.messages, msg)
	c.notifyLocked()
}

// finalize settles the exchange: the user turn loses its pending flag,
// the reply is replaced with its finished copy, and the disclaimer is
// appended.
func (c *Controller) finalize(gen uint64, userID string, reply ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	for i := range c.messages {
		switch c.messages[i].ID {
		case userID:
			c.messages[i].Pending = false
		case reply.ID:
			c.messages[i] = reply
		}
	}
	c.messages = append(c.messages, NewSystemMessage(Disclaimer))
	c.cancelActive = nil
	c.notifyLocked()
}

// rollback removes the optimistic user turn and the empty reply, then
// posts a failure notice. The content is kept so Retry can resend it.
func (c *Controller) rollback(gen uint64, userID, replyID, content string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.ID == userID || m.ID == replyID {
			continue
		}
		kept = append(kept, m)
	}
	c.messages = kept
	c.failedContent = content
	c.messages = append(c.messages, NewSystemMessage(
		fmt.Sprintf("Your message was not sent: %s. Use retry to send it again.", cause.Error())))
	c.cancelActive = nil
	c.notifyLocked()
}

func (c *Controller) dropPendingAssistantLocked() {
	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.Role == models.RoleAssistant && m.Pending {
			continue
		}
		kept = append(kept, m)
	}
	c.messages = kept
}

func (c *Controller) notifyLocked() {
	if c.onUpdate == nil {
		return
	}
	snapshot := make([]ChatMessage, len(c.messages))
	copy(snapshot, c.messages)
	c.onUpdate(snapshot)
}
