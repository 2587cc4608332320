// Package telegram provides Telegram MTProto client wrapper for
// authenticated sessions.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"

	"github.com/blockedby/chatcount/internal/logger"
)

// resolution errors
var (
	ErrChatNotFound = errors.New("chat not found")
	ErrNoClient     = errors.New("telegram client not connected")
)

// Client wraps one authenticated session and provides the high-level
// operations the counter needs: resolve a chat, iterate its history,
// probe authorization.
type Client struct {
	name        string
	proto       *gotgproto.Client
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewClient creates a session client wrapper around a connected
// gotgproto client.
func NewClient(name string, proto *gotgproto.Client) *Client {
	return &Client{
		name:        name,
		proto:       proto,
		rateLimiter: DefaultRateLimiter(),
		log:         logger.Get(),
	}
}

// Name returns the session name this client is bound to.
func (c *Client) Name() string {
	return c.name
}

// Stop disconnects the underlying protocol client.
func (c *Client) Stop() {
	if c.proto != nil {
		c.proto.Stop()
	}
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	if c.proto == nil {
		return nil, ErrNoClient
	}
	return c.proto.API(), nil
}

// IsAuthorized reports whether the session is still signed in.
// A dead session answers AUTH_KEY_UNREGISTERED to any request.
func (c *Client) IsAuthorized(ctx context.Context) bool {
	api, err := c.API()
	if err != nil {
		return false
	}

	if _, err := api.UpdatesGetState(ctx); err != nil {
		c.log.Warn().Err(err).Str("session", c.name).Msg("telegram: authorization probe failed")
		return false
	}
	return true
}

// Resolve resolves a chat identifier (username without @) to a peer
// usable for history requests. Returns ErrChatNotFound when nothing
// useful comes back.
func (c *Client) Resolve(ctx context.Context, name string) (*Peer, error) {
	name = strings.TrimPrefix(name, "@")

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.log.Debug().Str("session", c.name).Str("chat", name).Msg("telegram: resolving chat username")
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: name,
	})
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT on resolve, backing off")
			c.rateLimiter.SetFloodWait(wait)
		}
		if strings.Contains(err.Error(), "USERNAME_NOT_OCCUPIED") ||
			strings.Contains(err.Error(), "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: %s", ErrChatNotFound, name)
		}
		return nil, fmt.Errorf("resolve username %s: %w", name, err)
	}

	if peer := peerFromResolved(resolved, name); peer != nil {
		return peer, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrChatNotFound, name)
}

// peerFromResolved picks the resolved entity matching the request.
func peerFromResolved(resolved *tg.ContactsResolvedPeer, name string) *Peer {
	for _, chat := range resolved.Chats {
		switch ch := chat.(type) {
		case *tg.Channel:
			return &Peer{
				Kind:       PeerChannel,
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Username:   name,
				Title:      ch.Title,
			}
		case *tg.Chat:
			return &Peer{
				Kind:     PeerChat,
				ID:       ch.ID,
				Username: name,
				Title:    ch.Title,
			}
		}
	}

	for _, user := range resolved.Users {
		if u, ok := user.(*tg.User); ok {
			return &Peer{
				Kind:       PeerUser,
				ID:         u.ID,
				AccessHash: u.AccessHash,
				Username:   name,
				Title:      strings.TrimSpace(u.FirstName + " " + u.LastName),
			}
		}
	}

	return nil
}

// getHistoryBatch fetches one batch of messages, newest first.
// offsetID 0 starts from the latest message. Also returns the oldest
// raw id of the batch (0 for an empty batch) so iteration can advance
// past stretches of deleted placeholders.
func (c *Client) getHistoryBatch(ctx context.Context, peer *Peer, offsetID int, limit int) ([]Message, int, error) {
	if limit > 100 {
		limit = 100 // telegram api limit
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	c.log.Debug().
		Str("session", c.name).
		Int64("peer_id", peer.ID).
		Int("offset_id", offsetID).
		Int("limit", limit).
		Msg("telegram: calling MessagesGetHistory")

	api, err := c.API()
	if err != nil {
		return nil, 0, err
	}
	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer.InputPeer(),
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		if wait := c.checkFloodWait(err); wait > 0 {
			c.log.Warn().Int("wait_seconds", wait).Msg("telegram: FLOOD_WAIT in history, backing off")
			c.rateLimiter.SetFloodWait(wait)
		}
		return nil, 0, fmt.Errorf("get history: %w", err)
	}

	messages, oldestID := extractMessages(history)
	return messages, oldestID, nil
}

// extractMessages converts a history batch to our Message type and
// reports the oldest raw id it saw, parsed or not. Deleted
// placeholders do not parse but still carry the id the iteration has
// to continue below.
func extractMessages(messagesClass tg.MessagesMessagesClass) ([]Message, int) {
	var raw []tg.MessageClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	}

	var messages []Message
	for _, msg := range raw {
		if m := parseMessage(msg); m != nil {
			messages = append(messages, *m)
		}
	}

	oldestID := 0
	if len(raw) > 0 {
		// batches come newest first
		oldestID = raw[len(raw)-1].GetID()
	}
	return messages, oldestID
}

// parseMessage converts a single telegram message to our Message type.
// Service messages (joins, pins, topic events) count like regular
// messages, they just carry no text. A deleted message placeholder
// yields nil.
func parseMessage(msg tg.MessageClass) *Message {
	switch m := msg.(type) {
	case *tg.Message:
		return &Message{
			ID:       m.ID,
			SenderID: senderFromPeer(m.FromID),
			Text:     m.Message,
			Date:     time.Unix(int64(m.Date), 0),
		}
	case *tg.MessageService:
		return &Message{
			ID:       m.ID,
			SenderID: senderFromPeer(m.FromID),
			Date:     time.Unix(int64(m.Date), 0),
		}
	}
	return nil
}

// senderFromPeer extracts the user id of a message author, 0 when the
// sender is hidden or a channel.
func senderFromPeer(peer tg.PeerClass) int64 {
	if from, ok := peer.(*tg.PeerUser); ok {
		return from.UserID
	}
	return 0
}

// checkFloodWait checks if error is a FLOOD_WAIT error and returns wait seconds
func (c *Client) checkFloodWait(err error) int {
	if err == nil {
		return 0
	}

	// gotgproto/gotd errors are usually wrapped
	// we check for specific error string as it's the most reliable way
	// without deep coupling to gotd/tg definition of FloodWait
	str := err.Error()
	if strings.Contains(str, "FLOOD_WAIT_") {
		// format is usually FLOOD_WAIT_X where X is seconds
		var seconds int
		parts := strings.Split(str, "FLOOD_WAIT_")
		if len(parts) > 1 {
			numStr := strings.TrimSpace(parts[1])
			_, _ = fmt.Sscanf(numStr, "%d", &seconds)
			return seconds
		}
	}
	return 0
}
