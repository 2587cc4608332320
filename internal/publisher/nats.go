// Package publisher mirrors count events to NATS for headless
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/blockedby/chatcount/internal/counter"
)

// event subjects
const (
	SubjectMessage      = "counter.events.message"
	SubjectFinished     = "counter.events.finished"
	SubjectChatNotFound = "counter.events.chat_not_found"
	SubjectUnauthorized = "counter.events.unauthorized"
	SubjectFloodWait    = "counter.events.flood_wait"
	SubjectFailed       = "counter.events.failed"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes count events as json messages.
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// NewWithClient creates a publisher over any NATSClient (tests).
func NewWithClient(nc NATSClient) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// messageEvent is the wire form of a counted message.
type messageEvent struct {
	Chat      string    `json:"chat"`
	Session   string    `json:"session"`
	MessageID int       `json:"message_id"`
	SenderID  int64     `json:"sender_id"`
	Date      time.Time `json:"date"`
}

// finishedEvent is the wire form of a job completion.
type finishedEvent struct {
	Chat      string `json:"chat"`
	Session   string `json:"session"`
	EndAt     int    `json:"end_at"`
	LastSeen  int    `json:"last_seen"`
	Cancelled bool   `json:"cancelled"`
}

// jobEvent is the wire form of the remaining variants.
type jobEvent struct {
	Chat    string `json:"chat,omitempty"`
	Session string `json:"session,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Publish sends one count event to its subject.
func (p *NATSPublisher) Publish(_ context.Context, ev counter.Event) error {
	var (
		subject string
		payload any
	)

	switch e := ev.(type) {
	case counter.MessageCounted:
		subject = SubjectMessage
		payload = messageEvent{
			Chat:      e.Chat,
			Session:   e.Session,
			MessageID: e.Message.ID,
			SenderID:  e.Message.SenderID,
			Date:      e.Message.Date,
		}
	case counter.JobFinished:
		subject = SubjectFinished
		payload = finishedEvent{
			Chat:      e.Chat,
			Session:   e.Session,
			EndAt:     e.EndAt,
			LastSeen:  e.LastSeen,
			Cancelled: e.Cancelled,
		}
	case counter.ChatNotFound:
		subject = SubjectChatNotFound
		payload = jobEvent{Chat: e.Chat, Session: e.Session}
	case counter.SessionUnauthorized:
		subject = SubjectUnauthorized
		payload = jobEvent{Session: e.Session}
	case counter.FloodWaitDetected:
		subject = SubjectFloodWait
		payload = jobEvent{Chat: e.Chat, Session: e.Session}
	case counter.WorkerFailed:
		subject = SubjectFailed
		payload = jobEvent{Chat: e.Chat, Session: e.Session, Error: e.Err.Error()}
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
