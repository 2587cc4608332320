package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/blockedby/chatcount/internal/counter"
	"github.com/blockedby/chatcount/internal/telegram"
)

// MockNATSClient captures the last published message.
type MockNATSClient struct {
	PublishedSubject string
	PublishedData    []byte
	PublishError     error
}

func (m *MockNATSClient) Publish(subject string, data []byte) error {
	m.PublishedSubject = subject
	m.PublishedData = data
	return m.PublishError
}

func TestNATSPublisher_MessageCounted(t *testing.T) {
	mock := &MockNATSClient{}
	pub := NewWithClient(mock)

	date := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	err := pub.Publish(context.Background(), counter.MessageCounted{
		Chat:    "testchat",
		Session: "s1",
		Message: telegram.Message{ID: 42, SenderID: 777, Text: "hi", Date: date},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.PublishedSubject != SubjectMessage {
		t.Errorf("subject = %s, want %s", mock.PublishedSubject, SubjectMessage)
	}

	var wire map[string]any
	if err := json.Unmarshal(mock.PublishedData, &wire); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if wire["chat"] != "testchat" || wire["message_id"] != float64(42) {
		t.Errorf("payload = %v", wire)
	}
	if _, ok := wire["text"]; ok {
		t.Error("message text must not leave the process")
	}
}

func TestNATSPublisher_JobFinished(t *testing.T) {
	mock := &MockNATSClient{}
	pub := NewWithClient(mock)

	err := pub.Publish(context.Background(), counter.JobFinished{
		Chat:      "c",
		Session:   "s1",
		EndAt:     1,
		LastSeen:  3,
		Cancelled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.PublishedSubject != SubjectFinished {
		t.Errorf("subject = %s, want %s", mock.PublishedSubject, SubjectFinished)
	}

	var wire finishedEvent
	if err := json.Unmarshal(mock.PublishedData, &wire); err != nil {
		t.Fatal(err)
	}
	if !wire.Cancelled || wire.LastSeen != 3 {
		t.Errorf("payload = %+v", wire)
	}
}

func TestNATSPublisher_Subjects(t *testing.T) {
	tests := []struct {
		name    string
		event   counter.Event
		subject string
	}{
		{"chat not found", counter.ChatNotFound{Chat: "c", Session: "s"}, SubjectChatNotFound},
		{"unauthorized", counter.SessionUnauthorized{Session: "s"}, SubjectUnauthorized},
		{"flood wait", counter.FloodWaitDetected{Chat: "c", Session: "s"}, SubjectFloodWait},
		{"worker failed", counter.WorkerFailed{Chat: "c", Session: "s", Err: errors.New("boom")}, SubjectFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockNATSClient{}
			pub := NewWithClient(mock)

			if err := pub.Publish(context.Background(), tt.event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mock.PublishedSubject != tt.subject {
				t.Errorf("subject = %s, want %s", mock.PublishedSubject, tt.subject)
			}
			if len(mock.PublishedData) == 0 {
				t.Error("payload should not be empty")
			}
		})
	}
}

func TestNATSPublisher_PublishError(t *testing.T) {
	mock := &MockNATSClient{PublishError: errors.New("nats down")}
	pub := NewWithClient(mock)

	err := pub.Publish(context.Background(), counter.ChatNotFound{Chat: "c"})
	if err == nil {
		t.Error("expected error when the client fails")
	}
}
