package counter

import (
	"context"
	"fmt"
	"sync"

	"github.com/blockedby/chatcount/internal/telegram"
)

// terminal reports whether an event ends its job.
func terminal(ev Event) bool {
	switch ev.(type) {
	case JobFinished, ChatNotFound, SessionUnauthorized, WorkerFailed:
		return true
	}
	return false
}

// fakeIter replays a fixed message slice.
type fakeIter struct {
	msgs []telegram.Message
	pos  int
	err  error // returned after the slice is drained
}

func (f *fakeIter) Next(ctx context.Context) (*telegram.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pos >= len(f.msgs) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, nil
	}
	msg := f.msgs[f.pos]
	f.pos++
	return &msg, nil
}

// fakeClient is an in-memory SessionClient backed by a descending
// message slice.
type fakeClient struct {
	name         string
	unauthorized bool
	resolveErr   error
	msgs         []telegram.Message
	iterErr      error
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) IsAuthorized(ctx context.Context) bool { return !f.unauthorized }

func (f *fakeClient) Resolve(ctx context.Context, chat string) (*telegram.Peer, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &telegram.Peer{Kind: telegram.PeerChannel, ID: 1, Username: chat}, nil
}

func (f *fakeClient) History(peer *telegram.Peer, offsetID, limit int) MessageIter {
	var out []telegram.Message
	for _, msg := range f.msgs {
		if offsetID > 0 && msg.ID >= offsetID {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return &fakeIter{msgs: out, err: f.iterErr}
}

// history builds a descending message slice from ids; the sender id is
// derived from the message id so tests can address senders directly.
func history(ids ...int) []telegram.Message {
	msgs := make([]telegram.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, telegram.Message{ID: id, SenderID: int64(id), Text: fmt.Sprintf("m%d", id)})
	}
	return msgs
}

// fakeSource hands out fake clients while enforcing the one-job-per-
// session rule.
type fakeSource struct {
	mu      sync.Mutex
	order   []string
	clients map[string]*fakeClient
	busy    map[string]bool
}

func newFakeSource(clients ...*fakeClient) *fakeSource {
	s := &fakeSource{
		clients: make(map[string]*fakeClient),
		busy:    make(map[string]bool),
	}
	for _, c := range clients {
		s.order = append(s.order, c.name)
		s.clients[c.name] = c
	}
	return s
}

func (s *fakeSource) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *fakeSource) Acquire(name string) (SessionClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", name)
	}
	if s.busy[name] {
		return nil, fmt.Errorf("session %q is busy", name)
	}
	s.busy[name] = true
	return client, nil
}

func (s *fakeSource) Release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[name] = false
}
