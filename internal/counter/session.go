package counter

import (
	"context"

	"github.com/blockedby/chatcount/internal/telegram"
)

// MessageIter yields messages newest to oldest; nil message means the
// history is exhausted.
type MessageIter interface {
	Next(ctx context.Context) (*telegram.Message, error)
}

// SessionClient is the capability a worker needs from one
// authenticated session.
type SessionClient interface {
	Name() string
	IsAuthorized(ctx context.Context) bool
	Resolve(ctx context.Context, chat string) (*telegram.Peer, error)
	// History starts an iteration below offsetID (0 = latest), capped
	// at limit messages (0 = unbounded).
	History(peer *telegram.Peer, offsetID, limit int) MessageIter
}

// SessionSource hands out sessions for dispatch. Acquire fails while
// the session is still driving another job.
type SessionSource interface {
	Names() []string
	Acquire(name string) (SessionClient, error)
	Release(name string)
}

// registrySource adapts the telegram registry to SessionSource.
type registrySource struct {
	reg *telegram.Registry
}

// Sessions wraps the telegram session registry for the orchestrator.
func Sessions(reg *telegram.Registry) SessionSource {
	return &registrySource{reg: reg}
}

func (s *registrySource) Names() []string {
	return s.reg.Names()
}

func (s *registrySource) Acquire(name string) (SessionClient, error) {
	client, err := s.reg.Acquire(name)
	if err != nil {
		return nil, err
	}
	return clientAdapter{client}, nil
}

func (s *registrySource) Release(name string) {
	s.reg.Release(name)
}

// clientAdapter narrows *telegram.Client to the worker capability.
type clientAdapter struct {
	*telegram.Client
}

func (a clientAdapter) History(peer *telegram.Peer, offsetID, limit int) MessageIter {
	it := a.Client.History(peer)
	if offsetID > 0 {
		it.OffsetID(offsetID)
	}
	if limit > 0 {
		it.Limit(limit)
	}
	return it
}
