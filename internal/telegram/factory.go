package telegram

import (
	"fmt"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"

	"github.com/blockedby/chatcount/internal/config"
)

// NewSessionClient connects one roster session using its sqlite session
// file for credential storage. The session must already be authorized
// (see cmd/tg-auth); an unauthorized session still connects but fails
// the IsAuthorized probe.
func NewSessionClient(cfg *config.Config, sess config.Session) (*Client, error) {
	proto, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use stored session
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(sqlite.Open(sess.SessionFile)),
			DisableCopyright: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("connect session %s: %w", sess.Name, err)
	}

	return NewClient(sess.Name, proto), nil
}
