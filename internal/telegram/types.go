package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// Message represents a parsed telegram message
type Message struct {
	ID       int       // message id (unique within chat, grows with time)
	SenderID int64     // sender user id (0 when the sender is hidden or a channel)
	Text     string    // message text content
	Date     time.Time // message creation timestamp
}

// PeerKind tells what a resolved chat identifier turned out to be.
type PeerKind string

// peer kinds
const (
	PeerUser    PeerKind = "USER"
	PeerChat    PeerKind = "CHAT"
	PeerChannel PeerKind = "CHANNEL"
)

// Peer is a resolved chat handle usable for history requests.
type Peer struct {
	Kind       PeerKind
	ID         int64  // telegram id of the peer
	AccessHash int64  // access hash for api calls (0 for basic groups)
	Username   string // resolved username (without @)
	Title      string // display name of the chat
}

// InputPeer converts the peer to the request form the api expects.
func (p *Peer) InputPeer() tg.InputPeerClass {
	switch p.Kind {
	case PeerUser:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}
	case PeerChat:
		return &tg.InputPeerChat{ChatID: p.ID}
	default:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
	}
}
