package telegram

import (
	"context"
)

// defaultBatchSize is how many messages one history request asks for.
const defaultBatchSize = 100

// batchFunc loads one history batch below offsetID and returns the
// parsed messages plus the oldest raw id of the batch (0 = history
// over).
type batchFunc func(ctx context.Context, offsetID, limit int) ([]Message, int, error)

// HistoryIter lazily walks a chat history from newest to oldest.
// It is finite and non-restartable: once Next returns nil the
// iteration is over. Not safe for concurrent use.
type HistoryIter struct {
	fetch batchFunc

	offsetID int // next request starts below this id (0 = latest)
	limit    int // max messages to yield, 0 = unbounded
	yielded  int

	buf  []Message
	pos  int
	done bool
}

// History starts a history iteration over the peer's messages.
func (c *Client) History(peer *Peer) *HistoryIter {
	return &HistoryIter{
		fetch: func(ctx context.Context, offsetID, limit int) ([]Message, int, error) {
			return c.getHistoryBatch(ctx, peer, offsetID, limit)
		},
	}
}

// OffsetID makes the iteration start strictly below the given message id.
func (it *HistoryIter) OffsetID(id int) *HistoryIter {
	it.offsetID = id
	return it
}

// Limit caps the total number of messages the iterator yields.
func (it *HistoryIter) Limit(n int) *HistoryIter {
	it.limit = n
	return it
}

// Next returns the next message, or nil when the history is exhausted.
func (it *HistoryIter) Next(ctx context.Context) (*Message, error) {
	if it.done {
		return nil, nil
	}
	if it.limit > 0 && it.yielded >= it.limit {
		it.done = true
		return nil, nil
	}

	if it.pos >= len(it.buf) {
		if err := it.fill(ctx); err != nil {
			return nil, err
		}
		if len(it.buf) == 0 {
			it.done = true
			return nil, nil
		}
	}

	msg := it.buf[it.pos]
	it.pos++
	it.yielded++
	return &msg, nil
}

// fill loads the next non-empty batch into the buffer. A batch that
// parses to nothing (a stretch of deleted placeholders) advances the
// offset and fetches again instead of ending the iteration.
func (it *HistoryIter) fill(ctx context.Context) error {
	for {
		batch := defaultBatchSize
		if it.limit > 0 && it.limit-it.yielded < batch {
			batch = it.limit - it.yielded
		}

		messages, oldestID, err := it.fetch(ctx, it.offsetID, batch)
		if err != nil {
			return err
		}
		if oldestID == 0 {
			// truly empty batch, the history is over
			it.buf = nil
			it.pos = 0
			return nil
		}

		// continue below the oldest id the batch covered, parsed or not
		it.offsetID = oldestID

		if len(messages) > 0 {
			it.buf = messages
			it.pos = 0
			return nil
		}
	}
}
