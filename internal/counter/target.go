// Package counter implements the message counting engine: parsing
// chat ranges, dispatching counting jobs over one or many sessions,
// pacing requests, detecting deleted messages and aggregating
// progress.
package counter

import "fmt"

// NoMessageID marks an unset message id bound on a target.
const NoMessageID = 0

// ChatTarget is one validated counting range: a chat plus optional
// start/end message ids. Start is the more recent (larger) id;
// counting walks from start down to end, both inclusive.
type ChatTarget struct {
	Chat    string // normalized chat identifier (lowercase, no @)
	StartID int    // NoMessageID = start from the latest message
	EndID   int    // NoMessageID = count down to the first message
}

// Bounded reports whether both bounds are set.
func (t ChatTarget) Bounded() bool {
	return t.StartID != NoMessageID && t.EndID != NoMessageID
}

func (t ChatTarget) String() string {
	return fmt.Sprintf("%s[%d..%d]", t.Chat, t.StartID, t.EndID)
}
