package counter

// Counts accumulates per-chat counting results. Mutated only from the
// orchestrator's event loop, so it carries no lock of its own.
type Counts struct {
	TotalMessage       int
	WhitelistedMessage int
	TotalUser          int
	DeletedMessage     int

	// WhitelistedUsers holds the whitelisted user ids actually seen.
	WhitelistedUsers map[int64]struct{}

	seenUsers map[int64]struct{}
}

// NewCounts creates a zeroed counter.
func NewCounts() *Counts {
	return &Counts{
		WhitelistedUsers: make(map[int64]struct{}),
		seenUsers:        make(map[int64]struct{}),
	}
}

// AddMessage records one counted message. Blacklisted senders still
// bump the message total but are excluded from the user totals.
// A senderID of 0 (hidden sender, channel post) counts as one
// shared unknown user.
func (c *Counts) AddMessage(senderID int64, whitelisted, blacklisted bool) {
	c.TotalMessage++

	if blacklisted {
		return
	}

	if _, seen := c.seenUsers[senderID]; !seen {
		c.seenUsers[senderID] = struct{}{}
		c.TotalUser++
	}

	if whitelisted && senderID != 0 {
		c.WhitelistedMessage++
		c.WhitelistedUsers[senderID] = struct{}{}
	}
}

// AddDeleted folds in a deleted-message gap. Non-positive values
// contribute nothing.
func (c *Counts) AddDeleted(n int) {
	if n > 0 {
		c.DeletedMessage += n
	}
}

// WhitelistedUserCount returns how many distinct whitelisted users
// were seen.
func (c *Counts) WhitelistedUserCount() int {
	return len(c.WhitelistedUsers)
}

// Snapshot returns a copy safe to hand to other goroutines.
func (c *Counts) Snapshot() CountsSnapshot {
	ids := make([]int64, 0, len(c.WhitelistedUsers))
	for id := range c.WhitelistedUsers {
		ids = append(ids, id)
	}
	return CountsSnapshot{
		TotalMessage:       c.TotalMessage,
		WhitelistedMessage: c.WhitelistedMessage,
		TotalUser:          c.TotalUser,
		DeletedMessage:     c.DeletedMessage,
		WhitelistedUsers:   ids,
	}
}

// CountsSnapshot is an immutable copy of Counts.
type CountsSnapshot struct {
	TotalMessage       int
	WhitelistedMessage int
	TotalUser          int
	DeletedMessage     int
	WhitelistedUsers   []int64
}
