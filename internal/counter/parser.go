package counter

import (
	"strconv"
	"strings"

	"github.com/blockedby/chatcount/internal/logger"
)

// fragment is one parsed link fragment: a chat name and an optional
// message number.
type fragment struct {
	chat   string
	number int
}

// ParseRanges turns raw start/end text into an ordered list of chat
// targets. Both inputs may hold several whitespace-separated link
// fragments. Malformed fragments are dropped silently; an end bound
// that is not strictly smaller than its start bound is discarded and
// the chat stays unbounded at the end side. Never fails: worst case
// is an empty result.
//
// Accepted fragment forms, each optionally followed by /number:
//
//	https://t.me/chat_name/1234
//	t.me/chat_name/1234
//	@chat_name
//	chat_name
func ParseRanges(rawStart, rawEnd string) []ChatTarget {
	starts, order := collectFragments(rawStart)
	ends, endOrder := collectFragments(rawEnd)

	var targets []ChatTarget
	for _, chat := range order {
		target := ChatTarget{Chat: chat, StartID: starts[chat].number}

		if end, ok := ends[chat]; ok {
			// end must be strictly older than start; "start unset"
			// means latest message, which any end id is older than
			if target.StartID == NoMessageID || end.number < target.StartID {
				target.EndID = end.number
			} else {
				logger.Get().Warn().
					Str("chat", chat).
					Int("start_id", target.StartID).
					Int("end_id", end.number).
					Msg("parser: end bound is not below the start bound, ignoring it")
			}
			delete(ends, chat)
		}

		targets = append(targets, target)
	}

	// chats named only on the end side count with an open start
	for _, chat := range endOrder {
		if end, ok := ends[chat]; ok {
			targets = append(targets, ChatTarget{Chat: chat, EndID: end.number})
		}
	}

	return targets
}

// collectFragments parses whitespace-separated fragments into a map
// keyed by chat name, remembering first-appearance order. A repeated
// chat keeps its position, the later number wins.
func collectFragments(raw string) (map[string]fragment, []string) {
	frags := make(map[string]fragment)
	var order []string

	for _, word := range strings.Fields(raw) {
		f, ok := parseFragment(word)
		if !ok {
			continue
		}
		if _, seen := frags[f.chat]; !seen {
			order = append(order, f.chat)
		}
		frags[f.chat] = f
	}

	return frags, order
}

// parseFragment extracts (chat, number) from one link fragment.
func parseFragment(text string) (fragment, bool) {
	if text == "" {
		return fragment{}, false
	}

	if idx := strings.Index(text, "t.me/"); idx >= 0 {
		text = text[idx+len("t.me/"):]
	} else {
		text = strings.TrimPrefix(text, "@")
	}

	var number int
	if name, num, found := strings.Cut(text, "/"); found {
		text = name
		if n, err := strconv.Atoi(num); err == nil && n > 0 {
			number = n
		}
	}

	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || strings.ContainsAny(text, "/?#") {
		return fragment{}, false
	}

	return fragment{chat: text, number: number}, true
}
