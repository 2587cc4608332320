package counter

// NoLastSeen is the sentinel for "no message processed yet".
const NoLastSeen = -1

// Gap infers how many messages between the previously processed id and
// the current one are missing (deleted). The current message itself is
// not missing, hence the minus one.
//
// Example: last seen 105, current 102 -> 103 and 104 are gone, gap 2.
func Gap(lastSeen, current int) int {
	if lastSeen == NoLastSeen {
		return 0
	}
	if gap := lastSeen - current - 1; gap > 0 {
		return gap
	}
	return 0
}

// TailGap infers the messages missing between the last processed id
// and the end bound when the stream ran out before reaching it.
//
// Example: end bound 100, last processed 102, stream exhausted ->
// 101 and 100 are gone, gap 2.
func TailGap(lastSeen, endAt int) int {
	if lastSeen == NoLastSeen {
		return 0
	}
	if gap := lastSeen - endAt; gap > 0 {
		return gap
	}
	return 0
}
