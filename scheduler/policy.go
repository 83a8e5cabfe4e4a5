package scheduler

import "time"

// Policy is the trigger predicate deciding whether a room is due for
// analysis on a given tick. It is pure: all inputs are passed in, nothing
// is mutated, so the gates can be tested without a running scheduler.
type Policy struct {
	// MinMessages is the minimum number of buffered messages before a
	// room is even considered.
	MinMessages int
	// ResponseGap is the minimum time since the Master last responded in
	// the room.
	ResponseGap time.Duration
	// OracleGap is the minimum time since the oracle was last consulted
	// for the room, whether or not it chose to respond. Stricter than
	// ResponseGap so a room full of declined calls cannot hammer the
	// oracle.
	OracleGap time.Duration
}

// Eligible reports whether a room with the given buffer size and timers
// should be analyzed now. All three gates must pass.
func (p Policy) Eligible(pending int, lastResponse, lastOracleCall, now time.Time) bool {
	if pending < p.MinMessages {
		return false
	}
	if now.Sub(lastResponse) < p.ResponseGap {
		return false
	}
	if now.Sub(lastOracleCall) < p.OracleGap {
		return false
	}
	return true
}
