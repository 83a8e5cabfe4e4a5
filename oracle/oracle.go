// Package oracle implements the response oracle consulted by the
// scheduler: given a window of recent room messages, decide whether the
// Master should speak, and with what.
package oracle

import (
	"fmt"
	"strings"

	"github.com/hearthchat/hearth-server/scheduler"
)

// passSentinel is what the model is told to answer when the Master should
// stay silent.
const passSentinel = "PASS"

// transcript renders an analysis window as a plain speaker-prefixed log,
// oldest first.
func transcript(window []scheduler.ChatMessage) string {
	var b strings.Builder
	for _, m := range window {
		name := m.SenderName
		if name == "" {
			name = m.SenderID
		}
		fmt.Fprintf(&b, "%s: %s\n", name, m.Content)
	}
	return b.String()
}

// parseReply normalizes a raw model answer into the scheduler's contract:
// empty string means decline. The sentinel is matched loosely because
// models wrap it in quotes or trailing punctuation often enough.
func parseReply(raw string) string {
	reply := strings.TrimSpace(raw)
	stripped := strings.Trim(reply, `"'.!`)
	if strings.EqualFold(stripped, passSentinel) {
		return ""
	}
	return reply
}
