package scheduler

import "time"

// Kind discriminates who authored a message.
type Kind string

const (
	// KindChat is a plain message from a human participant. Only these
	// are eligible for buffering.
	KindChat Kind = "chat"
	// KindMaster is a message authored by the Master itself.
	KindMaster Kind = "master"
	// KindSystem covers join/leave notices and other control events.
	KindSystem Kind = "system"
)

// MasterID is the reserved sender id for the automated host. Messages
// carrying it never re-enter the buffers.
const MasterID = "master"

// ChatMessage is the scheduler's view of one chat message. The transport
// layer converts its own message type into this before ingestion.
type ChatMessage struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Kind       Kind
	Content    string
	CreatedAt  time.Time
}
