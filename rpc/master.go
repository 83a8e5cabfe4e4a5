package rpc

import (
	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/db"
	"github.com/hearthchat/hearth-server/scheduler"
	"github.com/hearthchat/hearth-server/ws"
)

// MasterPoster is the room collaborator the scheduler dispatches through:
// it persists the Master's message and fans it out to room subscribers.
// Delivery to individual clients is fire-and-forget past this point.
type MasterPoster struct {
	Hub    *ws.Hub
	DB     *db.DB
	Logger *zap.Logger
}

func (p *MasterPoster) AddMessageToRoom(roomID string, msg scheduler.ChatMessage) error {
	stored, err := p.DB.InsertMessage(msg.ID, roomID, msg.SenderID, msg.SenderName, string(msg.Kind), msg.Content)
	if err != nil {
		return err
	}

	p.Hub.BroadcastToRoom(roomID, ws.NewEvent("room.message", map[string]interface{}{
		"roomId":  roomID,
		"message": stored,
	}), nil)

	p.Logger.Info("master message posted",
		zap.String("roomId", roomID),
		zap.Int("len", len(msg.Content)))
	return nil
}

func (p *MasterPoster) NotifyTyping(roomID, displayName string) {
	p.Hub.BroadcastToRoom(roomID, ws.NewEvent("room.typing", map[string]interface{}{
		"roomId":      roomID,
		"displayName": displayName,
	}), nil)
}
