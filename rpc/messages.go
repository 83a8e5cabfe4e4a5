package rpc

import (
	"time"

	"github.com/google/uuid"

	"github.com/hearthchat/hearth-server/db"
	"github.com/hearthchat/hearth-server/scheduler"
	"github.com/hearthchat/hearth-server/ws"
)

func (r *Router) handleRoomsSend(client *ws.Client, req ws.Request) {
	roomID := jsonString(req.Params["roomId"])
	content := jsonString(req.Params["content"])

	if roomID == "" || content == "" {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", "roomId and content are required"))
		return
	}

	ok, _ := r.DB.IsParticipant(roomID, client.UserID())
	if !ok {
		client.SendJSON(ws.NewErrorResponse(req.ID, "FORBIDDEN", "Not a participant"))
		return
	}

	senderName := client.DisplayName()
	if user, _ := r.DB.GetUser(client.UserID()); user != nil && user.DisplayName != "" {
		senderName = user.DisplayName
	}

	msg, err := r.DB.InsertMessage(uuid.NewString(), roomID, client.UserID(), senderName, "chat", content)
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}

	r.Hub.BroadcastToRoom(roomID, ws.NewEvent("room.message", map[string]interface{}{
		"roomId":  roomID,
		"message": msg,
	}), nil)

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"messageId": msg.ID,
	}))

	// Hand the message to the response scheduler; it decides if and when
	// the Master speaks.
	r.Scheduler.Ingest(scheduler.ChatMessage{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Kind:       scheduler.KindChat,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	})
}

func (r *Router) handleRoomsHistory(client *ws.Client, req ws.Request) {
	roomID := jsonString(req.Params["roomId"])
	if roomID == "" {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", "roomId is required"))
		return
	}

	ok, _ := r.DB.IsParticipant(roomID, client.UserID())
	if !ok {
		client.SendJSON(ws.NewErrorResponse(req.ID, "FORBIDDEN", "Not a participant"))
		return
	}

	limit := jsonInt(req.Params["limit"])
	if limit <= 0 {
		limit = 50
	}

	var before *time.Time
	if bs := jsonString(req.Params["before"]); bs != "" {
		if t, err := time.Parse(time.RFC3339, bs); err == nil {
			before = &t
		}
	}

	messages, err := r.DB.GetMessages(roomID, before, limit)
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}
	if messages == nil {
		messages = []db.Message{}
	}

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"messages": messages,
	}))
}
