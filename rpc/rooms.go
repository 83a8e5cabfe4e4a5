package rpc

import (
	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/db"
	"github.com/hearthchat/hearth-server/ws"
)

func (r *Router) handleRoomsList(client *ws.Client, req ws.Request) {
	rooms, err := r.DB.ListRoomsForUser(client.UserID())
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}
	if rooms == nil {
		rooms = []db.Room{}
	}
	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"rooms": rooms,
	}))
}

func (r *Router) handleRoomsCreate(client *ws.Client, req ws.Request) {
	name := jsonString(req.Params["name"])
	emoji := jsonString(req.Params["emoji"])

	if name == "" {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", "name is required"))
		return
	}

	room, err := r.DB.CreateRoom(name, emoji, client.UserID())
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}

	r.Hub.SubscribeRoom(room.ID, client)
	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"room": room,
	}))
}

func (r *Router) handleRoomsJoin(client *ws.Client, req ws.Request) {
	roomID := jsonString(req.Params["roomId"])
	if roomID == "" {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", "roomId is required"))
		return
	}

	room, err := r.DB.GetRoom(roomID)
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "NOT_FOUND", "Room not found"))
		return
	}

	if err := r.DB.AddParticipant(roomID, client.UserID(), "member"); err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}

	r.Hub.SubscribeRoom(roomID, client)

	r.Hub.BroadcastToRoom(roomID, ws.NewEvent("room.joined", map[string]interface{}{
		"roomId":      roomID,
		"userId":      client.UserID(),
		"displayName": client.DisplayName(),
	}), client)

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"room": room,
	}))
}

func (r *Router) handleRoomsLeave(client *ws.Client, req ws.Request) {
	roomID := jsonString(req.Params["roomId"])
	if roomID == "" {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", "roomId is required"))
		return
	}

	if err := r.DB.RemoveParticipant(roomID, client.UserID()); err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}

	r.Hub.UnsubscribeRoom(roomID, client)

	r.Hub.BroadcastToRoom(roomID, ws.NewEvent("room.left", map[string]interface{}{
		"roomId": roomID,
		"userId": client.UserID(),
	}), client)

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"ok": true,
	}))
}

func (r *Router) handleRoomsInfo(client *ws.Client, req ws.Request) {
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

	room, err := r.DB.GetRoom(roomID)
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "NOT_FOUND", "Room not found"))
		return
	}

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"room": room,
	}))
}

func (r *Router) handleUserUpdate(client *ws.Client, req ws.Request) {
	displayName := jsonString(req.Params["displayName"])
	avatarEmoji := jsonString(req.Params["avatarEmoji"])

	if err := r.DB.UpdateUser(client.UserID(), displayName, avatarEmoji); err != nil {
		r.logger.Error("user update failed", zap.Error(err), zap.String("userId", client.UserID()))
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}

	client.SendJSON(ws.NewResponse(req.ID, map[string]interface{}{
		"ok": true,
	}))
}
