package rpc

import (
	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/db"
	"github.com/hearthchat/hearth-server/scheduler"
	"github.com/hearthchat/hearth-server/ws"
)

// Ingestor receives every persisted chat message. Satisfied by
// *scheduler.Scheduler; a fake stands in for it in tests.
type Ingestor interface {
	Ingest(msg scheduler.ChatMessage)
}

type Router struct {
	Hub       *ws.Hub
	DB        *db.DB
	Scheduler Ingestor
	logger    *zap.Logger
}

func NewRouter(hub *ws.Hub, database *db.DB, sched Ingestor, logger *zap.Logger) *Router {
	r := &Router{Hub: hub, DB: database, Scheduler: sched, logger: logger}
	hub.Router = r.Handle
	return r
}

func (r *Router) Handle(client *ws.Client, req ws.Request) {
	r.logger.Info("RPC",
		zap.String("method", req.Method),
		zap.String("userId", client.UserID()))

	switch req.Method {
	case "rooms.list":
		r.handleRoomsList(client, req)
	case "rooms.create":
		r.handleRoomsCreate(client, req)
	case "rooms.join":
		r.handleRoomsJoin(client, req)
	case "rooms.leave":
		r.handleRoomsLeave(client, req)
	case "rooms.info":
		r.handleRoomsInfo(client, req)
	case "rooms.history":
		r.handleRoomsHistory(client, req)
	case "rooms.send":
		r.handleRoomsSend(client, req)
	case "user.update":
		r.handleUserUpdate(client, req)
	default:
		client.SendJSON(ws.NewErrorResponse(req.ID, "UNKNOWN_METHOD", "Unknown method: "+req.Method))
	}
}
