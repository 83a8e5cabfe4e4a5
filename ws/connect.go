package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthchat/hearth-server/scheduler"
)

const protocolVersion = 1

// maxIdentLen bounds user-supplied identifiers in the handshake.
const maxIdentLen = 64

type ConnectParams struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarEmoji string `json:"avatarEmoji"`
}

// ParseConnect validates the connect handshake params. Identity here is
// claimed, not proven: user and presence management is out of this
// server's hands, so the handshake only enforces shape.
func ParseConnect(raw json.RawMessage) (ConnectParams, error) {
	var p ConnectParams
	if raw == nil {
		return p, fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("invalid params: %w", err)
	}

	p.UserID = strings.TrimSpace(p.UserID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.UserID == "" {
		return p, fmt.Errorf("userId is required")
	}
	if len(p.UserID) > maxIdentLen || len(p.DisplayName) > maxIdentLen {
		return p, fmt.Errorf("identifier too long")
	}
	if p.UserID == scheduler.MasterID {
		return p, fmt.Errorf("userId is reserved")
	}
	return p, nil
}

func (h *Hub) handleConnect(client *Client, msg Frame) {
	p, err := ParseConnect(msg.Params)
	if err != nil {
		h.logger.Warn("connect rejected", zap.Error(err))
		client.SendJSON(NewErrorResponse(msg.ID, "CONNECT_FAILED", err.Error()))
		return
	}

	if _, err := h.DB.UpsertUser(p.UserID, p.DisplayName, p.AvatarEmoji); err != nil {
		h.logger.Error("upsert user failed", zap.Error(err))
	}

	client.SetAuth(p.UserID, p.DisplayName)

	// Subscribe to all rooms this user is in
	rooms, _ := h.DB.ListRoomsForUser(p.UserID)
	for _, room := range rooms {
		h.SubscribeRoom(room.ID, client)
	}

	client.SendJSON(NewResponse(msg.ID, map[string]interface{}{
		"protocol": protocolVersion,
		"userId":   p.UserID,
	}))

	h.logger.Info("client authenticated",
		zap.String("userId", p.UserID),
		zap.String("displayName", p.DisplayName))
}
