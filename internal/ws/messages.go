package ws

import (
	"time"

	"meal-alert-service/internal/models"
)

// serverMessage is the JSON shape pushed to clients.
type serverMessage struct {
	Type      string        `json:"type"`
	Identity  string        `json:"identity,omitempty"`
	Data      *models.Alert `json:"data,omitempty"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

// clientMessage is the only inbound shape the server understands. Any
// other message is logged and ignored.
type clientMessage struct {
	Type string `json:"type"`
}

func connectedMessage(identity string) serverMessage {
	return serverMessage{Type: "connected", Identity: identity}
}

func alertMessage(alert models.Alert) serverMessage {
	now := time.Now()
	return serverMessage{Type: "alert", Data: &alert, Timestamp: &now}
}

func pongMessage() serverMessage {
	return serverMessage{Type: "pong"}
}
