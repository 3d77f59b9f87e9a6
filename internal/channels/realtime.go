package channels

import (
	"context"

	"meal-alert-service/internal/models"
)

// Broadcaster is the connection-registry surface the realtime channel
// uses (implemented by ws.Hub).
type Broadcaster interface {
	Broadcast(alert models.Alert) int
}

// Realtime pushes alerts to every eligible live connection.
type Realtime struct {
	hub Broadcaster
}

func NewRealtime(hub Broadcaster) *Realtime {
	return &Realtime{hub: hub}
}

func (r *Realtime) Name() models.Channel { return models.ChannelRealtime }

// Send broadcasts the alert. Per-connection failures are handled inside
// the hub; the count reflects sends that completed.
func (r *Realtime) Send(_ context.Context, alert models.Alert) (int, error) {
	return r.hub.Broadcast(alert), nil
}
