package channels

import (
	"context"

	"meal-alert-service/internal/models"
)

// Channel is one independent delivery mechanism. Send returns how many
// distinct endpoints accepted the alert; adapters isolate their own
// per-endpoint failures and only return an error when the channel as a
// whole could not attempt delivery.
type Channel interface {
	Name() models.Channel
	Send(ctx context.Context, alert models.Alert) (int, error)
}

// Directory resolves the active recipients currently holding a role.
// Implemented by the facility's durable record store (internal/db).
type Directory interface {
	FindByRole(ctx context.Context, role string) ([]models.Recipient, error)
}
