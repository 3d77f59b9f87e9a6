package db

import (
	"context"
	"encoding/json"
	"fmt"

	"meal-alert-service/internal/models"
)

// FindByRole returns the active recipients currently holding a role,
// with contact address and registered push subscriptions. The user
// records themselves are owned by the care-facility application; this
// service only reads them.
func (d *DB) FindByRole(ctx context.Context, role string) ([]models.Recipient, error) {
	query := `
        SELECT id, name, contact_address, COALESCE(push_subscriptions, '[]'::jsonb)
        FROM recipients
        WHERE role = $1 AND active = TRUE`

	rows, err := d.Pool.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipients for role %s: %w", role, err)
	}
	defer rows.Close()

	var list []models.Recipient
	for rows.Next() {
		var (
			r    models.Recipient
			subs []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.ContactAddress, &subs); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		if err := json.Unmarshal(subs, &r.PushSubscriptions); err != nil {
			return nil, fmt.Errorf("invalid push subscriptions for recipient %s: %w", r.ID, err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
