package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"meal-alert-service/internal/models"
)

// ErrAlreadyAcknowledged is returned when an alert's acknowledgment has
// already been recorded; the fields are set exactly once.
var ErrAlreadyAcknowledged = errors.New("alert already acknowledged")

// ErrAlertNotFound is returned when no alert exists for the given id.
var ErrAlertNotFound = errors.New("alert not found")

// CreateAlert inserts a new alert record. The escalation scheduler and
// the order-event path both create alerts through here.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	query := `
        INSERT INTO alerts (
            id, source_order_id, message, severity, meal_type, resident_name, room,
            acknowledged, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := d.Pool.Exec(ctx, query,
		alert.ID,
		alert.SourceOrderID,
		alert.Message,
		string(alert.Severity),
		alert.Context.MealType,
		alert.Context.ResidentName,
		alert.Context.Room,
		alert.Acknowledged,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by id.
func (d *DB) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	query := `
        SELECT id, source_order_id, message, severity, meal_type, resident_name, room,
               acknowledged, acknowledged_by, acknowledged_at, created_at
        FROM alerts
        WHERE id = $1`

	var (
		a        models.Alert
		severity string
		ackBy    *string
	)
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.SourceOrderID, &a.Message, &severity,
		&a.Context.MealType, &a.Context.ResidentName, &a.Context.Room,
		&a.Acknowledged, &ackBy, &a.AcknowledgedAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Alert{}, ErrAlertNotFound
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	a.Severity = models.Severity(severity)
	if ackBy != nil {
		a.AcknowledgedBy = *ackBy
	}
	return a, nil
}

// Acknowledge records the false->true acknowledgment transition. The WHERE
// clause guards the exactly-once semantics: a second acknowledgment
// matches no rows.
func (d *DB) Acknowledge(ctx context.Context, id, by string) error {
	query := `
        UPDATE alerts
        SET acknowledged = TRUE, acknowledged_by = $1, acknowledged_at = $2
        WHERE id = $3 AND acknowledged = FALSE`

	result, err := d.Pool.Exec(ctx, query, by, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		if _, err := d.GetAlert(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyAcknowledged
	}
	return nil
}

// ListUnacknowledgedBefore returns alerts still unacknowledged whose
// creation time is older than cutoff. Used by the escalation scan.
func (d *DB) ListUnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]models.Alert, error) {
	query := `
        SELECT id, source_order_id, message, severity, meal_type, resident_name, room,
               acknowledged, acknowledged_by, acknowledged_at, created_at
        FROM alerts
        WHERE acknowledged = FALSE AND created_at <= $1
        ORDER BY created_at ASC`

	rows, err := d.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list unacknowledged alerts: %w", err)
	}
	defer rows.Close()

	var list []models.Alert
	for rows.Next() {
		var (
			a        models.Alert
			severity string
			ackBy    *string
		)
		err := rows.Scan(
			&a.ID, &a.SourceOrderID, &a.Message, &severity,
			&a.Context.MealType, &a.Context.ResidentName, &a.Context.Room,
			&a.Acknowledged, &ackBy, &a.AcknowledgedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		if ackBy != nil {
			a.AcknowledgedBy = *ackBy
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// SaveReport persists a delivery report. Callers treat this as
// best-effort; the results slice is stored as jsonb.
func (d *DB) SaveReport(ctx context.Context, report models.DeliveryReport) error {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery results: %w", err)
	}

	query := `
        INSERT INTO delivery_reports (
            alert_id, timestamp, results, total_recipients, successful_channels, failed_channels
        ) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = d.Pool.Exec(ctx, query,
		report.AlertID,
		report.Timestamp,
		results,
		report.TotalRecipients,
		report.SuccessfulChannels,
		report.FailedChannels,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery report: %w", err)
	}
	return nil
}
