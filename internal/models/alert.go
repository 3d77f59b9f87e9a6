package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels for an Alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a raw string to a known Severity, defaulting to high
// since only urgent orders reach this service.
func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(raw)
	default:
		return SeverityHigh
	}
}

// OrderContext carries the meal-order details an alert was raised for.
// Used to build email subjects and push payloads.
type OrderContext struct {
	MealType     string `json:"meal_type,omitempty"`
	ResidentName string `json:"resident_name,omitempty"`
	Room         string `json:"room,omitempty"`
}

// Alert is a notification of an urgent condition requiring kitchen-staff
// attention. Created by the order-event path or by the escalation
// scheduler; mutated only by acknowledgment; never deleted here.
type Alert struct {
	ID             string       `json:"id"`
	SourceOrderID  string       `json:"source_order_id"`
	Message        string       `json:"message"`
	Severity       Severity     `json:"severity"`
	Context        OrderContext `json:"context,omitempty"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedBy string       `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewAlert builds an Alert with a fresh id and creation timestamp.
func NewAlert(sourceOrderID, message string, severity Severity, octx OrderContext) Alert {
	return Alert{
		ID:            uuid.New().String(),
		SourceOrderID: sourceOrderID,
		Message:       message,
		Severity:      severity,
		Context:       octx,
		CreatedAt:     time.Now(),
	}
}

// OrderEvent is the payload consumed from the urgent-order topic.
type OrderEvent struct {
	OrderID      string `json:"order_id"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	MealType     string `json:"meal_type"`
	ResidentName string `json:"resident_name"`
	Room         string `json:"room"`
}
