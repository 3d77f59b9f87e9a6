package models

// Roles the alerting subsystem targets. The recipient directory owns the
// full role taxonomy; only these two matter here.
const (
	RoleKitchenStaff  = "kitchen-staff"
	RoleAdministrator = "administrator"
)

// PushSubscription is one registered Web Push endpoint for a recipient.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Recipient is one active identity resolved from the recipient directory.
type Recipient struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	ContactAddress    string             `json:"contact_address"`
	PushSubscriptions []PushSubscription `json:"push_subscriptions"`
}
