package channels

import (
	"context"
	"fmt"
	"strings"

	"meal-alert-service/internal/config"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
	"meal-alert-service/pkg/email"
)

// Email renders one message per alert and sends it to the full kitchen
// staff address list in a single SMTP transaction. Without an SMTP
// account it silently degrades to zero recipients.
type Email struct {
	directory Directory
	cfg       config.Config
	send      func(to []string, subject, htmlBody, textBody string) error
	logger    *logging.Logger
}

func NewEmail(directory Directory, cfg config.Config, logger *logging.Logger) *Email {
	e := &Email{directory: directory, cfg: cfg, logger: logger}
	e.send = func(to []string, subject, htmlBody, textBody string) error {
		return email.Send(cfg.Email.SMTPServer, cfg.Email.SMTPPort,
			cfg.Email.Username, cfg.Email.Password, cfg.Email.FromName,
			to, subject, htmlBody, textBody)
	}
	return e
}

func (e *Email) Name() models.Channel { return models.ChannelEmail }

// Configured reports whether an SMTP account was supplied.
func (e *Email) Configured() bool { return e.cfg.EmailConfigured() }

// Send is atomic at the transport level: the provider either accepts the
// batch (count = valid addresses) or rejects it (count 0, error set).
func (e *Email) Send(ctx context.Context, alert models.Alert) (int, error) {
	if !e.Configured() {
		return 0, nil
	}

	recipients, err := e.directory.FindByRole(ctx, models.RoleKitchenStaff)
	if err != nil {
		return 0, fmt.Errorf("resolve kitchen staff: %w", err)
	}

	var addrs []string
	for _, r := range recipients {
		if strings.Contains(r.ContactAddress, "@") {
			addrs = append(addrs, r.ContactAddress)
		}
	}
	if len(addrs) == 0 {
		e.logger.Infof("No email recipients for alert %s, skipping send", alert.ID)
		return 0, nil
	}

	subject := buildEmailSubject(alert)
	htmlBody, textBody := renderEmailBodies(alert, e.cfg.Dashboard.BaseURL)
	if err := e.send(addrs, subject, htmlBody, textBody); err != nil {
		return 0, fmt.Errorf("send alert email: %w", err)
	}
	return len(addrs), nil
}

func buildEmailSubject(alert models.Alert) string {
	prefix := "[URGENT]"
	if alert.Severity == models.SeverityCritical {
		prefix = "[CRITICAL]"
	}
	octx := alert.Context
	if octx.MealType == "" && octx.ResidentName == "" {
		return fmt.Sprintf("%s Meal order alert", prefix)
	}
	return fmt.Sprintf("%s %s for %s (Room %s)", prefix, octx.MealType, octx.ResidentName, octx.Room)
}

func renderEmailBodies(alert models.Alert, dashboardURL string) (string, string) {
	link := fmt.Sprintf("%s/orders/%s", dashboardURL, alert.SourceOrderID)

	html := fmt.Sprintf(`<html><body>
<h2>Urgent meal order</h2>
<p>%s</p>
<table>
<tr><td><b>Meal</b></td><td>%s</td></tr>
<tr><td><b>Resident</b></td><td>%s</td></tr>
<tr><td><b>Room</b></td><td>%s</td></tr>
<tr><td><b>Severity</b></td><td>%s</td></tr>
<tr><td><b>Raised at</b></td><td>%s</td></tr>
</table>
<p><a href="%s">Open order in dashboard</a></p>
</body></html>`,
		alert.Message,
		alert.Context.MealType, alert.Context.ResidentName, alert.Context.Room,
		alert.Severity, alert.CreatedAt.Format("2006-01-02 15:04:05"), link)

	text := fmt.Sprintf("Urgent meal order\n\n%s\n\nMeal: %s\nResident: %s\nRoom: %s\nSeverity: %s\nRaised at: %s\n\nOpen order: %s\n",
		alert.Message,
		alert.Context.MealType, alert.Context.ResidentName, alert.Context.Room,
		alert.Severity, alert.CreatedAt.Format("2006-01-02 15:04:05"), link)

	return html, text
}
