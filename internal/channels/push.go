package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"

	"meal-alert-service/internal/config"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// PushPayload is the notification shape rendered for Web Push endpoints.
type PushPayload struct {
	Title   string       `json:"title"`
	Body    string       `json:"body"`
	Icon    string       `json:"icon"`
	Badge   string       `json:"badge"`
	Data    PushData     `json:"data"`
	Actions []PushAction `json:"actions"`
}

type PushData struct {
	AlertID       string `json:"alertId"`
	SourceOrderID string `json:"sourceOrderId"`
	Severity      string `json:"severity"`
	URL           string `json:"url"`
}

type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// sendFunc delivers one payload to one subscription and returns the
// provider's HTTP status. Swapped out in tests.
type sendFunc func(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)

// Push delivers alerts to registered Web Push subscription endpoints.
// Without VAPID credentials it silently degrades to zero recipients.
type Push struct {
	directory Directory
	cfg       config.Config
	limiter   *rate.Limiter
	send      sendFunc
	logger    *logging.Logger
}

func NewPush(directory Directory, cfg config.Config, logger *logging.Logger) *Push {
	limit := rate.Inf
	burst := 1
	if cfg.Push.RatePerSecond > 0 {
		limit = rate.Limit(float64(cfg.Push.RatePerSecond))
		burst = cfg.Push.RatePerSecond
	}
	p := &Push{
		directory: directory,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
	p.send = p.webpushSend
	return p
}

func (p *Push) Name() models.Channel { return models.ChannelPush }

// Configured reports whether VAPID credentials were supplied.
func (p *Push) Configured() bool { return p.cfg.PushConfigured() }

// Send fans the alert out to every subscription endpoint of every
// on-duty kitchen staff member. One endpoint failing never stops the
// rest; permanently expired subscriptions are a soft failure.
func (p *Push) Send(ctx context.Context, alert models.Alert) (int, error) {
	if !p.Configured() {
		return 0, nil
	}

	recipients, err := p.directory.FindByRole(ctx, models.RoleKitchenStaff)
	if err != nil {
		return 0, fmt.Errorf("resolve kitchen staff: %w", err)
	}

	payload, err := json.Marshal(buildPushPayload(alert, p.cfg.Dashboard.BaseURL))
	if err != nil {
		return 0, fmt.Errorf("render push payload: %w", err)
	}

	delivered := 0
	for _, r := range recipients {
		for _, sub := range r.PushSubscriptions {
			if err := p.limiter.Wait(ctx); err != nil {
				return delivered, err
			}
			status, err := p.send(ctx, sub, payload)
			if err != nil {
				p.logger.Warnf("Push to %s endpoint failed: %v", r.ID, err)
				continue
			}
			if status == http.StatusGone || status == http.StatusNotFound {
				p.logger.Infof("Push subscription for %s expired (status %d)", r.ID, status)
				continue
			}
			if status >= 400 {
				p.logger.Warnf("Push to %s endpoint rejected with status %d", r.ID, status)
				continue
			}
			delivered++
		}
	}
	return delivered, nil
}

func (p *Push) webpushSend(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		Subscriber:      p.cfg.Push.Subscriber,
		VAPIDPublicKey:  p.cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: p.cfg.Push.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func buildPushPayload(alert models.Alert, dashboardURL string) PushPayload {
	title := "Urgent meal order"
	if alert.Severity == models.SeverityCritical {
		title = "CRITICAL: unacknowledged meal order"
	}

	body := alert.Message
	if alert.Context.ResidentName != "" {
		body = fmt.Sprintf("%s — %s (Room %s)", alert.Message, alert.Context.ResidentName, alert.Context.Room)
	}

	return PushPayload{
		Title: title,
		Body:  body,
		Icon:  "/icons/alert-192.png",
		Badge: "/icons/badge-72.png",
		Data: PushData{
			AlertID:       alert.ID,
			SourceOrderID: alert.SourceOrderID,
			Severity:      string(alert.Severity),
			URL:           fmt.Sprintf("%s/orders/%s", dashboardURL, alert.SourceOrderID),
		},
		Actions: []PushAction{
			{Action: "view", Title: "View order"},
			{Action: "ack", Title: "Acknowledge"},
		},
	}
}
