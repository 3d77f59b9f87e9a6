package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"meal-alert-service/internal/config"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

type fakeDirectory struct {
	recipients []models.Recipient
	err        error
}

func (f *fakeDirectory) FindByRole(_ context.Context, _ string) ([]models.Recipient, error) {
	return f.recipients, f.err
}

func pushConfig() config.Config {
	var cfg config.Config
	cfg.Push.VAPIDPublicKey = "pub"
	cfg.Push.VAPIDPrivateKey = "priv"
	cfg.Push.Subscriber = "kitchen@example.org"
	cfg.Dashboard.BaseURL = "https://dashboard.example.org"
	return cfg
}

func staffWithSubs(id string, n int) models.Recipient {
	r := models.Recipient{ID: id, ContactAddress: id + "@example.org"}
	for i := 0; i < n; i++ {
		r.PushSubscriptions = append(r.PushSubscriptions, models.PushSubscription{
			Endpoint: "https://push.example.org/" + id,
			P256dh:   "key", Auth: "auth",
		})
	}
	return r
}

func TestPushUnconfiguredSilentlyDegrades(t *testing.T) {
	dir := &fakeDirectory{recipients: []models.Recipient{staffWithSubs("s1", 2)}}
	p := NewPush(dir, config.Config{}, logging.NewNop())
	called := false
	p.send = func(context.Context, models.PushSubscription, []byte) (int, error) {
		called = true
		return http.StatusCreated, nil
	}

	n, err := p.Send(context.Background(), models.NewAlert("o1", "m", models.SeverityHigh, models.OrderContext{}))
	if n != 0 || err != nil {
		t.Errorf("got (%d, %v), want (0, nil)", n, err)
	}
	if called {
		t.Error("unconfigured channel attempted delivery")
	}
}

func TestPushCountsAcceptedEndpoints(t *testing.T) {
	dir := &fakeDirectory{recipients: []models.Recipient{
		staffWithSubs("s1", 2),
		staffWithSubs("s2", 1),
	}}
	p := NewPush(dir, pushConfig(), logging.NewNop())
	p.send = func(context.Context, models.PushSubscription, []byte) (int, error) {
		return http.StatusCreated, nil
	}

	n, err := p.Send(context.Background(), models.NewAlert("o1", "m", models.SeverityHigh, models.OrderContext{}))
	if n != 3 || err != nil {
		t.Errorf("got (%d, %v), want (3, nil)", n, err)
	}
}

func TestPushEndpointFailureIsolation(t *testing.T) {
	dir := &fakeDirectory{recipients: []models.Recipient{
		staffWithSubs("s1", 1),
		staffWithSubs("s2", 1),
		staffWithSubs("s3", 1),
	}}
	p := NewPush(dir, pushConfig(), logging.NewNop())
	call := 0
	p.send = func(context.Context, models.PushSubscription, []byte) (int, error) {
		call++
		if call == 2 {
			return 0, errors.New("connection refused")
		}
		return http.StatusCreated, nil
	}

	n, err := p.Send(context.Background(), models.NewAlert("o1", "m", models.SeverityHigh, models.OrderContext{}))
	if err != nil {
		t.Fatalf("one endpoint failure surfaced as channel error: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
	if call != 3 {
		t.Errorf("attempts = %d, one failure stopped the fan-out", call)
	}
}

func TestPushExpiredSubscriptionIsSoftFailure(t *testing.T) {
	dir := &fakeDirectory{recipients: []models.Recipient{staffWithSubs("s1", 2)}}
	p := NewPush(dir, pushConfig(), logging.NewNop())
	call := 0
	p.send = func(context.Context, models.PushSubscription, []byte) (int, error) {
		call++
		if call == 1 {
			return http.StatusGone, nil
		}
		return http.StatusCreated, nil
	}

	n, err := p.Send(context.Background(), models.NewAlert("o1", "m", models.SeverityHigh, models.OrderContext{}))
	if n != 1 || err != nil {
		t.Errorf("got (%d, %v), want (1, nil): gone endpoint must not count or error", n, err)
	}
}

func TestPushDirectoryErrorPropagates(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("db down")}
	p := NewPush(dir, pushConfig(), logging.NewNop())

	if _, err := p.Send(context.Background(), models.NewAlert("o1", "m", models.SeverityHigh, models.OrderContext{})); err == nil {
		t.Error("directory failure swallowed; the orchestrator needs it to mark the channel failed")
	}
}

func TestPushPayloadShape(t *testing.T) {
	alert := models.NewAlert("order-5", "Soft diet urgent", models.SeverityCritical, models.OrderContext{
		ResidentName: "B. Tran", Room: "4A",
	})
	payload := buildPushPayload(alert, "https://dash.example.org")

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"title", "body", "icon", "badge", "data", "actions"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
	data := decoded["data"].(map[string]interface{})
	if data["alertId"] != alert.ID || data["sourceOrderId"] != "order-5" || data["severity"] != "critical" {
		t.Errorf("payload data = %v", data)
	}
	if data["url"] != "https://dash.example.org/orders/order-5" {
		t.Errorf("deep link = %v", data["url"])
	}
}
