package escalation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

type fakeStore struct {
	alerts  []models.Alert
	created []models.Alert
	listErr error
}

func (f *fakeStore) CreateAlert(_ context.Context, a models.Alert) error {
	f.created = append(f.created, a)
	return nil
}

func (f *fakeStore) ListUnacknowledgedBefore(_ context.Context, cutoff time.Time) ([]models.Alert, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Alert
	for _, a := range f.alerts {
		if !a.Acknowledged && !a.CreatedAt.After(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	recipients []models.Recipient
	err        error
}

func (f *fakeDirectory) FindByRole(_ context.Context, _ string) ([]models.Recipient, error) {
	return f.recipients, f.err
}

type fakeDeliverer struct {
	delivered []models.Alert
}

func (f *fakeDeliverer) DeliverWithRetry(_ context.Context, a models.Alert, _ int) models.DeliveryReport {
	f.delivered = append(f.delivered, a)
	var r models.DeliveryReport
	r.AlertID = a.ID
	r.Append(models.DeliveryResult{Channel: models.ChannelDashboard, Success: true, RecipientCount: 1})
	return r
}

func agedAlert(age time.Duration, now time.Time, acked bool) models.Alert {
	a := models.NewAlert("order-1", "Puree lunch not started", models.SeverityHigh, models.OrderContext{Room: "3"})
	a.CreatedAt = now.Add(-age)
	a.Acknowledged = acked
	return a
}

func newTestScheduler(store *fakeStore, dir *fakeDirectory, del *fakeDeliverer, now time.Time) *Scheduler {
	s := New(store, dir, del, logging.NewNop(), 5*time.Minute, 30*time.Minute, 2)
	s.now = func() time.Time { return now }
	return s
}

func TestScanIgnoresFreshAlerts(t *testing.T) {
	now := time.Now()
	store := &fakeStore{alerts: []models.Alert{agedAlert(10*time.Minute, now, false)}}
	dir := &fakeDirectory{recipients: []models.Recipient{{ID: "admin-1"}}}
	del := &fakeDeliverer{}

	newTestScheduler(store, dir, del, now).Scan(context.Background())

	if len(store.created) != 0 || len(del.delivered) != 0 {
		t.Errorf("fresh alert escalated: created=%d delivered=%d", len(store.created), len(del.delivered))
	}
}

func TestScanIgnoresAcknowledgedAlerts(t *testing.T) {
	now := time.Now()
	store := &fakeStore{alerts: []models.Alert{agedAlert(2*time.Hour, now, true)}}
	dir := &fakeDirectory{recipients: []models.Recipient{{ID: "admin-1"}}}
	del := &fakeDeliverer{}

	newTestScheduler(store, dir, del, now).Scan(context.Background())

	if len(store.created) != 0 {
		t.Errorf("acknowledged alert escalated %d times", len(store.created))
	}
}

func TestScanEscalatesPerAdministrator(t *testing.T) {
	now := time.Now()
	orig := agedAlert(45*time.Minute, now, false)
	store := &fakeStore{alerts: []models.Alert{orig}}
	dir := &fakeDirectory{recipients: []models.Recipient{{ID: "admin-1"}, {ID: "admin-2"}}}
	del := &fakeDeliverer{}

	newTestScheduler(store, dir, del, now).Scan(context.Background())

	if len(store.created) != 2 {
		t.Fatalf("created %d escalation alerts, want one per administrator", len(store.created))
	}
	if len(del.delivered) != 2 {
		t.Fatalf("delivered %d escalation alerts, want 2", len(del.delivered))
	}
	for _, esc := range store.created {
		if esc.Severity != models.SeverityCritical {
			t.Errorf("escalation severity = %s, want critical", esc.Severity)
		}
		if esc.SourceOrderID != orig.SourceOrderID {
			t.Errorf("source order not carried over: %s", esc.SourceOrderID)
		}
		if !strings.Contains(esc.Message, orig.Message) {
			t.Errorf("escalation message %q does not reference original", esc.Message)
		}
		if !strings.Contains(esc.Message, orig.CreatedAt.Format("2006-01-02 15:04:05")) {
			t.Errorf("escalation message %q does not reference original creation time", esc.Message)
		}
		if esc.ID == orig.ID {
			t.Error("escalation reused original alert id")
		}
	}
}

func TestScanSkipsCycleWithoutAdministrators(t *testing.T) {
	now := time.Now()
	store := &fakeStore{alerts: []models.Alert{agedAlert(time.Hour, now, false)}}
	del := &fakeDeliverer{}

	newTestScheduler(store, &fakeDirectory{}, del, now).Scan(context.Background())

	if len(store.created) != 0 {
		t.Errorf("escalated with no administrators on duty")
	}
}

func TestScanSkipsCycleOnDirectoryError(t *testing.T) {
	now := time.Now()
	store := &fakeStore{alerts: []models.Alert{agedAlert(time.Hour, now, false)}}
	dir := &fakeDirectory{err: errors.New("db down")}
	del := &fakeDeliverer{}

	newTestScheduler(store, dir, del, now).Scan(context.Background())

	if len(store.created) != 0 || len(del.delivered) != 0 {
		t.Error("cycle not skipped on directory failure")
	}
}

func TestScanSkipsCycleOnStoreError(t *testing.T) {
	now := time.Now()
	store := &fakeStore{listErr: errors.New("query timeout")}
	dir := &fakeDirectory{recipients: []models.Recipient{{ID: "admin-1"}}}
	del := &fakeDeliverer{}

	newTestScheduler(store, dir, del, now).Scan(context.Background())

	if len(del.delivered) != 0 {
		t.Error("cycle not skipped on store failure")
	}
}

func TestScanReEscalatesEveryQualifyingCycle(t *testing.T) {
	// No escalated-once marker exists: an alert ignored across cycles is
	// escalated again each time.
	now := time.Now()
	store := &fakeStore{alerts: []models.Alert{agedAlert(time.Hour, now, false)}}
	dir := &fakeDirectory{recipients: []models.Recipient{{ID: "admin-1"}}}
	del := &fakeDeliverer{}
	s := newTestScheduler(store, dir, del, now)

	s.Scan(context.Background())
	firstPass := len(store.created)
	// Keep only the original qualifying alert in the scan set to model the
	// store filtering; the point is the original qualifies again.
	store.alerts = store.alerts[:1]
	s.Scan(context.Background())

	if len(store.created) != firstPass*2 {
		t.Errorf("second cycle created %d total, want %d", len(store.created), firstPass*2)
	}
}
