package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"meal-alert-service/internal/db"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

type fakeStore struct {
	alerts map[string]models.Alert
	acked  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: map[string]models.Alert{}, acked: map[string]string{}}
}

func (f *fakeStore) CreateAlert(_ context.Context, a models.Alert) error {
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeStore) GetAlert(_ context.Context, id string) (models.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return models.Alert{}, db.ErrAlertNotFound
	}
	return a, nil
}

func (f *fakeStore) Acknowledge(_ context.Context, id, by string) error {
	if _, ok := f.alerts[id]; !ok {
		return db.ErrAlertNotFound
	}
	if _, done := f.acked[id]; done {
		return db.ErrAlreadyAcknowledged
	}
	f.acked[id] = by
	return nil
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []models.Alert
}

func (f *fakeDeliverer) DeliverWithRetry(_ context.Context, a models.Alert, _ int) models.DeliveryReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, a)
	return models.DeliveryReport{AlertID: a.ID}
}

func newTestRouter(store *fakeStore, del *fakeDeliverer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, del, logging.NewNop(), 3)
	r := gin.New()
	r.POST("/api/v0/alerts", h.CreateAlert)
	r.GET("/api/v0/alerts/:id", h.GetAlert)
	r.POST("/api/v0/alerts/:id/ack", h.AckAlert)
	return r
}

func TestCreateAlert(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store, &fakeDeliverer{})

	body := `{"source_order_id":"order-3","message":"Puree lunch overdue","severity":"critical","room":"12"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v0/alerts", strings.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created models.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.SourceOrderID != "order-3" || created.Severity != models.SeverityCritical {
		t.Errorf("created = %+v", created)
	}
	if _, ok := store.alerts[created.ID]; !ok {
		t.Error("alert not persisted")
	}
}

func TestCreateAlertRejectsMissingFields(t *testing.T) {
	r := newTestRouter(newFakeStore(), &fakeDeliverer{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v0/alerts", strings.NewReader(`{"message":"m"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	r := newTestRouter(newFakeStore(), &fakeDeliverer{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/alerts/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAckAlert(t *testing.T) {
	store := newFakeStore()
	alert := models.NewAlert("order-4", "m", models.SeverityHigh, models.OrderContext{})
	store.alerts[alert.ID] = alert
	r := newTestRouter(store, &fakeDeliverer{})

	ack := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v0/alerts/"+alert.ID+"/ack",
			strings.NewReader(`{"acknowledged_by":"nurse-2"}`)))
		return w
	}

	if w := ack(); w.Code != http.StatusOK {
		t.Fatalf("first ack status = %d, want 200", w.Code)
	}
	if store.acked[alert.ID] != "nurse-2" {
		t.Errorf("acknowledged_by = %q", store.acked[alert.ID])
	}
	if w := ack(); w.Code != http.StatusConflict {
		t.Errorf("repeat ack status = %d, want 409", w.Code)
	}
}
