package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// AlertStore is the slice of the record store the scheduler needs.
// Escalation alerts are created through the same path as order alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	ListUnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]models.Alert, error)
}

// Directory resolves the current administrator recipient set.
type Directory interface {
	FindByRole(ctx context.Context, role string) ([]models.Recipient, error)
}

// Deliverer hands escalation alerts to the delivery orchestrator.
type Deliverer interface {
	DeliverWithRetry(ctx context.Context, alert models.Alert, maxRetries int) models.DeliveryReport
}

// Scheduler periodically scans for alerts unacknowledged past the age
// threshold and raises a new critical alert per administrator. An alert
// ignored for hours is re-escalated every qualifying cycle; there is no
// escalated-once marker.
type Scheduler struct {
	store      AlertStore
	directory  Directory
	deliverer  Deliverer
	logger     *logging.Logger
	interval   time.Duration
	threshold  time.Duration
	maxRetries int

	cron *cron.Cron
	now  func() time.Time
}

func New(store AlertStore, directory Directory, deliverer Deliverer, logger *logging.Logger,
	interval, threshold time.Duration, maxRetries int) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &Scheduler{
		store:      store,
		directory:  directory,
		deliverer:  deliverer,
		logger:     logger,
		interval:   interval,
		threshold:  threshold,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Start registers the recurring scan and runs one immediately so alerts
// already overdue at process start are caught without waiting a full
// interval.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.Scan(context.Background()) }); err != nil {
		return fmt.Errorf("register escalation schedule: %w", err)
	}
	s.cron.Start()
	go s.Scan(context.Background())
	s.logger.Infof("Escalation scheduler started (interval %s, threshold %s)", s.interval, s.threshold)
	return nil
}

// Stop cancels the recurring scan. In-flight deliveries finish on their
// own.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Scan runs one escalation cycle. Any failure is logged and the cycle
// skipped; the schedule always continues at the next interval.
func (s *Scheduler) Scan(ctx context.Context) {
	cutoff := s.now().Add(-s.threshold)
	overdue, err := s.store.ListUnacknowledgedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Errorf("Escalation scan failed, skipping cycle: %v", err)
		return
	}
	if len(overdue) == 0 {
		s.logger.Debugf("Escalation scan: nothing overdue")
		return
	}

	admins, err := s.directory.FindByRole(ctx, models.RoleAdministrator)
	if err != nil {
		s.logger.Errorf("Administrator lookup failed, skipping escalation cycle: %v", err)
		return
	}
	if len(admins) == 0 {
		s.logger.Warnf("No active administrators, skipping escalation for %d overdue alert(s)", len(overdue))
		return
	}

	for _, orig := range overdue {
		for _, admin := range admins {
			esc := models.NewAlert(
				orig.SourceOrderID,
				fmt.Sprintf("ESCALATION: alert %q raised at %s is still unacknowledged",
					orig.Message, orig.CreatedAt.Format("2006-01-02 15:04:05")),
				models.SeverityCritical,
				orig.Context,
			)
			if err := s.store.CreateAlert(ctx, esc); err != nil {
				s.logger.Errorf("Create escalation alert for %s failed: %v", orig.ID, err)
				continue
			}

			report := s.deliverer.DeliverWithRetry(ctx, esc, s.maxRetries)
			s.logger.Infof("Escalated alert %s to %s as %s (%d/%d channels succeeded)",
				orig.ID, admin.ID, esc.ID, report.SuccessfulChannels, len(report.Results))
		}
	}
}
