package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// AlertSink creates alert records for incoming urgent-order events.
type AlertSink interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
}

// Deliverer hands new alerts to the delivery orchestrator.
type Deliverer interface {
	DeliverWithRetry(ctx context.Context, alert models.Alert, maxRetries int) models.DeliveryReport
}

// Consumer reads urgent-order events and turns each into an alert plus a
// delivery pass.
type Consumer struct {
	reader     *kafka.Reader
	store      AlertSink
	deliverer  Deliverer
	logger     *logging.Logger
	maxRetries int
}

func NewConsumer(brokers []string, topic, groupID string, store AlertSink, deliverer Deliverer,
	logger *logging.Logger, maxRetries int) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:     reader,
		store:      store,
		deliverer:  deliverer,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Start consumes until the context is cancelled or the reader is closed.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				return
			}
			c.handle(ctx, msg.Value)
		}
	}()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// handle validates one event and runs the full delivery path. Malformed
// messages are logged and skipped.
func (c *Consumer) handle(ctx context.Context, value []byte) {
	var ev models.OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		c.logger.Errorf("Unmarshal order event failed: %v", err)
		return
	}
	if ev.OrderID == "" {
		c.logger.Errorf("Invalid order event: missing order_id")
		return
	}

	message := ev.Message
	if message == "" {
		message = fmt.Sprintf("Urgent meal order for %s", ev.ResidentName)
	}

	alert := models.NewAlert(ev.OrderID, message, models.ParseSeverity(ev.Severity), models.OrderContext{
		MealType:     ev.MealType,
		ResidentName: ev.ResidentName,
		Room:         ev.Room,
	})

	if err := c.store.CreateAlert(ctx, alert); err != nil {
		c.logger.Errorf("Create alert for order %s failed: %v", ev.OrderID, err)
		return
	}

	report := c.deliverer.DeliverWithRetry(ctx, alert, c.maxRetries)
	c.logger.Infof("Alert %s for order %s delivered (%d/%d channels succeeded)",
		alert.ID, ev.OrderID, report.SuccessfulChannels, len(report.Results))
}
