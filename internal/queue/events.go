package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dropmarket-order-service/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "dropmarket.events"
	EventsQueue    = "dropmarket.events.notify"

	NotificationJobsExchange = "dropmarket.notification_jobs"
	NotificationJobsQueue    = "dropmarket.notification_jobs.process"
	NotificationJobsDLQ      = "dropmarket.notification_jobs.dlq"
	NotificationJobsRK       = "process"
	NotificationJobsDeadRK   = "dead"
)

// Routing keys published on the events exchange.
const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderFailed   = "order.failed"
	EventOrderRefunded = "order.refunded"
	EventDropSoldOut   = "drop.sold_out"
	EventDropApproved  = "drop.approved"
)

// OrderEvent is the envelope published for every order lifecycle change and
// for drops selling out. Consumers resolve details from the database; the
// envelope only carries identity.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     int64     `json:"orderId,omitempty"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	DropID      int64     `json:"dropId"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// PublishOrderEvent fans an event out on the topic exchange. The routing key
// is the event type, so consumers can bind to order.* or drop.* as needed.
func PublishOrderEvent(ctx context.Context, qc *Client, event OrderEvent) error {
	if qc == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return qc.PublishJSON(ctx, EventsExchange, event.Type, event)
}

// EnsureEventsTopology declares the topic exchange and the notify queue that
// feeds the translator worker.
func EnsureEventsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(EventsQueue); err != nil {
		return err
	}
	if err := qc.BindQueue(EventsQueue, EventsExchange, "order.*"); err != nil {
		return err
	}
	return qc.BindQueue(EventsQueue, EventsExchange, "drop.*")
}

func EnsureNotificationJobsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.EnsureExchangeKind(NotificationJobsExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(NotificationJobsDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(NotificationJobsDLQ, NotificationJobsExchange, NotificationJobsDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(NotificationJobsQueue, amqp.Table{
		"x-dead-letter-exchange":    NotificationJobsExchange,
		"x-dead-letter-routing-key": NotificationJobsDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(NotificationJobsQueue, NotificationJobsExchange, NotificationJobsRK)
}

// ProcessEventToJobs translates a lifecycle event into notification jobs for
// the downstream mailer worker. Unknown event types are acked and dropped.
func ProcessEventToJobs(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	if db == nil || qc == nil {
		return nil
	}

	var evt OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}
	if strings.TrimSpace(evt.Type) == "" {
		return nil
	}

	switch evt.Type {
	case EventOrderCreated, EventOrderPaid, EventOrderFailed, EventOrderRefunded:
		return publishOrderEmailJob(ctx, db, qc, evt)
	case EventDropSoldOut:
		return publishSoldOutJob(ctx, db, qc, evt)
	default:
		return nil
	}
}

func publishOrderEmailJob(ctx context.Context, db *pgxpool.Pool, qc *Client, evt OrderEvent) error {
	var (
		orderNumber   string
		dropName      string
		customerEmail string
		customerName  string
		totalPaid     pgtype.Numeric
		status        string
	)
	err := db.QueryRow(ctx, `
		SELECT order_number, drop_name, customer_email, customer_name, total_paid, payment_status
		FROM orders
		WHERE id = $1`,
		evt.OrderID,
	).Scan(&orderNumber, &dropName, &customerEmail, &customerName, &totalPaid, &status)
	if err != nil {
		return err
	}

	if strings.TrimSpace(customerEmail) == "" {
		return nil
	}

	job := map[string]any{
		"kind": "email.order_status",
		"payload": map[string]any{
			"event":         evt.Type,
			"orderNumber":   orderNumber,
			"dropName":      dropName,
			"customerName":  customerName,
			"customerEmail": customerEmail,
			"totalPaid":     utils.NumericToFloat64(totalPaid),
			"paymentStatus": status,
		},
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}

func publishSoldOutJob(ctx context.Context, db *pgxpool.Pool, qc *Client, evt OrderEvent) error {
	var (
		dropName    string
		vendorID    int64
		vendorEmail string
	)
	err := db.QueryRow(ctx, `
		SELECT d.name, v.id, v.email
		FROM drops d
		JOIN vendors v ON v.id = d.vendor_id
		WHERE d.id = $1`,
		evt.DropID,
	).Scan(&dropName, &vendorID, &vendorEmail)
	if err != nil {
		return err
	}

	job := map[string]any{
		"kind": "email.drop_sold_out",
		"payload": map[string]any{
			"dropId":      fmt.Sprintf("%d", evt.DropID),
			"dropName":    dropName,
			"vendorId":    fmt.Sprintf("%d", vendorID),
			"vendorEmail": vendorEmail,
		},
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}
