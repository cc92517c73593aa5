package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dropmarket-order-service/internal/config"
	"dropmarket-order-service/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server pushes order payment status to the checkout-return page. The socket
// is read-only convenience; webhook reconciliation remains the source of
// truth and clients must treat polled REST state as authoritative.
type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	return &Server{DB: db, Logger: logger, Config: cfg}
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

type orderStatus struct {
	PaymentStatus string
	PaidAt        *time.Time
}

func (s *Server) fetchOrderStatus(ctx context.Context, orderNumber string) (orderStatus, bool) {
	var status orderStatus
	var paidAt pgtype.Timestamptz
	err := s.DB.QueryRow(ctx, `
		SELECT payment_status, paid_at
		FROM orders
		WHERE order_number = $1`,
		orderNumber,
	).Scan(&status.PaymentStatus, &paidAt)
	if err != nil {
		return orderStatus{}, false
	}
	if paidAt.Valid {
		status.PaidAt = &paidAt.Time
	}
	return status, true
}

func isTerminalPaymentStatus(status string) bool {
	return status == "paid" || status == "failed" || status == "refunded"
}

// PublicOrderWS streams an order's payment status. Connect with
// ?orderNumber=...&token=... where token is the order's tracking token.
func (s *Server) PublicOrderWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	orderNumber := r.URL.Query().Get("orderNumber")
	token := r.URL.Query().Get("token")
	if orderNumber == "" || token == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	if !utils.VerifyOrderTrackingToken(s.Config.OrderTrackingTokenSecret, token, orderNumber) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "order not found"})
		return
	}

	ctx := r.Context()
	client := &wsClient{conn: conn}

	last, found := s.fetchOrderStatus(ctx, orderNumber)
	if !found {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "order not found"})
		return
	}
	_ = client.writeJSON(statusMessage(last))

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	interval := s.Config.WSOrderPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, ok := s.fetchOrderStatus(ctx, orderNumber)
			if !ok {
				if s.Logger != nil {
					s.Logger.Warn("order status poll failed", zap.String("orderNumber", orderNumber))
				}
				continue
			}
			if current.PaymentStatus == last.PaymentStatus {
				continue
			}
			last = current
			if err := client.writeJSON(statusMessage(current)); err != nil {
				return
			}
			if isTerminalPaymentStatus(current.PaymentStatus) {
				return
			}
		}
	}
}

func statusMessage(status orderStatus) map[string]any {
	msg := map[string]any{
		"type":          "order.status",
		"paymentStatus": status.PaymentStatus,
	}
	if status.PaidAt != nil {
		msg["paidAt"] = status.PaidAt.UTC().Format(time.RFC3339)
	}
	return msg
}
