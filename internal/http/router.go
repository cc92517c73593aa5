package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"dropmarket-order-service/internal/config"
	"dropmarket-order-service/internal/http/handlers"
	"dropmarket-order-service/internal/middleware"
	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/queue"
	"dropmarket-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, payments *payment.Client, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient, Payments: payments}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/drops", h.PublicDropsList)
		r.Get("/drops/{dropId}", h.PublicDropDetail)
		r.Post("/orders", h.PublicOrderCreate)
		r.Get("/orders/{orderNumber}", h.PublicOrderDetail)
		r.Post("/orders/{orderNumber}/checkout", h.PublicOrderCheckout)
	})

	r.Post("/api/webhooks/payment", h.PaymentWebhook)

	r.Route("/api/vendor", func(r chi.Router) {
		r.Use(middleware.VendorAuth(db, cfg.JWTSecret))
		r.Get("/drops", h.VendorDropsList)
		r.Post("/drops", h.VendorDropCreate)
		r.Get("/drops/{dropId}", h.VendorDropDetail)
		r.Put("/drops/{dropId}", h.VendorDropUpdate)
		r.Delete("/drops/{dropId}", h.VendorDropDelete)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWTSecret))
		r.Get("/drops", h.AdminDropsList)
		r.Post("/drops/{dropId}/approve", h.AdminDropApprove)
		r.Post("/drops/{dropId}/reject", h.AdminDropReject)
	})

	r.Route("/api/internal/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.CronSecret))
		r.Post("/release-expired", h.CronReleaseExpired)
	})

	if wsServer != nil {
		r.Get("/ws/public/order", wsServer.PublicOrderWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
