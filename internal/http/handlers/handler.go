package handlers

import (
	"dropmarket-order-service/internal/config"
	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/queue"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *pgxpool.Pool
	Logger   *zap.Logger
	Config   config.Config
	Queue    *queue.Client
	Payments *payment.Client
}
