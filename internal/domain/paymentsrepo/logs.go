package paymentsrepo

import (
	"context"
	"time"
)

// Log types recorded in payment_logs.
const (
	LogRequest  = "request"
	LogResponse = "response"
	LogCallback = "callback"
	LogError    = "error"
)

type PaymentLog struct {
	ID        int64     `json:"id"`
	RefID     string    `json:"ref_id"`
	Provider  string    `json:"provider"`
	LogType   string    `json:"log_type"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LogsStore interface {
	InsertPaymentLog(ctx context.Context, l PaymentLog) error
}
