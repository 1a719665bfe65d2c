package paymentsrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"paygate/internal/infra/dbx"
)

type LogsRepository struct{ q dbx.Querier }

func NewLogsRepository(q dbx.Querier) *LogsRepository {
	return &LogsRepository{q: q}
}

// InsertPaymentLog stores an audit row. A payload that cannot be encoded is stored as NULL.
func (r *LogsRepository) InsertPaymentLog(ctx context.Context, l PaymentLog) error {
	var jb []byte
	if l.Payload != nil {
		if b, err := json.Marshal(l.Payload); err == nil {
			jb = b
		}
	}

	var refID *string
	if l.RefID != "" {
		refID = &l.RefID
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_logs (ref_id, provider, log_type, payload)
		VALUES ($1, $2, $3, $4)
	`, refID, l.Provider, l.LogType, jb)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}
