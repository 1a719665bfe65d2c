package paymentsrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paygate/internal/infra/dbx"
	"paygate/internal/payments"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation = "23505"
	refIDConstraint = "payments_ref_id_key"
)

const paymentColumns = `
	id, ref_id, provider, provider_order_id, name, payer_id, amount::text, currency, contact,
	state, native_status, code, msg, details, created_at, updated_at`

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner, extra ...any) (*Payment, error) {
	var (
		p       Payment
		amount  string
		details []byte
	)
	dest := append([]any{
		&p.ID, &p.RefID, &p.Provider, &p.ProviderOrderID, &p.Name, &p.PayerID, &amount, &p.Currency,
		&p.Contact, &p.State, &p.NativeStatus, &p.Code, &p.Msg, &details, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment %s amount %q: %w", p.RefID, amount, err)
	}
	if p.Details, err = payments.DecodeDetails(p.Provider, details); err != nil {
		return nil, fmt.Errorf("payment %s: %w", p.RefID, err)
	}
	return &p, nil
}

func encodeDetails(d payments.Details) ([]byte, error) {
	if d == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %s details: %w", d.Provider(), err)
	}
	return b, nil
}

func (r *Repository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	details, err := encodeDetails(p.Details)
	if err != nil {
		return nil, err
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO payments (ref_id, provider, provider_order_id, name, payer_id, amount, currency,
		                      contact, state, native_status, code, msg, details)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13::jsonb)
		RETURNING `+paymentColumns,
		p.RefID, p.Provider, p.ProviderOrderID, p.Name, p.PayerID, p.Amount.String(), p.Currency,
		p.Contact, p.State, p.NativeStatus, p.Code, p.Msg, details,
	)
	created, err := scanPayment(row)
	if err != nil {
		return nil, createError(p.RefID, err)
	}
	return created, nil
}

// createError reports a duplicate reference only for the ref_id constraint. Other unique
// violations, such as a reused provider order id, stay internal errors.
func createError(refID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == refIDConstraint {
		return fmt.Errorf("create payment %s: %w", refID, payments.ErrDuplicateReference)
	}
	return fmt.Errorf("create payment %s: %w", refID, err)
}

func (r *Repository) GetByRefID(ctx context.Context, refID string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE ref_id=$1`, refID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByProviderRef(ctx context.Context, provider payments.Provider, ref string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = $1 AND provider_order_id = $2
		LIMIT 1
	`, provider, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by provider_order_id: %w", err)
	}
	return p, nil
}

// ApplyStatus is a single conditional UPDATE, so concurrent callbacks and polls for the same
// ref_id serialise on the row lock and a terminal row is never rewritten.
func (r *Repository) ApplyStatus(ctx context.Context, refID string, u StatusUpdate) (*Payment, bool, error) {
	details, err := encodeDetails(u.Details)
	if err != nil {
		return nil, false, err
	}

	var native, code, msg, state *string
	if u.NativeStatus != "" {
		st := payments.MapStatus(u.NativeStatus)
		s := string(st.State())
		native, code, msg, state = &u.NativeStatus, &st.Code, &st.Message, &s
	}
	var orderID *string
	if u.ProviderOrderID != "" {
		orderID = &u.ProviderOrderID
	}

	p, err := scanPayment(r.q.QueryRow(ctx, `
		UPDATE payments
		   SET native_status     = COALESCE($2, native_status),
		       code              = COALESCE($3, code),
		       msg               = COALESCE($4, msg),
		       state             = COALESCE($5, state),
		       provider_order_id = COALESCE($6, provider_order_id),
		       details           = details || $7::jsonb,
		       updated_at        = now()
		 WHERE ref_id = $1 AND state = 'PENDING'
		RETURNING `+paymentColumns,
		refID, native, code, msg, state, orderID, details,
	))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("apply status: %w", err)
	}

	// Either the ref is unknown or the payment is already terminal.
	current, err := r.GetByRefID(ctx, refID)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, fmt.Errorf("apply status %s: %w", refID, payments.ErrNotFound)
	}
	return current, false, nil
}

func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE state = 'PENDING' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns payments newest first with the total count for pagination.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Payment, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := r.q.Query(ctx, `
SELECT `+paymentColumns+`,
  COUNT(*) OVER() AS total_count
FROM payments
WHERE
  ($1 = '' OR state = $1)
  AND ($2 = '' OR provider = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3::timestamptz)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`,
		f.State,
		f.Provider,
		f.Since,
		f.Limit,
		f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Payment
		total int
	)
	for rows.Next() {
		var t int
		p, err := scanPayment(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}
