package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagelink/gig-backend/internal/models"
)

type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Enqueue ставит выплату в очередь. Уникальный индекс по project_id
// гарантирует одну заявку на проект: повторная постановка возвращает
// уже существующую строку.
func (r *PayoutRepository) Enqueue(ctx context.Context, p *models.Payout) error {
	query := `
		INSERT INTO payouts (user_id, project_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO UPDATE SET project_id = payouts.project_id
		RETURNING id, status, attempts, created_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.ProjectID, p.Amount, p.Currency, models.PayoutStatusPending)
	if err := row.Scan(&p.ID, &p.Status, &p.Attempts, &p.CreatedAt); err != nil {
		return fmt.Errorf("payout repository: enqueue %w", err)
	}
	return nil
}

// MarkSent фиксирует успешную отправку выплаты провайдеру.
func (r *PayoutRepository) MarkSent(ctx context.Context, id uuid.UUID, payoutRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payouts SET status = $2, payout_ref = $3, sent_at = NOW()
		WHERE id = $1
	`, id, models.PayoutStatusSent, payoutRef)
	if err != nil {
		return fmt.Errorf("payout repository: mark sent %w", err)
	}
	return nil
}

// MarkFailed фиксирует неудачную попытку; заявка остаётся в очереди
// повторной отправки.
func (r *PayoutRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payouts SET status = $2, attempts = attempts + 1, last_error = $3
		WHERE id = $1
	`, id, models.PayoutStatusFailed, lastError)
	if err != nil {
		return fmt.Errorf("payout repository: mark failed %w", err)
	}
	return nil
}

// ListRetryable возвращает неотправленные выплаты для повторной попытки.
func (r *PayoutRepository) ListRetryable(ctx context.Context, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE status IN ($1, $2)
		ORDER BY created_at LIMIT $3
	`, models.PayoutStatusPending, models.PayoutStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("payout repository: list retryable %w", err)
	}
	return payouts, nil
}
