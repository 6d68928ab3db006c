package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type GigRepository struct {
	db *sqlx.DB
}

func NewGigRepository(db *sqlx.DB) *GigRepository {
	return &GigRepository{db: db}
}

// Create сохраняет новое объявление. Вызывается только после успешного
// холда в платёжном шлюзе, поэтому payment_status сразу escrowed.
func (r *GigRepository) Create(ctx context.Context, post *models.GigPost) error {
	query := `
		INSERT INTO gig_posts (poster_id, title, description, amount, currency,
			urgent_status, payment_status, hold_ref, expires_at, date_needed, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		post.PosterID, post.Title, post.Description, post.Amount, post.Currency,
		post.UrgentStatus, post.PaymentStatus, post.HoldRef, post.ExpiresAt, post.DateNeeded, post.Location)
	if err := row.Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return fmt.Errorf("gig repository: create %w", err)
	}
	return nil
}

// GetByID возвращает объявление по идентификатору.
func (r *GigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GigPost, error) {
	return common.GetByID[models.GigPost](ctx, r.db, "gig_posts", id, apperror.ErrGigNotFound)
}

// SetMatched переводит объявление searching -> confirmed и фиксирует
// выбранного исполнителя. Условный UPDATE гарантирует, что из двух
// одновременных подтверждений пройдёт ровно одно.
func (r *GigRepository) SetMatched(ctx context.Context, id, providerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_posts
		SET urgent_status = $3, selected_provider_id = $2, updated_at = NOW()
		WHERE id = $1 AND urgent_status = $4
	`, id, providerID, models.GigStatusConfirmed, models.GigStatusSearching)
	if err != nil {
		return fmt.Errorf("gig repository: set matched %w", err)
	}
	return common.CheckRowsAffected(res)
}

// ReopenSearch возвращает объявление confirmed -> searching после отказа
// исполнителя от договорённости.
func (r *GigRepository) ReopenSearch(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_posts
		SET urgent_status = $2, selected_provider_id = NULL, updated_at = NOW()
		WHERE id = $1 AND urgent_status = $3
	`, id, models.GigStatusSearching, models.GigStatusConfirmed)
	if err != nil {
		return fmt.Errorf("gig repository: reopen search %w", err)
	}
	return common.CheckRowsAffected(res)
}

// UpdatePaymentStatus выполняет условный переход платёжного статуса.
// chargeRef сохраняется при переходе escrowed -> captured.
func (r *GigRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to string, chargeRef *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_posts
		SET payment_status = $3, charge_ref = COALESCE($4, charge_ref), updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`, id, from, to, chargeRef)
	if err != nil {
		return fmt.Errorf("gig repository: update payment status %w", err)
	}
	return common.CheckRowsAffected(res)
}

// SetChargeRef сохраняет ссылку на списание после успешного захвата.
func (r *GigRepository) SetChargeRef(ctx context.Context, id uuid.UUID, chargeRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE gig_posts SET charge_ref = $2, updated_at = NOW() WHERE id = $1
	`, id, chargeRef)
	if err != nil {
		return fmt.Errorf("gig repository: set charge ref %w", err)
	}
	return nil
}

// CancelAndRefund атомарно закрывает объявление: urgent_status -> cancelled,
// payment_status (из ожидаемого) -> refunded. Повторный вызов после
// успешного перехода вернёт ErrStatusConflict.
func (r *GigRepository) CancelAndRefund(ctx context.Context, id uuid.UUID, fromPayment string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_posts
		SET urgent_status = $3, payment_status = $4, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2 AND urgent_status <> $3
	`, id, fromPayment, models.GigStatusCancelled, models.PaymentStatusRefunded)
	if err != nil {
		return fmt.Errorf("gig repository: cancel and refund %w", err)
	}
	return common.CheckRowsAffected(res)
}

// ListByPoster возвращает объявления пользователя.
func (r *GigRepository) ListByPoster(ctx context.Context, posterID uuid.UUID, limit, offset int) ([]models.GigPost, error) {
	var posts []models.GigPost
	err := r.db.SelectContext(ctx, &posts, `
		SELECT * FROM gig_posts WHERE poster_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, posterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("gig repository: list by poster %w", err)
	}
	return posts, nil
}

// ListExpiredSearching возвращает просроченные объявления без подтверждённого
// исполнителя — кандидаты на отмену и возврат средств.
func (r *GigRepository) ListExpiredSearching(ctx context.Context, now time.Time, limit int) ([]models.GigPost, error) {
	var posts []models.GigPost
	err := r.db.SelectContext(ctx, &posts, `
		SELECT * FROM gig_posts
		WHERE urgent_status = $1 AND expires_at < $2
		ORDER BY expires_at LIMIT $3
	`, models.GigStatusSearching, now, limit)
	if err != nil {
		return nil, fmt.Errorf("gig repository: list expired %w", err)
	}
	return posts, nil
}

// ListConfirmedStartingBetween возвращает подтверждённые объявления,
// которые начинаются в заданном окне (для напоминаний перед стартом).
func (r *GigRepository) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.GigPost, error) {
	var posts []models.GigPost
	err := r.db.SelectContext(ctx, &posts, `
		SELECT * FROM gig_posts
		WHERE urgent_status = $1 AND date_needed BETWEEN $2 AND $3
		ORDER BY date_needed
	`, models.GigStatusConfirmed, from, to)
	if err != nil {
		return nil, fmt.Errorf("gig repository: list starting between %w", err)
	}
	return posts, nil
}
