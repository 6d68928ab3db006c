package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open атомарно создаёт спор и замораживает проект: вставка строки спора
// и условный перевод проекта в disputed выполняются в одной транзакции,
// чтобы спор не мог существовать без заморозки и наоборот.
// Частичный уникальный индекс по project_id (open/under_review)
// гарантирует не более одного активного спора на проект.
func (r *DisputeRepository) Open(ctx context.Context, d *models.Dispute, fromStatuses []string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx, `
			INSERT INTO disputes (project_id, raised_by, against, reason, evidence, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, d.ProjectID, d.RaisedBy, d.Against, d.Reason, d.Evidence, models.DisputeStatusOpen)
		if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
			if common.IsUniqueViolation(err) {
				return common.ErrAlreadyExists
			}
			return fmt.Errorf("dispute repository: create %w", err)
		}
		d.Status = models.DisputeStatusOpen

		res, err := tx.ExecContext(ctx, `
			UPDATE gig_projects SET status = $3 WHERE id = $1 AND status = ANY($2)
		`, d.ProjectID, pq.Array(fromStatuses), models.ProjectStatusDisputed)
		if err != nil {
			return fmt.Errorf("dispute repository: freeze project %w", err)
		}
		return common.CheckRowsAffected(res)
	})
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, apperror.ErrDisputeNotFound)
}

// GetActiveByProjectID возвращает открытый или рассматриваемый спор проекта.
func (r *DisputeRepository) GetActiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes
		WHERE project_id = $1 AND status IN ($2, $3)
	`, projectID, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by project %w", err)
	}
	return &d, nil
}

// GetResolvedByProjectID возвращает последний разрешённый спор проекта.
func (r *DisputeRepository) GetResolvedByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes
		WHERE project_id = $1 AND status IN ($2, $3)
		ORDER BY resolved_at DESC LIMIT 1
	`, projectID, models.DisputeStatusResolvedRelease, models.DisputeStatusResolvedRefund)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get resolved by project %w", err)
	}
	return &d, nil
}

// SetCounterResponse сохраняет ответ и контрдоказательства стороны "против"
// и переводит спор open -> under_review. Для закрытого спора вернёт
// ErrStatusConflict.
func (r *DisputeRepository) SetCounterResponse(ctx context.Context, id uuid.UUID, response string, evidence []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET counter_response = $2, counter_evidence = $3, status = $4
		WHERE id = $1 AND status IN ($5, $4)
	`, id, response, pq.StringArray(evidence), models.DisputeStatusUnderReview, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: set counter response %w", err)
	}
	return common.CheckRowsAffected(res)
}

// Resolve переводит спор в терминальный статус. Повторное разрешение
// вернёт ErrStatusConflict — финансовое действие выполняется ровно один раз.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, status string, resolvedBy uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolved_by = $3, resolved_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, status, resolvedBy, models.DisputeStatusOpen, models.DisputeStatusUnderReview)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	return common.CheckRowsAffected(res)
}

// ListByUser возвращает споры, в которых пользователь участвует.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE raised_by = $1 OR against = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}
