package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create сохраняет проект. Частичный уникальный индекс по post_id для
// нетерминальных статусов гарантирует не более одного активного проекта
// на объявление.
func (r *ProjectRepository) Create(ctx context.Context, p *models.GigProject) error {
	query := `
		INSERT INTO gig_projects (post_id, poster_id, provider_id, title, brief,
			amount, currency, platform_fee, payout_amount, deadline, status, chat_thread_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		p.PostID, p.PosterID, p.ProviderID, p.Title, p.Brief,
		p.Amount, p.Currency, p.PlatformFee, p.PayoutAmount, p.Deadline, p.Status, p.ChatThreadID)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("project repository: create %w", err)
	}
	return nil
}

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GigProject, error) {
	return common.GetByID[models.GigProject](ctx, r.db, "gig_projects", id, apperror.ErrProjectNotFound)
}

// UpdateStatus выполняет условный переход статуса проекта.
// Ровно один из конкурирующих вызовов изменит строку, остальные получат
// ErrStatusConflict.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_projects SET status = $3 WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("project repository: update status %w", err)
	}
	return common.CheckRowsAffected(res)
}

// UpdateStatusFromAny переводит проект в to из любого из перечисленных
// статусов (используется при открытии спора).
func (r *ProjectRepository) UpdateStatusFromAny(ctx context.Context, id uuid.UUID, from []string, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_projects SET status = $3 WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(from), to)
	if err != nil {
		return fmt.Errorf("project repository: update status from any %w", err)
	}
	return common.CheckRowsAffected(res)
}

// MarkDelivered переводит проект active -> delivered с отметкой времени.
func (r *ProjectRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_projects SET status = $3, delivered_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, models.ProjectStatusActive, models.ProjectStatusDelivered)
	if err != nil {
		return fmt.Errorf("project repository: mark delivered %w", err)
	}
	return common.CheckRowsAffected(res)
}

// SetCompleted переводит проект из from в completed с отметкой времени.
func (r *ProjectRepository) SetCompleted(ctx context.Context, id uuid.UUID, from string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gig_projects SET status = $3, completed_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, models.ProjectStatusCompleted)
	if err != nil {
		return fmt.Errorf("project repository: set completed %w", err)
	}
	return common.CheckRowsAffected(res)
}

// ListByParticipant возвращает проекты, где пользователь заказчик или исполнитель.
func (r *ProjectRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.GigProject, error) {
	var projects []models.GigProject
	err := r.db.SelectContext(ctx, &projects, `
		SELECT * FROM gig_projects
		WHERE poster_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("project repository: list by participant %w", err)
	}
	return projects, nil
}

// ListDeliveredBetween возвращает проекты, сданные в заданном окне
// (для напоминаний о подтверждении).
func (r *ProjectRepository) ListDeliveredBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error) {
	var projects []models.GigProject
	err := r.db.SelectContext(ctx, &projects, `
		SELECT * FROM gig_projects
		WHERE status = $1 AND delivered_at BETWEEN $2 AND $3
		ORDER BY delivered_at
	`, models.ProjectStatusDelivered, from, to)
	if err != nil {
		return nil, fmt.Errorf("project repository: list delivered between %w", err)
	}
	return projects, nil
}

// ListCancelledUnrefunded возвращает отменённые проекты, по объявлению
// которых деньги заказчику ещё не вернулись (сбой шлюза при отмене).
// Кандидаты для повторного возврата планировщиком.
func (r *ProjectRepository) ListCancelledUnrefunded(ctx context.Context, limit int) ([]models.GigProject, error) {
	var projects []models.GigProject
	err := r.db.SelectContext(ctx, &projects, `
		SELECT p.* FROM gig_projects p
		JOIN gig_posts g ON g.id = p.post_id
		WHERE p.status = $1 AND g.payment_status = ANY($2)
		ORDER BY p.created_at LIMIT $3
	`, models.ProjectStatusCancelled,
		pq.Array([]string{models.PaymentStatusAuthorized, models.PaymentStatusEscrowed, models.PaymentStatusCaptured}),
		limit)
	if err != nil {
		return nil, fmt.Errorf("project repository: list cancelled unrefunded %w", err)
	}
	return projects, nil
}

// ListCompletedBetween возвращает проекты, завершённые в заданном окне
// (для приглашений к взаимной оценке).
func (r *ProjectRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error) {
	var projects []models.GigProject
	err := r.db.SelectContext(ctx, &projects, `
		SELECT * FROM gig_projects
		WHERE status = $1 AND completed_at BETWEEN $2 AND $3
		ORDER BY completed_at
	`, models.ProjectStatusCompleted, from, to)
	if err != nil {
		return nil, fmt.Errorf("project repository: list completed between %w", err)
	}
	return projects, nil
}
