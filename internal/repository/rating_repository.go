package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create сохраняет оценку. Уникальный индекс (project_id, rater_id)
// гарантирует не более одной оценки на пару (проект, оценщик).
func (r *RatingRepository) Create(ctx context.Context, rating *models.Rating) error {
	query := `
		INSERT INTO ratings (project_id, rater_id, ratee_id, overall,
			professionalism, punctuality, quality, payment_promptness, review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		rating.ProjectID, rating.RaterID, rating.RateeID, rating.Overall,
		rating.Professionalism, rating.Punctuality, rating.Quality,
		rating.PaymentPromptness, rating.Review)
	if err := row.Scan(&rating.ID, &rating.CreatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("rating repository: create %w", err)
	}
	return nil
}

// GetByProjectAndRater возвращает оценку пользователя по проекту,
// nil если оценки ещё нет.
func (r *RatingRepository) GetByProjectAndRater(ctx context.Context, projectID, raterID uuid.UUID) (*models.Rating, error) {
	var rating models.Rating
	err := r.db.GetContext(ctx, &rating, `
		SELECT * FROM ratings WHERE project_id = $1 AND rater_id = $2
	`, projectID, raterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rating repository: get by project and rater %w", err)
	}
	return &rating, nil
}

// ListByProject возвращает все оценки проекта (максимум две).
func (r *RatingRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.SelectContext(ctx, &ratings, `
		SELECT * FROM ratings WHERE project_id = $1 ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("rating repository: list by project %w", err)
	}
	return ratings, nil
}

// ListVisibleByRatee возвращает оценки пользователя только по проектам,
// где выполнено условие взаимности: встречная оценка тоже существует.
func (r *RatingRepository) ListVisibleByRatee(ctx context.Context, rateeID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.SelectContext(ctx, &ratings, `
		SELECT r.* FROM ratings r
		WHERE r.ratee_id = $1
		  AND EXISTS (
			SELECT 1 FROM ratings r2
			WHERE r2.project_id = r.project_id
			  AND r2.rater_id = r.ratee_id
			  AND r2.ratee_id = r.rater_id
		  )
		ORDER BY r.created_at DESC LIMIT $2 OFFSET $3
	`, rateeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("rating repository: list visible by ratee %w", err)
	}
	return ratings, nil
}

// GetVisibleAverage возвращает средний общий балл и количество по видимому
// (взаимному) подмножеству оценок пользователя.
func (r *RatingRepository) GetVisibleAverage(ctx context.Context, rateeID uuid.UUID) (float64, int, error) {
	var result struct {
		Average sql.NullFloat64 `db:"average"`
		Count   int             `db:"count"`
	}
	err := r.db.GetContext(ctx, &result, `
		SELECT AVG(r.overall) AS average, COUNT(*) AS count
		FROM ratings r
		WHERE r.ratee_id = $1
		  AND EXISTS (
			SELECT 1 FROM ratings r2
			WHERE r2.project_id = r.project_id
			  AND r2.rater_id = r.ratee_id
			  AND r2.ratee_id = r.rater_id
		  )
	`, rateeID)
	if err != nil {
		return 0, 0, fmt.Errorf("rating repository: get visible average %w", err)
	}
	return result.Average.Float64, result.Count, nil
}
