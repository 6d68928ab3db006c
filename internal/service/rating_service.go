package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

// RatingStore описывает хранилище оценок.
type RatingStore interface {
	Create(ctx context.Context, rating *models.Rating) error
	GetByProjectAndRater(ctx context.Context, projectID, raterID uuid.UUID) (*models.Rating, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Rating, error)
	ListVisibleByRatee(ctx context.Context, rateeID uuid.UUID, limit, offset int) ([]models.Rating, error)
	GetVisibleAverage(ctx context.Context, rateeID uuid.UUID) (float64, int, error)
}

// DisputeLookup — проверка исхода спора при оценке отменённого проекта.
type DisputeLookup interface {
	GetResolvedByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error)
}

// SubmitRatingInput — оценка по пяти шкалам от 1 до 5.
type SubmitRatingInput struct {
	Overall           int
	Professionalism   int
	Punctuality       int
	Quality           int
	PaymentPromptness int
	Review            *string
}

// ProjectRatings — пара оценок по проекту с точки зрения запросившего.
// Counterpart заполняется только после того, как оценили обе стороны.
type ProjectRatings struct {
	Own         *models.Rating `json:"own,omitempty"`
	Counterpart *models.Rating `json:"counterpart,omitempty"`
}

// RatingService управляет двусторонними оценками. Оценка одностороння и
// неизменяема; третьим лицам пара раскрывается только целиком, чтобы
// вторая сторона не могла отомстить за уже увиденную низкую оценку.
type RatingService struct {
	ratings  RatingStore
	projects ProjectStore
	disputes DisputeLookup
	notifier Notifier
}

// NewRatingService создаёт сервис оценок.
func NewRatingService(ratings RatingStore, projects ProjectStore, disputes DisputeLookup, notifier Notifier) *RatingService {
	return &RatingService{
		ratings:  ratings,
		projects: projects,
		disputes: disputes,
		notifier: notifier,
	}
}

// Submit сохраняет оценку по проекту. Оценивать можно завершённый проект,
// а также отменённый через спор — опыт взаимодействия там состоялся.
// Повторная оценка отклоняется уникальным индексом (project, rater).
func (s *RatingService) Submit(ctx context.Context, raterID, projectID uuid.UUID, in SubmitRatingInput) (*models.Rating, error) {
	for _, score := range []int{in.Overall, in.Professionalism, in.Punctuality, in.Quality, in.PaymentPromptness} {
		if score < 1 || score > 5 {
			return nil, apperror.New(apperror.ErrCodeValidation, "оценка по каждой шкале должна быть от 1 до 5")
		}
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rateeID, ok := project.CounterpartOf(raterID)
	if !ok {
		return nil, apperror.ErrNotAuthorized
	}
	ratable, err := s.isRatable(ctx, project)
	if err != nil {
		return nil, err
	}
	if !ratable {
		return nil, apperror.New(apperror.ErrCodeConflict, "проект ещё нельзя оценить")
	}

	rating := &models.Rating{
		ProjectID:         projectID,
		RaterID:           raterID,
		RateeID:           rateeID,
		Overall:           in.Overall,
		Professionalism:   in.Professionalism,
		Punctuality:       in.Punctuality,
		Quality:           in.Quality,
		PaymentPromptness: in.PaymentPromptness,
		Review:            in.Review,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		if err == common.ErrAlreadyExists {
			return nil, apperror.ErrAlreadyRated
		}
		return nil, err
	}

	// Сама оценка не раскрывается до взаимности, уходит только факт.
	_ = s.notifier.Notify(ctx, rateeID, models.NotifyRatingPrompt, map[string]interface{}{
		"project_id": projectID,
		"title":      project.Title,
	})
	return rating, nil
}

// GetForProject возвращает оценки по проекту для его участника: свою
// всегда, оценку второй стороны — только когда оценили оба.
func (s *RatingService) GetForProject(ctx context.Context, actorID, projectID uuid.UUID) (*ProjectRatings, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counterpartID, ok := project.CounterpartOf(actorID)
	if !ok {
		return nil, apperror.ErrNotAuthorized
	}

	own, err := s.ratings.GetByProjectAndRater(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	result := &ProjectRatings{Own: own}
	if own == nil {
		return result, nil
	}

	counterpart, err := s.ratings.GetByProjectAndRater(ctx, projectID, counterpartID)
	if err != nil {
		return nil, err
	}
	result.Counterpart = counterpart
	return result, nil
}

// GetForUser возвращает публичный профиль оценок пользователя: среднее и
// список только по взаимно оценённым проектам.
func (s *RatingService) GetForUser(ctx context.Context, userID uuid.UUID, limit, offset int) (*models.UserRatingSummary, error) {
	avg, count, err := s.ratings.GetVisibleAverage(ctx, userID)
	if err != nil {
		return nil, err
	}
	ratings, err := s.ratings.ListVisibleByRatee(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	rounded, _ := decimal.NewFromFloat(avg).Round(2).Float64()
	return &models.UserRatingSummary{
		UserID:  userID,
		Average: rounded,
		Count:   count,
		Ratings: ratings,
	}, nil
}

func (s *RatingService) isRatable(ctx context.Context, project *models.GigProject) (bool, error) {
	switch project.Status {
	case models.ProjectStatusCompleted:
		return true, nil
	case models.ProjectStatusCancelled:
		d, err := s.disputes.GetResolvedByProjectID(ctx, project.ID)
		if err != nil {
			if err == apperror.ErrDisputeNotFound {
				return false, nil
			}
			return false, err
		}
		return d.Status == models.DisputeStatusResolvedRefund, nil
	}
	return false, nil
}
