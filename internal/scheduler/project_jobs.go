package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
)

type deliveredProjectSource interface {
	ListDeliveredBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error)
}

type completedProjectSource interface {
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error)
}

type ratingChecker interface {
	GetByProjectAndRater(ctx context.Context, projectID, raterID uuid.UUID) (*models.Rating, error)
}

// DeliveryReminderJob напоминает заказчику подтвердить выполнение, если
// работа сдана около суток назад, а подтверждения всё нет.
type DeliveryReminderJob struct {
	projects deliveredProjectSource
	notifier onceNotifier
	interval time.Duration
}

func NewDeliveryReminderJob(projects deliveredProjectSource, notifier onceNotifier, interval time.Duration) *DeliveryReminderJob {
	return &DeliveryReminderJob{projects: projects, notifier: notifier, interval: interval}
}

func (j *DeliveryReminderJob) Name() string { return "delivery_confirmation_reminder" }

func (j *DeliveryReminderJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *DeliveryReminderJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())
	now := time.Now()

	projects, err := j.projects.ListDeliveredBetween(ctx, now.Add(-28*time.Hour), now.Add(-20*time.Hour))
	if err != nil {
		log.WithError(err).Error("выборка сданных проектов не удалась")
		return
	}

	for i := range projects {
		p := &projects[i]
		err := j.notifier.NotifyOnce(ctx, p.PosterID, models.NotifyConfirmDelivery, p.PostID, 24*time.Hour, map[string]interface{}{
			"project_id": p.ID,
			"title":      p.Title,
		})
		if err != nil {
			log.WithField("project_id", p.ID).WithError(err).Error("напоминание о подтверждении не отправлено")
		}
	}
}

// RatingPromptJob приглашает стороны оценить друг друга примерно через
// сутки после завершения. Уже оценившие приглашение не получают.
type RatingPromptJob struct {
	projects completedProjectSource
	ratings  ratingChecker
	notifier onceNotifier
	interval time.Duration
}

func NewRatingPromptJob(projects completedProjectSource, ratings ratingChecker, notifier onceNotifier, interval time.Duration) *RatingPromptJob {
	return &RatingPromptJob{projects: projects, ratings: ratings, notifier: notifier, interval: interval}
}

func (j *RatingPromptJob) Name() string { return "rating_prompt" }

func (j *RatingPromptJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *RatingPromptJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())
	now := time.Now()

	projects, err := j.projects.ListCompletedBetween(ctx, now.Add(-30*time.Hour), now.Add(-20*time.Hour))
	if err != nil {
		log.WithError(err).Error("выборка завершённых проектов не удалась")
		return
	}

	for i := range projects {
		p := &projects[i]
		for _, userID := range []uuid.UUID{p.PosterID, p.ProviderID} {
			rated, err := j.ratings.GetByProjectAndRater(ctx, p.ID, userID)
			if err != nil {
				log.WithField("project_id", p.ID).WithError(err).Error("проверка оценки не удалась")
				continue
			}
			if rated != nil {
				continue
			}
			err = j.notifier.NotifyOnce(ctx, userID, models.NotifyRatingPrompt, p.PostID, 24*time.Hour, map[string]interface{}{
				"project_id": p.ID,
				"title":      p.Title,
			})
			if err != nil {
				log.WithField("project_id", p.ID).WithError(err).Error("приглашение к оценке не отправлено")
			}
		}
	}
}
