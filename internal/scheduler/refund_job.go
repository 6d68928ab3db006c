package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
)

const refundBatchSize = 50

type cancelledProjectSource interface {
	ListCancelledUnrefunded(ctx context.Context, limit int) ([]models.GigProject, error)
}

type projectRefunder interface {
	RefundProject(ctx context.Context, projectID uuid.UUID) error
}

// RefundRetryJob добивает возвраты, не прошедшие при отмене проекта:
// проект уже в cancelled, а платёж по объявлению всё ещё не возвращён.
// Возврат идемпотентен, поэтому задача просто повторяет его до успеха.
type RefundRetryJob struct {
	projects  cancelledProjectSource
	lifecycle projectRefunder
	interval  time.Duration
}

func NewRefundRetryJob(projects cancelledProjectSource, lifecycle projectRefunder, interval time.Duration) *RefundRetryJob {
	return &RefundRetryJob{projects: projects, lifecycle: lifecycle, interval: interval}
}

func (j *RefundRetryJob) Name() string { return "refund_retry" }

func (j *RefundRetryJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *RefundRetryJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())

	projects, err := j.projects.ListCancelledUnrefunded(ctx, refundBatchSize)
	if err != nil {
		log.WithError(err).Error("выборка невозвращённых платежей не удалась")
		return
	}
	if len(projects) == 0 {
		return
	}

	log.WithField("count", len(projects)).Info("повторный возврат платежей")
	for i := range projects {
		if err := j.lifecycle.RefundProject(ctx, projects[i].ID); err != nil {
			log.WithField("project_id", projects[i].ID).WithError(err).Error("повторный возврат не удался")
		}
	}
}
