package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
)

const expiryBatchSize = 100

type expiredGigSource interface {
	ListExpiredSearching(ctx context.Context, now time.Time, limit int) ([]models.GigPost, error)
}

type upcomingGigSource interface {
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.GigPost, error)
}

type gigExpirer interface {
	ExpirePost(ctx context.Context, post *models.GigPost) error
}

type onceNotifier interface {
	NotifyOnce(ctx context.Context, userID uuid.UUID, event string, gigID uuid.UUID, window time.Duration, data interface{}) error
}

// ExpiryJob закрывает объявления, у которых истёк срок поиска, и
// возвращает холды. Повторная обработка одного объявления безопасна:
// возврат и уведомление выполняются не более одного раза.
type ExpiryJob struct {
	gigs      expiredGigSource
	lifecycle gigExpirer
	interval  time.Duration
}

func NewExpiryJob(gigs expiredGigSource, lifecycle gigExpirer, interval time.Duration) *ExpiryJob {
	return &ExpiryJob{gigs: gigs, lifecycle: lifecycle, interval: interval}
}

func (j *ExpiryJob) Name() string { return "gig_expiry" }

func (j *ExpiryJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *ExpiryJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())

	posts, err := j.gigs.ListExpiredSearching(ctx, time.Now(), expiryBatchSize)
	if err != nil {
		log.WithError(err).Error("выборка просроченных объявлений не удалась")
		return
	}

	expired := 0
	for i := range posts {
		if err := j.lifecycle.ExpirePost(ctx, &posts[i]); err != nil {
			log.WithField("post_id", posts[i].ID).WithError(err).Error("не удалось закрыть просроченное объявление")
			continue
		}
		expired++
	}
	if expired > 0 {
		log.WithField("expired", expired).Info("просроченные объявления закрыты")
	}
}

// PreStartReminderJob напоминает обеим сторонам о выступлении примерно
// за час до начала. Окно выборки шире интервала запуска, дубли
// отсеиваются через NotifyOnce.
type PreStartReminderJob struct {
	gigs     upcomingGigSource
	notifier onceNotifier
	interval time.Duration
}

func NewPreStartReminderJob(gigs upcomingGigSource, notifier onceNotifier, interval time.Duration) *PreStartReminderJob {
	return &PreStartReminderJob{gigs: gigs, notifier: notifier, interval: interval}
}

func (j *PreStartReminderJob) Name() string { return "gig_pre_start_reminder" }

func (j *PreStartReminderJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *PreStartReminderJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())
	now := time.Now()

	posts, err := j.gigs.ListConfirmedStartingBetween(ctx, now.Add(55*time.Minute), now.Add(65*time.Minute))
	if err != nil {
		log.WithError(err).Error("выборка предстоящих выступлений не удалась")
		return
	}

	for i := range posts {
		post := &posts[i]
		data := map[string]interface{}{
			"post_id":     post.ID,
			"title":       post.Title,
			"date_needed": post.DateNeeded,
		}
		recipients := []uuid.UUID{post.PosterID}
		if post.SelectedProviderID != nil {
			recipients = append(recipients, *post.SelectedProviderID)
		}
		for _, userID := range recipients {
			if err := j.notifier.NotifyOnce(ctx, userID, models.NotifyGigPreStart, post.ID, 2*time.Hour, data); err != nil {
				log.WithField("post_id", post.ID).WithError(err).Error("напоминание о выступлении не отправлено")
			}
		}
	}
}
