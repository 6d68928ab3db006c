package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
)

const payoutBatchSize = 50

type retryablePayoutSource interface {
	ListRetryable(ctx context.Context, limit int) ([]models.Payout, error)
}

type payoutDispatcher interface {
	DispatchPayout(ctx context.Context, p *models.Payout)
}

// PayoutRetryJob переотправляет зависшие выплаты. Результат каждой
// попытки фиксирует диспетчер, задача только гонит очередь.
type PayoutRetryJob struct {
	payouts  retryablePayoutSource
	escrow   payoutDispatcher
	interval time.Duration
}

func NewPayoutRetryJob(payouts retryablePayoutSource, escrow payoutDispatcher, interval time.Duration) *PayoutRetryJob {
	return &PayoutRetryJob{payouts: payouts, escrow: escrow, interval: interval}
}

func (j *PayoutRetryJob) Name() string { return "payout_retry" }

func (j *PayoutRetryJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *PayoutRetryJob) Run(ctx context.Context) {
	log := logger.WithJob(j.Name())

	payouts, err := j.payouts.ListRetryable(ctx, payoutBatchSize)
	if err != nil {
		log.WithError(err).Error("выборка зависших выплат не удалась")
		return
	}
	if len(payouts) == 0 {
		return
	}

	log.WithField("count", len(payouts)).Info("повторная отправка выплат")
	for i := range payouts {
		j.escrow.DispatchPayout(ctx, &payouts[i])
	}
}
