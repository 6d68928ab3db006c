package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/payment"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

// GigStoreForEscrow описывает доступ координатора к объявлениям.
type GigStoreForEscrow interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.GigPost, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to string, chargeRef *string) error
	SetChargeRef(ctx context.Context, id uuid.UUID, chargeRef string) error
	CancelAndRefund(ctx context.Context, id uuid.UUID, fromPayment string) error
}

// WalletStore описывает доступ к кошелькам исполнителей.
type WalletStore interface {
	CreditPayout(ctx context.Context, userID, projectID uuid.UUID, amount float64, currency string) (*models.WalletTransaction, error)
	DebitRefund(ctx context.Context, userID, projectID uuid.UUID, amount float64, currency string) (*models.WalletTransaction, float64, error)
}

// PayoutQueue описывает очередь выплат.
type PayoutQueue interface {
	Enqueue(ctx context.Context, p *models.Payout) error
	MarkSent(ctx context.Context, id uuid.UUID, payoutRef string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Notifier отправляет уведомление пользователю. Отправка best-effort:
// ошибки логируются и никогда не блокируют переходы жизненного цикла.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

// EscrowService транслирует события жизненного цикла в финансовые
// сайд-эффекты: холд, списание с начислением, возврат. Каждая операция
// проверяет текущий платёжный статус перед действием, поэтому повторный
// вызов после достижения целевого статуса — no-op.
type EscrowService struct {
	gigs           GigStoreForEscrow
	wallets        WalletStore
	payouts        PayoutQueue
	gateway        payment.Gateway
	payoutProvider payment.PayoutProvider
	notifier       Notifier
	gatewayTimeout time.Duration
}

// NewEscrowService создаёт координатор эскроу.
func NewEscrowService(
	gigs GigStoreForEscrow,
	wallets WalletStore,
	payouts PayoutQueue,
	gateway payment.Gateway,
	payoutProvider payment.PayoutProvider,
	notifier Notifier,
	gatewayTimeout time.Duration,
) *EscrowService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &EscrowService{
		gigs:           gigs,
		wallets:        wallets,
		payouts:        payouts,
		gateway:        gateway,
		payoutProvider: payoutProvider,
		notifier:       notifier,
		gatewayTimeout: gatewayTimeout,
	}
}

// HoldFunds авторизует холд в платёжном шлюзе при создании объявления.
// При ошибке шлюза объявление не создаётся — вызывающая сторона обязана
// вызывать HoldFunds до записи в БД.
func (s *EscrowService) HoldFunds(ctx context.Context, amount float64, currency string, payerID uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	holdRef, err := s.gateway.Authorize(ctx, amount, currency, payerID)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"payer_id": payerID,
			"amount":   amount,
			"currency": currency,
		}).WithError(err).Error("escrow: авторизация холда не удалась")
		return "", apperror.Wrap(err, apperror.ErrCodePaymentGateway, "платёж не удалось обработать, попробуйте позже")
	}
	return holdRef, nil
}

// ReleaseOnCompletion списывает холд, начисляет исполнителю выплату за
// вычетом комиссии и ставит выплату в очередь. Захват и начисление
// происходят не более одного раза: условный переход escrowed -> captured
// пропускает ровно один вызов. Ошибка постановки выплаты не откатывает
// списание — заявка переотправляется планировщиком.
func (s *EscrowService) ReleaseOnCompletion(ctx context.Context, project *models.GigProject) error {
	post, err := s.gigs.GetByID(ctx, project.PostID)
	if err != nil {
		return err
	}

	switch post.PaymentStatus {
	case models.PaymentStatusCaptured:
		// Платёж уже захвачен (повторный вызов) — остаётся убедиться,
		// что выплата в очереди.
		return s.enqueuePayout(ctx, project)
	case models.PaymentStatusEscrowed:
	default:
		return apperror.ErrInvalidTransition
	}

	if post.HoldRef == nil {
		return apperror.New(apperror.ErrCodeInternal, "у объявления отсутствует ссылка на холд")
	}

	// Переход escrowed -> captured выполняется до обращения к шлюзу:
	// из конкурирующих вызовов именно он выбирает, кто пойдёт за захватом,
	// поэтому Capture по одному холду уходит не более одного раза.
	if err := s.gigs.UpdatePaymentStatus(ctx, post.ID, models.PaymentStatusEscrowed, models.PaymentStatusCaptured, nil); err != nil {
		if err == common.ErrStatusConflict {
			// Конкурирующий вызов успел первым — захват и начисление за ним.
			return nil
		}
		return err
	}

	captureCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	chargeRef, err := s.gateway.Capture(captureCtx, *post.HoldRef)
	if err != nil {
		logger.Log.WithField("post_id", post.ID).WithError(err).Error("escrow: захват платежа не удался")
		// Откат в escrowed, чтобы повторный запуск смог добить захват.
		if revertErr := s.gigs.UpdatePaymentStatus(ctx, post.ID, models.PaymentStatusCaptured, models.PaymentStatusEscrowed, nil); revertErr != nil {
			logger.Log.WithField("post_id", post.ID).WithError(revertErr).Error("escrow: откат платёжного статуса после сбоя захвата не удался")
		}
		return apperror.Wrap(err, apperror.ErrCodePaymentGateway, "платёж не удалось обработать, попробуйте позже")
	}

	if err := s.gigs.SetChargeRef(ctx, post.ID, chargeRef); err != nil {
		// Деньги захвачены — начисление важнее потерянной ссылки,
		// расхождение разбирается оператором по логу.
		logger.Log.WithField("post_id", post.ID).WithError(err).Error("escrow: не удалось сохранить ссылку на списание")
	}

	if _, err := s.wallets.CreditPayout(ctx, project.ProviderID, project.ID, project.PayoutAmount, project.Currency); err != nil {
		// Захват прошёл, а начисление нет: это расхождение чинится
		// оператором, платёж не откатывается.
		logger.Log.WithField("project_id", project.ID).WithError(err).Error("escrow: начисление на кошелёк не удалось после захвата")
		return err
	}

	return s.enqueuePayout(ctx, project)
}

// enqueuePayout ставит выплату в очередь и пытается отправить её сразу.
// Неуспех отправки не фатален: заявка остаётся в очереди повторов.
func (s *EscrowService) enqueuePayout(ctx context.Context, project *models.GigProject) error {
	p := &models.Payout{
		UserID:    project.ProviderID,
		ProjectID: project.ID,
		Amount:    project.PayoutAmount,
		Currency:  project.Currency,
	}
	if err := s.payouts.Enqueue(ctx, p); err != nil {
		logger.Log.WithField("project_id", project.ID).WithError(err).Error("escrow: постановка выплаты в очередь не удалась")
		return nil
	}
	if p.Status == models.PayoutStatusSent {
		return nil
	}

	s.DispatchPayout(ctx, p)
	return nil
}

// DispatchPayout отправляет заявку провайдеру выплат и фиксирует результат.
// Используется и при первичной постановке, и при повторах планировщика.
func (s *EscrowService) DispatchPayout(ctx context.Context, p *models.Payout) {
	payoutCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	ref, err := s.payoutProvider.Payout(payoutCtx, p.UserID, p.Amount, p.Currency)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"payout_id":  p.ID,
			"project_id": p.ProjectID,
			"attempts":   p.Attempts,
		}).WithError(err).Warn("escrow: выплата не отправлена, останется в очереди повторов")
		if markErr := s.payouts.MarkFailed(ctx, p.ID, err.Error()); markErr != nil {
			logger.Log.WithField("payout_id", p.ID).WithError(markErr).Error("escrow: не удалось отметить неуспешную выплату")
		}
		return
	}

	if err := s.payouts.MarkSent(ctx, p.ID, ref); err != nil {
		logger.Log.WithField("payout_id", p.ID).WithError(err).Error("escrow: не удалось отметить отправленную выплату")
	}
}

// Refund возвращает средства заказчику: отменяет холд, либо возвращает
// уже списанный платёж. Если деньги успели попасть на кошелёк исполнителя,
// списывает их обратно — не более текущего баланса, недостача помечается
// для ручного разбора. Повторный вызов по уже возвращённому платежу — no-op,
// уведомление заказчику уходит ровно один раз: его отправляет тот вызов,
// которому удался условный переход в refunded.
func (s *EscrowService) Refund(ctx context.Context, post *models.GigPost, project *models.GigProject, event, reason string) error {
	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	switch post.PaymentStatus {
	case models.PaymentStatusRefunded:
		return nil

	case models.PaymentStatusAuthorized, models.PaymentStatusEscrowed:
		if post.HoldRef == nil {
			return apperror.New(apperror.ErrCodeInternal, "у объявления отсутствует ссылка на холд")
		}
		if err := s.gateway.Cancel(gatewayCtx, *post.HoldRef); err != nil {
			logger.Log.WithField("post_id", post.ID).WithError(err).Error("escrow: отмена холда не удалась")
			return apperror.Wrap(err, apperror.ErrCodePaymentGateway, "платёж не удалось обработать, попробуйте позже")
		}
		if err := s.gigs.CancelAndRefund(ctx, post.ID, post.PaymentStatus); err != nil {
			if err == common.ErrStatusConflict {
				return nil
			}
			return err
		}

	case models.PaymentStatusCaptured:
		if post.ChargeRef == nil {
			return apperror.New(apperror.ErrCodeInternal, "у объявления отсутствует ссылка на списание")
		}
		if err := s.gateway.Refund(gatewayCtx, *post.ChargeRef); err != nil {
			logger.Log.WithField("post_id", post.ID).WithError(err).Error("escrow: возврат платежа не удался")
			return apperror.Wrap(err, apperror.ErrCodePaymentGateway, "платёж не удалось обработать, попробуйте позже")
		}
		if err := s.gigs.CancelAndRefund(ctx, post.ID, models.PaymentStatusCaptured); err != nil {
			if err == common.ErrStatusConflict {
				return nil
			}
			return err
		}
		if project != nil {
			_, shortfall, err := s.wallets.DebitRefund(ctx, project.ProviderID, project.ID, project.PayoutAmount, project.Currency)
			if err != nil {
				logger.Log.WithField("project_id", project.ID).WithError(err).Error("escrow: списание возврата с кошелька не удалось")
				return err
			}
			if shortfall > 0 {
				logger.Log.WithFields(logrus.Fields{
					"project_id":  project.ID,
					"provider_id": project.ProviderID,
					"shortfall":   shortfall,
				}).Warn("escrow: на кошельке не хватило средств для возврата, недостача помечена")
			}
		}

	default:
		return apperror.ErrInvalidTransition
	}

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, post.PosterID, event, map[string]interface{}{
			"post_id": post.ID,
			"reason":  reason,
			"amount":  post.Amount,
		})
	}
	return nil
}
