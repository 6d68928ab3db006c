package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

// GigStore описывает доступ сервиса жизненного цикла к объявлениям.
type GigStore interface {
	Create(ctx context.Context, post *models.GigPost) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GigPost, error)
	SetMatched(ctx context.Context, id, providerID uuid.UUID) error
	ReopenSearch(ctx context.Context, id uuid.UUID) error
	ListByPoster(ctx context.Context, posterID uuid.UUID, limit, offset int) ([]models.GigPost, error)
}

// ProjectStore описывает доступ к проектам.
type ProjectStore interface {
	Create(ctx context.Context, p *models.GigProject) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GigProject, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	UpdateStatusFromAny(ctx context.Context, id uuid.UUID, from []string, to string) error
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	SetCompleted(ctx context.Context, id uuid.UUID, from string) error
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.GigProject, error)
}

// EscrowCoordinator описывает финансовые сайд-эффекты переходов.
type EscrowCoordinator interface {
	HoldFunds(ctx context.Context, amount float64, currency string, payerID uuid.UUID) (string, error)
	ReleaseOnCompletion(ctx context.Context, project *models.GigProject) error
	Refund(ctx context.Context, post *models.GigPost, project *models.GigProject, event, reason string) error
}

// CreateGigInput — параметры создания срочного объявления.
type CreateGigInput struct {
	Title       string
	Description *string
	Amount      float64
	Currency    string
	DateNeeded  time.Time
	ExpiresAt   time.Time
	Location    *string
}

// LifecycleService управляет переходами объявления и проекта. Каждый
// переход выполняется условным обновлением в БД, поэтому конкурирующие
// вызовы не могут провести проект через один и тот же переход дважды:
// проигравший получает ErrInvalidTransition.
type LifecycleService struct {
	gigs     GigStore
	projects ProjectStore
	escrow   EscrowCoordinator
	fees     *FeeCalculator
	notifier Notifier
}

// NewLifecycleService создаёт сервис жизненного цикла.
func NewLifecycleService(gigs GigStore, projects ProjectStore, escrow EscrowCoordinator, fees *FeeCalculator, notifier Notifier) *LifecycleService {
	return &LifecycleService{
		gigs:     gigs,
		projects: projects,
		escrow:   escrow,
		fees:     fees,
		notifier: notifier,
	}
}

// CreatePost создаёт объявление. Холд авторизуется до записи в БД:
// если шлюз отказал, объявление не появляется вовсе.
func (s *LifecycleService) CreatePost(ctx context.Context, posterID uuid.UUID, in CreateGigInput) (*models.GigPost, error) {
	if in.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть больше нуля")
	}
	now := time.Now()
	if !in.DateNeeded.After(now) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дата выступления должна быть в будущем")
	}
	if !in.ExpiresAt.After(now) || in.ExpiresAt.After(in.DateNeeded) {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок поиска должен истекать до даты выступления")
	}

	holdRef, err := s.escrow.HoldFunds(ctx, in.Amount, in.Currency, posterID)
	if err != nil {
		return nil, err
	}

	post := &models.GigPost{
		PosterID:      posterID,
		Title:         in.Title,
		Description:   in.Description,
		Amount:        in.Amount,
		Currency:      in.Currency,
		UrgentStatus:  models.GigStatusSearching,
		PaymentStatus: models.PaymentStatusEscrowed,
		HoldRef:       &holdRef,
		ExpiresAt:     in.ExpiresAt,
		DateNeeded:    in.DateNeeded,
		Location:      in.Location,
	}
	if err := s.gigs.Create(ctx, post); err != nil {
		// Холд уже взят — возвращаем его, чтобы не замораживать деньги
		// заказчика под несуществующее объявление.
		if refundErr := s.escrow.Refund(ctx, post, nil, models.NotifyCancelled, "не удалось создать объявление"); refundErr != nil {
			logger.Log.WithField("hold_ref", holdRef).WithError(refundErr).Error("lifecycle: не удалось вернуть холд после ошибки создания объявления")
		}
		return nil, err
	}
	return post, nil
}

// GetPost возвращает объявление по идентификатору.
func (s *LifecycleService) GetPost(ctx context.Context, id uuid.UUID) (*models.GigPost, error) {
	return s.gigs.GetByID(ctx, id)
}

// ListPostsByPoster возвращает объявления заказчика.
func (s *LifecycleService) ListPostsByPoster(ctx context.Context, posterID uuid.UUID, limit, offset int) ([]models.GigPost, error) {
	return s.gigs.ListByPoster(ctx, posterID, limit, offset)
}

// ConfirmMatch подтверждает выбор исполнителя. Объявление атомарно
// переводится searching -> confirmed, так что из конкурирующих
// подтверждений выигрывает ровно одно, остальные получают ErrAlreadyMatched.
// Проект создаётся в статусе awaiting_acceptance с уже рассчитанной
// комиссией платформы.
func (s *LifecycleService) ConfirmMatch(ctx context.Context, actorID, postID, providerID uuid.UUID) (*models.GigProject, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.PosterID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if providerID == post.PosterID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя выбрать исполнителем самого себя")
	}
	if time.Now().After(post.ExpiresAt) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "срок поиска по объявлению истёк")
	}

	if err := s.gigs.SetMatched(ctx, postID, providerID); err != nil {
		if err == common.ErrStatusConflict {
			return nil, apperror.ErrAlreadyMatched
		}
		return nil, err
	}

	fee, payout := s.fees.Split(post.Amount, post.Currency)
	project := &models.GigProject{
		PostID:       post.ID,
		PosterID:     post.PosterID,
		ProviderID:   providerID,
		Title:        post.Title,
		Brief:        post.Description,
		Amount:       post.Amount,
		Currency:     post.Currency,
		PlatformFee:  fee,
		PayoutAmount: payout,
		Deadline:     post.DateNeeded,
		Status:       models.ProjectStatusAwaitingAcceptance,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		if err == common.ErrAlreadyExists {
			return nil, apperror.ErrAlreadyMatched
		}
		// Объявление уже confirmed, а проекта нет — возвращаем его в поиск.
		if reopenErr := s.gigs.ReopenSearch(ctx, postID); reopenErr != nil {
			logger.Log.WithField("post_id", postID).WithError(reopenErr).Error("lifecycle: не удалось вернуть объявление в поиск после ошибки создания проекта")
		}
		return nil, err
	}

	_ = s.notifier.Notify(ctx, providerID, models.NotifyMatchConfirmed, map[string]interface{}{
		"project_id": project.ID,
		"post_id":    post.ID,
		"title":      post.Title,
		"amount":     post.Amount,
	})
	return project, nil
}

// GetProject возвращает проект; доступен только участникам и админу.
func (s *LifecycleService) GetProject(ctx context.Context, actorID uuid.UUID, role string, id uuid.UUID) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && project.PosterID != actorID && project.ProviderID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	return project, nil
}

// ListProjectsByParticipant возвращает проекты пользователя.
func (s *LifecycleService) ListProjectsByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.GigProject, error) {
	return s.projects.ListByParticipant(ctx, userID, limit, offset)
}

// AcceptAgreement — исполнитель принимает условия, проект становится активным.
func (s *LifecycleService) AcceptAgreement(ctx context.Context, actorID, projectID uuid.UUID) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ProviderID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if err := s.projects.UpdateStatus(ctx, projectID, models.ProjectStatusAwaitingAcceptance, models.ProjectStatusActive); err != nil {
		return nil, s.mapTransitionErr(err)
	}
	project.Status = models.ProjectStatusActive

	_ = s.notifier.Notify(ctx, project.PosterID, models.NotifyAgreementAccept, map[string]interface{}{
		"project_id": project.ID,
		"title":      project.Title,
	})
	return project, nil
}

// DeclineAgreement — исполнитель отклоняет условия. Проект закрывается,
// объявление возвращается в поиск, холд остаётся на месте.
func (s *LifecycleService) DeclineAgreement(ctx context.Context, actorID, projectID uuid.UUID) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ProviderID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if err := s.projects.UpdateStatus(ctx, projectID, models.ProjectStatusAwaitingAcceptance, models.ProjectStatusDeclined); err != nil {
		return nil, s.mapTransitionErr(err)
	}
	project.Status = models.ProjectStatusDeclined

	if err := s.gigs.ReopenSearch(ctx, project.PostID); err != nil {
		logger.Log.WithField("post_id", project.PostID).WithError(err).Error("lifecycle: не удалось вернуть объявление в поиск после отказа исполнителя")
	}

	_ = s.notifier.Notify(ctx, project.PosterID, models.NotifyAgreementDecline, map[string]interface{}{
		"project_id": project.ID,
		"title":      project.Title,
	})
	return project, nil
}

// MarkDelivered — исполнитель отмечает работу сданной.
func (s *LifecycleService) MarkDelivered(ctx context.Context, actorID, projectID uuid.UUID) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ProviderID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if err := s.projects.MarkDelivered(ctx, projectID); err != nil {
		return nil, s.mapTransitionErr(err)
	}
	project.Status = models.ProjectStatusDelivered

	_ = s.notifier.Notify(ctx, project.PosterID, models.NotifyDelivered, map[string]interface{}{
		"project_id": project.ID,
		"title":      project.Title,
	})
	return project, nil
}

// ConfirmCompletion — заказчик подтверждает выполнение. Переход
// delivered -> completed проходит ровно у одного из конкурирующих
// вызовов, и только он запускает списание холда и выплату.
func (s *LifecycleService) ConfirmCompletion(ctx context.Context, actorID, projectID uuid.UUID) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.PosterID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if err := s.projects.SetCompleted(ctx, projectID, models.ProjectStatusDelivered); err != nil {
		return nil, s.mapTransitionErr(err)
	}
	project.Status = models.ProjectStatusCompleted

	if err := s.escrow.ReleaseOnCompletion(ctx, project); err != nil {
		// Проект завершён, но деньги не дошли до исполнителя. Статус не
		// откатываем: списание добивается вручную через админский эндпоинт.
		logger.Log.WithField("project_id", project.ID).WithError(err).Error("lifecycle: списание холда после завершения не удалось")
		return nil, err
	}

	_ = s.notifier.Notify(ctx, project.ProviderID, models.NotifyCompleted, map[string]interface{}{
		"project_id": project.ID,
		"title":      project.Title,
		"payout":     project.PayoutAmount,
	})
	return project, nil
}

// Cancel отменяет проект до сдачи работы и возвращает деньги заказчику.
// Доступно заказчику и админу.
func (s *LifecycleService) Cancel(ctx context.Context, actorID uuid.UUID, role string, projectID uuid.UUID, reason string) (*models.GigProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && project.PosterID != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	from := []string{models.ProjectStatusAwaitingAcceptance, models.ProjectStatusActive}
	if err := s.projects.UpdateStatusFromAny(ctx, projectID, from, models.ProjectStatusCancelled); err != nil {
		return nil, s.mapTransitionErr(err)
	}
	project.Status = models.ProjectStatusCancelled

	post, err := s.gigs.GetByID(ctx, project.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.escrow.Refund(ctx, post, project, models.NotifyCancelled, reason); err != nil {
		logger.Log.WithField("project_id", project.ID).WithError(err).Error("lifecycle: возврат при отмене не удался")
		return nil, err
	}

	_ = s.notifier.Notify(ctx, project.ProviderID, models.NotifyCancelled, map[string]interface{}{
		"project_id": project.ID,
		"title":      project.Title,
		"reason":     reason,
	})
	return project, nil
}

// ExpirePost закрывает просроченное объявление без подтверждённого
// исполнителя и возвращает холд. Вызывается планировщиком; уведомление
// уходит ровно один раз даже при перекрывающихся запусках.
func (s *LifecycleService) ExpirePost(ctx context.Context, post *models.GigPost) error {
	if post.UrgentStatus != models.GigStatusSearching {
		return nil
	}
	return s.escrow.Refund(ctx, post, nil, models.NotifyGigExpired, "не нашлось исполнителя до истечения срока")
}

// ReleaseProject — ручной запуск списания для завершённого проекта.
// Админский рычаг на случай сбоя шлюза при подтверждении.
func (s *LifecycleService) ReleaseProject(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status != models.ProjectStatusCompleted {
		return apperror.ErrInvalidTransition
	}
	return s.escrow.ReleaseOnCompletion(ctx, project)
}

// RefundProject — повторный запуск возврата по отменённому проекту.
// Нужен, когда шлюз отказал уже после перехода проекта в cancelled:
// сам переход повторить нельзя, а деньги вернуть обязаны. Вызывается
// планировщиком и админским эндпоинтом; по возвращённому платежу — no-op.
func (s *LifecycleService) RefundProject(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status != models.ProjectStatusCancelled {
		return apperror.ErrInvalidTransition
	}
	post, err := s.gigs.GetByID(ctx, project.PostID)
	if err != nil {
		return err
	}
	return s.escrow.Refund(ctx, post, project, models.NotifyCancelled, "возврат по отменённому проекту")
}

func (s *LifecycleService) mapTransitionErr(err error) error {
	if err == common.ErrStatusConflict {
		return apperror.ErrInvalidTransition
	}
	return err
}
