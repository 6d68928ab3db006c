package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

// DisputeStore описывает хранилище споров.
type DisputeStore interface {
	Open(ctx context.Context, d *models.Dispute, fromStatuses []string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error)
	GetResolvedByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error)
	SetCounterResponse(ctx context.Context, id uuid.UUID, response string, evidence []string) error
	Resolve(ctx context.Context, id uuid.UUID, status string, resolvedBy uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
}

// Исходы разрешения спора админом.
const (
	DisputeOutcomeRelease = "release"
	DisputeOutcomeRefund  = "refund"
)

// Спор открывается только по незавершённому проекту: после подтверждения
// выполнения деньги уже у исполнителя и претензии идут вне платформы.
var disputableStatuses = []string{
	models.ProjectStatusAwaitingAcceptance,
	models.ProjectStatusActive,
	models.ProjectStatusDelivered,
}

// DisputeService управляет спорами: открытие замораживает проект в статусе
// disputed, разрешение админом расформировывает эскроу в одну из сторон.
type DisputeService struct {
	disputes DisputeStore
	projects ProjectStore
	gigs     GigStore
	escrow   EscrowCoordinator
	notifier Notifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeStore, projects ProjectStore, gigs GigStore, escrow EscrowCoordinator, notifier Notifier) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		projects: projects,
		gigs:     gigs,
		escrow:   escrow,
		notifier: notifier,
	}
}

// Open открывает спор по проекту. Вставка спора и переход проекта в
// disputed выполняются одной транзакцией: либо спор открыт и проект
// заморожен, либо ничего не произошло. Второй спор по тому же проекту
// отклоняется частичным уникальным индексом.
func (s *DisputeService) Open(ctx context.Context, actorID, projectID uuid.UUID, reason string, evidence []string) (*models.Dispute, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину спора")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	against, ok := project.CounterpartOf(actorID)
	if !ok {
		return nil, apperror.ErrNotAuthorized
	}
	if !isDisputable(project.Status) {
		return nil, apperror.ErrProjectNotDisputable
	}

	d := &models.Dispute{
		ProjectID: projectID,
		RaisedBy:  actorID,
		Against:   against,
		Reason:    reason,
		Evidence:  evidence,
		Status:    models.DisputeStatusOpen,
	}
	if err := s.disputes.Open(ctx, d, disputableStatuses); err != nil {
		switch err {
		case common.ErrAlreadyExists:
			return nil, apperror.ErrDisputeAlreadyOpen
		case common.ErrStatusConflict:
			return nil, apperror.ErrProjectNotDisputable
		}
		return nil, err
	}

	_ = s.notifier.Notify(ctx, against, models.NotifyDisputeOpened, map[string]interface{}{
		"dispute_id": d.ID,
		"project_id": projectID,
		"reason":     reason,
	})
	return d, nil
}

// Get возвращает спор; доступен сторонам спора и админу.
func (s *DisputeService) Get(ctx context.Context, actorID uuid.UUID, role string, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && d.RaisedBy != actorID && d.Against != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	return d, nil
}

// Respond — ответная позиция стороны, против которой открыт спор.
// После ответа спор переходит в under_review; повторный ответ и ответ
// по закрытому спору отклоняются.
func (s *DisputeService) Respond(ctx context.Context, actorID, disputeID uuid.UUID, response string, evidence []string) (*models.Dispute, error) {
	if response == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите текст ответа")
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Against != actorID {
		return nil, apperror.ErrNotAuthorized
	}
	if d.IsResolved() {
		return nil, apperror.ErrDisputeClosed
	}

	if err := s.disputes.SetCounterResponse(ctx, disputeID, response, evidence); err != nil {
		if err == common.ErrStatusConflict {
			return nil, apperror.ErrDisputeClosed
		}
		return nil, err
	}
	d.Status = models.DisputeStatusUnderReview
	d.CounterResponse = &response
	d.CounterEvidence = evidence

	_ = s.notifier.Notify(ctx, d.RaisedBy, models.NotifyDisputeOpened, map[string]interface{}{
		"dispute_id": d.ID,
		"project_id": d.ProjectID,
		"responded":  true,
	})
	return d, nil
}

// Resolve — решение админа. Условное обновление строки спора пропускает
// ровно один вызов, поэтому деньги двигаются не более одного раза даже
// при конкурирующих решениях. release списывает холд в пользу
// исполнителя, refund возвращает деньги заказчику.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, outcome string) (*models.Dispute, error) {
	var resolved string
	switch outcome {
	case DisputeOutcomeRelease:
		resolved = models.DisputeStatusResolvedRelease
	case DisputeOutcomeRefund:
		resolved = models.DisputeStatusResolvedRefund
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "исход должен быть release или refund")
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, d.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := s.disputes.Resolve(ctx, disputeID, resolved, adminID); err != nil {
		if err == common.ErrStatusConflict {
			return nil, apperror.ErrDisputeClosed
		}
		return nil, err
	}
	d.Status = resolved
	d.ResolvedBy = &adminID

	switch resolved {
	case models.DisputeStatusResolvedRelease:
		if err := s.projects.SetCompleted(ctx, project.ID, models.ProjectStatusDisputed); err != nil && err != common.ErrStatusConflict {
			return nil, err
		}
		project.Status = models.ProjectStatusCompleted
		if err := s.escrow.ReleaseOnCompletion(ctx, project); err != nil {
			// Спор уже закрыт, выплата добивается вручную.
			logger.Log.WithField("dispute_id", d.ID).WithError(err).Error("dispute: списание холда после решения не удалось")
			return nil, err
		}

	case models.DisputeStatusResolvedRefund:
		if err := s.projects.UpdateStatus(ctx, project.ID, models.ProjectStatusDisputed, models.ProjectStatusCancelled); err != nil && err != common.ErrStatusConflict {
			return nil, err
		}
		project.Status = models.ProjectStatusCancelled
		post, err := s.gigs.GetByID(ctx, project.PostID)
		if err != nil {
			return nil, err
		}
		if err := s.escrow.Refund(ctx, post, project, models.NotifyCancelled, "спор решён в пользу заказчика"); err != nil {
			logger.Log.WithField("dispute_id", d.ID).WithError(err).Error("dispute: возврат после решения не удался")
			return nil, err
		}
	}

	data := map[string]interface{}{
		"dispute_id": d.ID,
		"project_id": project.ID,
		"outcome":    outcome,
	}
	_ = s.notifier.Notify(ctx, d.RaisedBy, models.NotifyDisputeResolved, data)
	_ = s.notifier.Notify(ctx, d.Against, models.NotifyDisputeResolved, data)
	return d, nil
}

// ListByUser возвращает споры пользователя.
func (s *DisputeService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

func isDisputable(status string) bool {
	for _, s := range disputableStatuses {
		if s == status {
			return true
		}
	}
	return false
}
