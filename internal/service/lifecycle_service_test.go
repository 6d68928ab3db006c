package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type mockGigStore struct {
	mock.Mock
}

func (m *mockGigStore) Create(ctx context.Context, post *models.GigPost) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *mockGigStore) GetByID(ctx context.Context, id uuid.UUID) (*models.GigPost, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigPost), args.Error(1)
}

func (m *mockGigStore) SetMatched(ctx context.Context, id, providerID uuid.UUID) error {
	args := m.Called(ctx, id, providerID)
	return args.Error(0)
}

func (m *mockGigStore) ReopenSearch(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockGigStore) ListByPoster(ctx context.Context, posterID uuid.UUID, limit, offset int) ([]models.GigPost, error) {
	args := m.Called(ctx, posterID, limit, offset)
	return args.Get(0).([]models.GigPost), args.Error(1)
}

type mockProjectStore struct {
	mock.Mock
}

func (m *mockProjectStore) Create(ctx context.Context, p *models.GigProject) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*models.GigProject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigProject), args.Error(1)
}

func (m *mockProjectStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockProjectStore) UpdateStatusFromAny(ctx context.Context, id uuid.UUID, from []string, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockProjectStore) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProjectStore) SetCompleted(ctx context.Context, id uuid.UUID, from string) error {
	args := m.Called(ctx, id, from)
	return args.Error(0)
}

func (m *mockProjectStore) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.GigProject, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.GigProject), args.Error(1)
}

type mockEscrow struct {
	mock.Mock
}

func (m *mockEscrow) HoldFunds(ctx context.Context, amount float64, currency string, payerID uuid.UUID) (string, error) {
	args := m.Called(ctx, amount, currency, payerID)
	return args.String(0), args.Error(1)
}

func (m *mockEscrow) ReleaseOnCompletion(ctx context.Context, project *models.GigProject) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *mockEscrow) Refund(ctx context.Context, post *models.GigPost, project *models.GigProject, event, reason string) error {
	args := m.Called(ctx, post, project, event, reason)
	return args.Error(0)
}

type lifecycleMocks struct {
	gigs     *mockGigStore
	projects *mockProjectStore
	escrow   *mockEscrow
	notifier *mockNotifier
}

func newLifecycleService() (*LifecycleService, *lifecycleMocks) {
	m := &lifecycleMocks{
		gigs:     new(mockGigStore),
		projects: new(mockProjectStore),
		escrow:   new(mockEscrow),
		notifier: new(mockNotifier),
	}
	svc := NewLifecycleService(m.gigs, m.projects, m.escrow, NewFeeCalculator(0.10), m.notifier)
	return svc, m
}

func validGigInput() CreateGigInput {
	return CreateGigInput{
		Title:      "Кавер-группа на корпоратив",
		Amount:     500,
		Currency:   "USD",
		DateNeeded: time.Now().Add(48 * time.Hour),
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}
}

func searchingPost(posterID uuid.UUID) *models.GigPost {
	holdRef := "hold-1"
	return &models.GigPost{
		ID:            uuid.New(),
		PosterID:      posterID,
		Title:         "Кавер-группа на корпоратив",
		Amount:        500,
		Currency:      "USD",
		UrgentStatus:  models.GigStatusSearching,
		PaymentStatus: models.PaymentStatusEscrowed,
		HoldRef:       &holdRef,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		DateNeeded:    time.Now().Add(48 * time.Hour),
	}
}

func TestLifecycleService_CreatePost_Success(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()

	m.escrow.On("HoldFunds", mock.Anything, float64(500), "USD", posterID).Return("hold-1", nil)
	m.gigs.On("Create", mock.Anything, mock.Anything).Return(nil)

	post, err := svc.CreatePost(context.Background(), posterID, validGigInput())
	assert.NoError(t, err)
	assert.Equal(t, models.GigStatusSearching, post.UrgentStatus)
	assert.Equal(t, models.PaymentStatusEscrowed, post.PaymentStatus)
	assert.Equal(t, "hold-1", *post.HoldRef)
}

func TestLifecycleService_CreatePost_InvalidAmount(t *testing.T) {
	svc, m := newLifecycleService()
	in := validGigInput()
	in.Amount = 0

	_, err := svc.CreatePost(context.Background(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))
	m.escrow.AssertNotCalled(t, "HoldFunds", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_CreatePost_ExpiryAfterDateNeeded(t *testing.T) {
	svc, _ := newLifecycleService()
	in := validGigInput()
	in.ExpiresAt = in.DateNeeded.Add(time.Hour)

	_, err := svc.CreatePost(context.Background(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestLifecycleService_CreatePost_GatewayRejected(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()

	m.escrow.On("HoldFunds", mock.Anything, float64(500), "USD", posterID).
		Return("", apperror.ErrPaymentGateway)

	_, err := svc.CreatePost(context.Background(), posterID, validGigInput())
	assert.ErrorIs(t, err, apperror.ErrPaymentGateway)
	m.gigs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycleService_CreatePost_DBFailureReturnsHold(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()

	m.escrow.On("HoldFunds", mock.Anything, float64(500), "USD", posterID).Return("hold-1", nil)
	m.gigs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	m.escrow.On("Refund", mock.Anything, mock.Anything, (*models.GigProject)(nil), models.NotifyCancelled, mock.Anything).Return(nil)

	_, err := svc.CreatePost(context.Background(), posterID, validGigInput())
	assert.Error(t, err)
	m.escrow.AssertExpectations(t)
}

func TestLifecycleService_ConfirmMatch_Success(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()
	providerID := uuid.New()
	post := searchingPost(posterID)

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.gigs.On("SetMatched", mock.Anything, post.ID, providerID).Return(nil)
	m.projects.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, providerID, models.NotifyMatchConfirmed, mock.Anything).Return(nil)

	project, err := svc.ConfirmMatch(context.Background(), posterID, post.ID, providerID)
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusAwaitingAcceptance, project.Status)
	assert.Equal(t, float64(50), project.PlatformFee)
	assert.Equal(t, float64(450), project.PayoutAmount)
	assert.Equal(t, project.Amount, project.PlatformFee+project.PayoutAmount)
}

func TestLifecycleService_ConfirmMatch_NotPoster(t *testing.T) {
	svc, m := newLifecycleService()
	post := searchingPost(uuid.New())

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := svc.ConfirmMatch(context.Background(), uuid.New(), post.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestLifecycleService_ConfirmMatch_SelfProvider(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()
	post := searchingPost(posterID)

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := svc.ConfirmMatch(context.Background(), posterID, post.ID, posterID)
	assert.True(t, apperror.IsValidation(err))
}

func TestLifecycleService_ConfirmMatch_Expired(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()
	post := searchingPost(posterID)
	post.ExpiresAt = time.Now().Add(-time.Minute)

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)

	_, err := svc.ConfirmMatch(context.Background(), posterID, post.ID, uuid.New())
	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	m.gigs.AssertNotCalled(t, "SetMatched", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_ConfirmMatch_ConcurrentLoser(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()
	post := searchingPost(posterID)

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.gigs.On("SetMatched", mock.Anything, post.ID, mock.Anything).Return(common.ErrStatusConflict)

	_, err := svc.ConfirmMatch(context.Background(), posterID, post.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrAlreadyMatched)
	m.projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycleService_ConfirmMatch_ProjectCreateFailureReopensSearch(t *testing.T) {
	svc, m := newLifecycleService()
	posterID := uuid.New()
	post := searchingPost(posterID)

	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.gigs.On("SetMatched", mock.Anything, post.ID, mock.Anything).Return(nil)
	m.projects.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	m.gigs.On("ReopenSearch", mock.Anything, post.ID).Return(nil)

	_, err := svc.ConfirmMatch(context.Background(), posterID, post.ID, uuid.New())
	assert.Error(t, err)
	m.gigs.AssertExpectations(t)
}

func TestLifecycleService_AcceptAgreement_WrongActor(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:         uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusAwaitingAcceptance,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	// Заказчик не может принять условия за исполнителя.
	_, err := svc.AcceptAgreement(context.Background(), project.PosterID, project.ID)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestLifecycleService_DeclineAgreement_ReopensSearch(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:         uuid.New(),
		PostID:     uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusAwaitingAcceptance,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.projects.On("UpdateStatus", mock.Anything, project.ID, models.ProjectStatusAwaitingAcceptance, models.ProjectStatusDeclined).Return(nil)
	m.gigs.On("ReopenSearch", mock.Anything, project.PostID).Return(nil)
	m.notifier.On("Notify", mock.Anything, project.PosterID, models.NotifyAgreementDecline, mock.Anything).Return(nil)

	got, err := svc.DeclineAgreement(context.Background(), project.ProviderID, project.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusDeclined, got.Status)
	m.gigs.AssertExpectations(t)
}

func TestLifecycleService_ConfirmCompletion_Success(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:           uuid.New(),
		PostID:       uuid.New(),
		PosterID:     uuid.New(),
		ProviderID:   uuid.New(),
		PayoutAmount: 450,
		Status:       models.ProjectStatusDelivered,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.projects.On("SetCompleted", mock.Anything, project.ID, models.ProjectStatusDelivered).Return(nil)
	m.escrow.On("ReleaseOnCompletion", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, project.ProviderID, models.NotifyCompleted, mock.Anything).Return(nil)

	got, err := svc.ConfirmCompletion(context.Background(), project.PosterID, project.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, got.Status)
	m.escrow.AssertExpectations(t)
}

func TestLifecycleService_ConfirmCompletion_DoubleConfirm(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:         uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusDelivered,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.projects.On("SetCompleted", mock.Anything, project.ID, models.ProjectStatusDelivered).
		Return(nil).Once()
	m.projects.On("SetCompleted", mock.Anything, project.ID, models.ProjectStatusDelivered).
		Return(common.ErrStatusConflict)
	m.escrow.On("ReleaseOnCompletion", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.ConfirmCompletion(context.Background(), project.PosterID, project.ID)
	assert.NoError(t, err)

	// Повторное подтверждение проигрывает условный переход и денег не двигает.
	_, err = svc.ConfirmCompletion(context.Background(), project.PosterID, project.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	m.escrow.AssertNumberOfCalls(t, "ReleaseOnCompletion", 1)
}

func TestLifecycleService_Cancel_ByPoster(t *testing.T) {
	svc, m := newLifecycleService()
	post := searchingPost(uuid.New())
	project := &models.GigProject{
		ID:         uuid.New(),
		PostID:     post.ID,
		PosterID:   post.PosterID,
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusActive,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.projects.On("UpdateStatusFromAny", mock.Anything, project.ID,
		[]string{models.ProjectStatusAwaitingAcceptance, models.ProjectStatusActive}, models.ProjectStatusCancelled).Return(nil)
	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.escrow.On("Refund", mock.Anything, post, mock.Anything, models.NotifyCancelled, "планы изменились").Return(nil)
	m.notifier.On("Notify", mock.Anything, project.ProviderID, models.NotifyCancelled, mock.Anything).Return(nil)

	got, err := svc.Cancel(context.Background(), post.PosterID, models.RoleUser, project.ID, "планы изменились")
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCancelled, got.Status)
	m.escrow.AssertExpectations(t)
}

func TestLifecycleService_Cancel_ByProviderForbidden(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:         uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusActive,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.Cancel(context.Background(), project.ProviderID, models.RoleUser, project.ID, "не хочу")
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestLifecycleService_Cancel_AfterDelivery(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{
		ID:         uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusDelivered,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.projects.On("UpdateStatusFromAny", mock.Anything, project.ID, mock.Anything, models.ProjectStatusCancelled).
		Return(common.ErrStatusConflict)

	// После сдачи работы отмена закрыта, путь заказчика — спор.
	_, err := svc.Cancel(context.Background(), project.PosterID, models.RoleUser, project.ID, "передумал")
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	m.escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_ExpirePost_Searching(t *testing.T) {
	svc, m := newLifecycleService()
	post := searchingPost(uuid.New())

	m.escrow.On("Refund", mock.Anything, post, (*models.GigProject)(nil), models.NotifyGigExpired, mock.Anything).Return(nil)

	err := svc.ExpirePost(context.Background(), post)
	assert.NoError(t, err)
	m.escrow.AssertExpectations(t)
}

func TestLifecycleService_ExpirePost_AlreadyConfirmed(t *testing.T) {
	svc, m := newLifecycleService()
	post := searchingPost(uuid.New())
	post.UrgentStatus = models.GigStatusConfirmed

	err := svc.ExpirePost(context.Background(), post)
	assert.NoError(t, err)
	m.escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_ReleaseProject_NotCompleted(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{ID: uuid.New(), Status: models.ProjectStatusActive}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	err := svc.ReleaseProject(context.Background(), project.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	m.escrow.AssertNotCalled(t, "ReleaseOnCompletion", mock.Anything, mock.Anything)
}

// Отмена проекта и возврат денег — два шага. Если шлюз отказал после
// перехода в cancelled, сам переход повторить нельзя, но возврат обязан
// оставаться достижимым: RefundProject добивает его по отменённому проекту.
func TestLifecycleService_RefundProject_RedrivesRefundAfterGatewayFailure(t *testing.T) {
	svc, m := newLifecycleService()
	post := searchingPost(uuid.New())
	post.UrgentStatus = models.GigStatusConfirmed
	project := &models.GigProject{
		ID:       uuid.New(),
		PostID:   post.ID,
		PosterID: post.PosterID,
		Status:   models.ProjectStatusCancelled,
	}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.escrow.On("Refund", mock.Anything, post, project, models.NotifyCancelled, mock.Anything).Return(nil)

	err := svc.RefundProject(context.Background(), project.ID)
	assert.NoError(t, err)
	m.escrow.AssertExpectations(t)
}

func TestLifecycleService_RefundProject_NotCancelled(t *testing.T) {
	svc, m := newLifecycleService()
	project := &models.GigProject{ID: uuid.New(), Status: models.ProjectStatusActive}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	err := svc.RefundProject(context.Background(), project.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	m.escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
