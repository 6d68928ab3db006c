package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Open(ctx context.Context, d *models.Dispute, fromStatuses []string) error {
	args := m.Called(ctx, d, fromStatuses)
	return args.Error(0)
}

func (m *mockDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetActiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetResolvedByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) SetCounterResponse(ctx context.Context, id uuid.UUID, response string, evidence []string) error {
	args := m.Called(ctx, id, response, evidence)
	return args.Error(0)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, id uuid.UUID, status string, resolvedBy uuid.UUID) error {
	args := m.Called(ctx, id, status, resolvedBy)
	return args.Error(0)
}

func (m *mockDisputeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type disputeMocks struct {
	disputes *mockDisputeStore
	projects *mockProjectStore
	gigs     *mockGigStore
	escrow   *mockEscrow
	notifier *mockNotifier
}

func newDisputeService() (*DisputeService, *disputeMocks) {
	m := &disputeMocks{
		disputes: new(mockDisputeStore),
		projects: new(mockProjectStore),
		gigs:     new(mockGigStore),
		escrow:   new(mockEscrow),
		notifier: new(mockNotifier),
	}
	svc := NewDisputeService(m.disputes, m.projects, m.gigs, m.escrow, m.notifier)
	return svc, m
}

func activeProject() *models.GigProject {
	return &models.GigProject{
		ID:           uuid.New(),
		PostID:       uuid.New(),
		PosterID:     uuid.New(),
		ProviderID:   uuid.New(),
		Title:        "Диджей на день рождения",
		Amount:       300,
		Currency:     "USD",
		PlatformFee:  30,
		PayoutAmount: 270,
		Status:       models.ProjectStatusActive,
	}
}

func TestDisputeService_Open_Success(t *testing.T) {
	svc, m := newDisputeService()
	project := activeProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("Open", mock.Anything, mock.Anything, disputableStatuses).Return(nil)
	m.notifier.On("Notify", mock.Anything, project.ProviderID, models.NotifyDisputeOpened, mock.Anything).Return(nil)

	d, err := svc.Open(context.Background(), project.PosterID, project.ID, "исполнитель не вышел на связь", []string{"evidence/1.png"})
	assert.NoError(t, err)
	assert.Equal(t, project.PosterID, d.RaisedBy)
	assert.Equal(t, project.ProviderID, d.Against)
	assert.Equal(t, models.DisputeStatusOpen, d.Status)
	m.notifier.AssertExpectations(t)
}

func TestDisputeService_Open_EmptyReason(t *testing.T) {
	svc, _ := newDisputeService()

	_, err := svc.Open(context.Background(), uuid.New(), uuid.New(), "", nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Open_NotParticipant(t *testing.T) {
	svc, m := newDisputeService()
	project := activeProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.Open(context.Background(), uuid.New(), project.ID, "претензия", nil)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_Open_CompletedProject(t *testing.T) {
	svc, m := newDisputeService()
	project := activeProject()
	project.Status = models.ProjectStatusCompleted

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.Open(context.Background(), project.PosterID, project.ID, "не понравилось", nil)
	assert.ErrorIs(t, err, apperror.ErrProjectNotDisputable)
	m.disputes.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Open_Duplicate(t *testing.T) {
	svc, m := newDisputeService()
	project := activeProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(common.ErrAlreadyExists)

	_, err := svc.Open(context.Background(), project.ProviderID, project.ID, "заказчик пропал", nil)
	assert.ErrorIs(t, err, apperror.ErrDisputeAlreadyOpen)
}

func TestDisputeService_Respond_Success(t *testing.T) {
	svc, m := newDisputeService()
	d := &models.Dispute{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		RaisedBy:  uuid.New(),
		Against:   uuid.New(),
		Status:    models.DisputeStatusOpen,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.disputes.On("SetCounterResponse", mock.Anything, d.ID, "работа была сдана в срок", []string{"evidence/2.png"}).Return(nil)
	m.notifier.On("Notify", mock.Anything, d.RaisedBy, models.NotifyDisputeOpened, mock.Anything).Return(nil)

	got, err := svc.Respond(context.Background(), d.Against, d.ID, "работа была сдана в срок", []string{"evidence/2.png"})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUnderReview, got.Status)
}

func TestDisputeService_Respond_WrongParty(t *testing.T) {
	svc, m := newDisputeService()
	d := &models.Dispute{
		ID:       uuid.New(),
		RaisedBy: uuid.New(),
		Against:  uuid.New(),
		Status:   models.DisputeStatusOpen,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	// Ответить может только сторона, против которой открыт спор.
	_, err := svc.Respond(context.Background(), d.RaisedBy, d.ID, "ответ", nil)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_Respond_ResolvedDispute(t *testing.T) {
	svc, m := newDisputeService()
	d := &models.Dispute{
		ID:      uuid.New(),
		Against: uuid.New(),
		Status:  models.DisputeStatusResolvedRelease,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.Respond(context.Background(), d.Against, d.ID, "поздно", nil)
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)
}

func TestDisputeService_Resolve_Release(t *testing.T) {
	svc, m := newDisputeService()
	adminID := uuid.New()
	project := activeProject()
	project.Status = models.ProjectStatusDisputed
	d := &models.Dispute{
		ID:        uuid.New(),
		ProjectID: project.ID,
		RaisedBy:  project.PosterID,
		Against:   project.ProviderID,
		Status:    models.DisputeStatusUnderReview,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedRelease, adminID).Return(nil)
	m.projects.On("SetCompleted", mock.Anything, project.ID, models.ProjectStatusDisputed).Return(nil)
	m.escrow.On("ReleaseOnCompletion", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, d.RaisedBy, models.NotifyDisputeResolved, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, d.Against, models.NotifyDisputeResolved, mock.Anything).Return(nil)

	got, err := svc.Resolve(context.Background(), adminID, d.ID, DisputeOutcomeRelease)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedRelease, got.Status)
	assert.Equal(t, adminID, *got.ResolvedBy)
	m.escrow.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestDisputeService_Resolve_Refund(t *testing.T) {
	svc, m := newDisputeService()
	adminID := uuid.New()
	post := searchingPost(uuid.New())
	project := activeProject()
	project.PostID = post.ID
	project.PosterID = post.PosterID
	project.Status = models.ProjectStatusDisputed
	d := &models.Dispute{
		ID:        uuid.New(),
		ProjectID: project.ID,
		RaisedBy:  project.PosterID,
		Against:   project.ProviderID,
		Status:    models.DisputeStatusUnderReview,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedRefund, adminID).Return(nil)
	m.projects.On("UpdateStatus", mock.Anything, project.ID, models.ProjectStatusDisputed, models.ProjectStatusCancelled).Return(nil)
	m.gigs.On("GetByID", mock.Anything, post.ID).Return(post, nil)
	m.escrow.On("Refund", mock.Anything, post, mock.Anything, models.NotifyCancelled, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, mock.Anything, models.NotifyDisputeResolved, mock.Anything).Return(nil)

	got, err := svc.Resolve(context.Background(), adminID, d.ID, DisputeOutcomeRefund)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedRefund, got.Status)
	m.escrow.AssertExpectations(t)
}

func TestDisputeService_Resolve_InvalidOutcome(t *testing.T) {
	svc, _ := newDisputeService()

	_, err := svc.Resolve(context.Background(), uuid.New(), uuid.New(), "split")
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_ConcurrentLoser(t *testing.T) {
	svc, m := newDisputeService()
	adminID := uuid.New()
	project := activeProject()
	project.Status = models.ProjectStatusDisputed
	d := &models.Dispute{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    models.DisputeStatusUnderReview,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("Resolve", mock.Anything, d.ID, mock.Anything, adminID).Return(common.ErrStatusConflict)

	// Проигравший условное обновление решения денег не двигает.
	_, err := svc.Resolve(context.Background(), adminID, d.ID, DisputeOutcomeRelease)
	assert.ErrorIs(t, err, apperror.ErrDisputeClosed)
	m.escrow.AssertNotCalled(t, "ReleaseOnCompletion", mock.Anything, mock.Anything)
	m.escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Get_StrangerForbidden(t *testing.T) {
	svc, m := newDisputeService()
	d := &models.Dispute{
		ID:       uuid.New(),
		RaisedBy: uuid.New(),
		Against:  uuid.New(),
		Status:   models.DisputeStatusOpen,
	}

	m.disputes.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.Get(context.Background(), uuid.New(), models.RoleUser, d.ID)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)

	got, err := svc.Get(context.Background(), uuid.New(), models.RoleAdmin, d.ID)
	assert.NoError(t, err)
	assert.Equal(t, d, got)
}
