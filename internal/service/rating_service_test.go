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

type mockRatingStore struct {
	mock.Mock
}

func (m *mockRatingStore) Create(ctx context.Context, rating *models.Rating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *mockRatingStore) GetByProjectAndRater(ctx context.Context, projectID, raterID uuid.UUID) (*models.Rating, error) {
	args := m.Called(ctx, projectID, raterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rating), args.Error(1)
}

func (m *mockRatingStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Rating, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Rating), args.Error(1)
}

func (m *mockRatingStore) ListVisibleByRatee(ctx context.Context, rateeID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	args := m.Called(ctx, rateeID, limit, offset)
	return args.Get(0).([]models.Rating), args.Error(1)
}

func (m *mockRatingStore) GetVisibleAverage(ctx context.Context, rateeID uuid.UUID) (float64, int, error) {
	args := m.Called(ctx, rateeID)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

type mockDisputeLookup struct {
	mock.Mock
}

func (m *mockDisputeLookup) GetResolvedByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

type ratingMocks struct {
	ratings  *mockRatingStore
	projects *mockProjectStore
	disputes *mockDisputeLookup
	notifier *mockNotifier
}

func newRatingService() (*RatingService, *ratingMocks) {
	m := &ratingMocks{
		ratings:  new(mockRatingStore),
		projects: new(mockProjectStore),
		disputes: new(mockDisputeLookup),
		notifier: new(mockNotifier),
	}
	svc := NewRatingService(m.ratings, m.projects, m.disputes, m.notifier)
	return svc, m
}

func goodScores() SubmitRatingInput {
	return SubmitRatingInput{
		Overall:           5,
		Professionalism:   5,
		Punctuality:       4,
		Quality:           5,
		PaymentPromptness: 5,
	}
}

func completedProject() *models.GigProject {
	return &models.GigProject{
		ID:         uuid.New(),
		PostID:     uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Title:      "Скрипачка на открытие ресторана",
		Status:     models.ProjectStatusCompleted,
	}
}

func TestRatingService_Submit_Success(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.ratings.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, project.ProviderID, models.NotifyRatingPrompt, mock.Anything).Return(nil)

	rating, err := svc.Submit(context.Background(), project.PosterID, project.ID, goodScores())
	assert.NoError(t, err)
	assert.Equal(t, project.PosterID, rating.RaterID)
	assert.Equal(t, project.ProviderID, rating.RateeID)
}

func TestRatingService_Submit_ScoreOutOfRange(t *testing.T) {
	svc, _ := newRatingService()
	in := goodScores()
	in.Quality = 6

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))

	in.Quality = 0
	_, err = svc.Submit(context.Background(), uuid.New(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestRatingService_Submit_ActiveProject(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()
	project.Status = models.ProjectStatusActive

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.Submit(context.Background(), project.PosterID, project.ID, goodScores())
	assert.Error(t, err)
	m.ratings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRatingService_Submit_NotParticipant(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), project.ID, goodScores())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestRatingService_Submit_Duplicate(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.ratings.On("Create", mock.Anything, mock.Anything).Return(common.ErrAlreadyExists)

	_, err := svc.Submit(context.Background(), project.PosterID, project.ID, goodScores())
	assert.ErrorIs(t, err, apperror.ErrAlreadyRated)
}

func TestRatingService_Submit_CancelledViaDisputeRefund(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()
	project.Status = models.ProjectStatusCancelled

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("GetResolvedByProjectID", mock.Anything, project.ID).
		Return(&models.Dispute{Status: models.DisputeStatusResolvedRefund}, nil)
	m.ratings.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, mock.Anything, models.NotifyRatingPrompt, mock.Anything).Return(nil)

	// Отменённый через спор проект оценивается: взаимодействие состоялось.
	_, err := svc.Submit(context.Background(), project.ProviderID, project.ID, goodScores())
	assert.NoError(t, err)
}

func TestRatingService_Submit_CancelledWithoutDispute(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()
	project.Status = models.ProjectStatusCancelled

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.disputes.On("GetResolvedByProjectID", mock.Anything, project.ID).Return(nil, apperror.ErrDisputeNotFound)

	_, err := svc.Submit(context.Background(), project.PosterID, project.ID, goodScores())
	assert.Error(t, err)
	m.ratings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRatingService_GetForProject_CounterpartHiddenUntilOwn(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.ratings.On("GetByProjectAndRater", mock.Anything, project.ID, project.PosterID).Return(nil, nil)

	got, err := svc.GetForProject(context.Background(), project.PosterID, project.ID)
	assert.NoError(t, err)
	assert.Nil(t, got.Own)
	assert.Nil(t, got.Counterpart)
	// Пока своей оценки нет, чужая даже не запрашивается.
	m.ratings.AssertNumberOfCalls(t, "GetByProjectAndRater", 1)
}

func TestRatingService_GetForProject_MutualReveal(t *testing.T) {
	svc, m := newRatingService()
	project := completedProject()
	own := &models.Rating{ID: uuid.New(), ProjectID: project.ID, RaterID: project.PosterID, Overall: 5}
	theirs := &models.Rating{ID: uuid.New(), ProjectID: project.ID, RaterID: project.ProviderID, Overall: 4}

	m.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	m.ratings.On("GetByProjectAndRater", mock.Anything, project.ID, project.PosterID).Return(own, nil)
	m.ratings.On("GetByProjectAndRater", mock.Anything, project.ID, project.ProviderID).Return(theirs, nil)

	got, err := svc.GetForProject(context.Background(), project.PosterID, project.ID)
	assert.NoError(t, err)
	assert.Equal(t, own, got.Own)
	assert.Equal(t, theirs, got.Counterpart)
}

func TestRatingService_GetForUser_RoundsAverage(t *testing.T) {
	svc, m := newRatingService()
	userID := uuid.New()

	m.ratings.On("GetVisibleAverage", mock.Anything, userID).Return(4.666666666666667, 3, nil)
	m.ratings.On("ListVisibleByRatee", mock.Anything, userID, 20, 0).Return([]models.Rating{}, nil)

	summary, err := svc.GetForUser(context.Background(), userID, 20, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4.67, summary.Average)
	assert.Equal(t, 3, summary.Count)
}
