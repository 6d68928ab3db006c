package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type mockGigSource struct {
	mock.Mock
}

func (m *mockGigSource) ListExpiredSearching(ctx context.Context, now time.Time, limit int) ([]models.GigPost, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GigPost), args.Error(1)
}

func (m *mockGigSource) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.GigPost, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GigPost), args.Error(1)
}

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpirePost(ctx context.Context, post *models.GigPost) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

type mockOnceNotifier struct {
	mock.Mock
}

func (m *mockOnceNotifier) NotifyOnce(ctx context.Context, userID uuid.UUID, event string, gigID uuid.UUID, window time.Duration, data interface{}) error {
	args := m.Called(ctx, userID, event, gigID, window, data)
	return args.Error(0)
}

type mockProjectSource struct {
	mock.Mock
}

func (m *mockProjectSource) ListDeliveredBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GigProject), args.Error(1)
}

func (m *mockProjectSource) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.GigProject, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GigProject), args.Error(1)
}

func (m *mockProjectSource) ListCancelledUnrefunded(ctx context.Context, limit int) ([]models.GigProject, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GigProject), args.Error(1)
}

type mockRefunder struct {
	mock.Mock
}

func (m *mockRefunder) RefundProject(ctx context.Context, projectID uuid.UUID) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

type mockRatingChecker struct {
	mock.Mock
}

func (m *mockRatingChecker) GetByProjectAndRater(ctx context.Context, projectID, raterID uuid.UUID) (*models.Rating, error) {
	args := m.Called(ctx, projectID, raterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rating), args.Error(1)
}

type mockPayoutSource struct {
	mock.Mock
}

func (m *mockPayoutSource) ListRetryable(ctx context.Context, limit int) ([]models.Payout, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payout), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) DispatchPayout(ctx context.Context, p *models.Payout) {
	m.Called(ctx, p)
}

func TestExpiryJob_ContinuesAfterFailure(t *testing.T) {
	gigs := new(mockGigSource)
	expirer := new(mockExpirer)
	job := NewExpiryJob(gigs, expirer, time.Minute)

	posts := []models.GigPost{
		{ID: uuid.New(), UrgentStatus: models.GigStatusSearching},
		{ID: uuid.New(), UrgentStatus: models.GigStatusSearching},
	}
	gigs.On("ListExpiredSearching", mock.Anything, mock.Anything, expiryBatchSize).Return(posts, nil)
	expirer.On("ExpirePost", mock.Anything, &posts[0]).Return(errors.New("gateway down"))
	expirer.On("ExpirePost", mock.Anything, &posts[1]).Return(nil)

	job.Run(context.Background())
	expirer.AssertNumberOfCalls(t, "ExpirePost", 2)
}

func TestExpiryJob_ListFailure(t *testing.T) {
	gigs := new(mockGigSource)
	expirer := new(mockExpirer)
	job := NewExpiryJob(gigs, expirer, time.Minute)

	gigs.On("ListExpiredSearching", mock.Anything, mock.Anything, expiryBatchSize).Return(nil, errors.New("db down"))

	job.Run(context.Background())
	expirer.AssertNotCalled(t, "ExpirePost", mock.Anything, mock.Anything)
}

func TestPreStartReminderJob_NotifiesBothSides(t *testing.T) {
	gigs := new(mockGigSource)
	notifier := new(mockOnceNotifier)
	job := NewPreStartReminderJob(gigs, notifier, time.Minute)

	providerID := uuid.New()
	post := models.GigPost{
		ID:                 uuid.New(),
		PosterID:           uuid.New(),
		SelectedProviderID: &providerID,
		Title:              "Джаз-трио на ужин",
		UrgentStatus:       models.GigStatusConfirmed,
		DateNeeded:         time.Now().Add(time.Hour),
	}
	gigs.On("ListConfirmedStartingBetween", mock.Anything, mock.Anything, mock.Anything).Return([]models.GigPost{post}, nil)
	notifier.On("NotifyOnce", mock.Anything, post.PosterID, models.NotifyGigPreStart, post.ID, 2*time.Hour, mock.Anything).Return(nil)
	notifier.On("NotifyOnce", mock.Anything, providerID, models.NotifyGigPreStart, post.ID, 2*time.Hour, mock.Anything).Return(nil)

	job.Run(context.Background())
	notifier.AssertExpectations(t)
}

func TestDeliveryReminderJob_NotifiesPoster(t *testing.T) {
	projects := new(mockProjectSource)
	notifier := new(mockOnceNotifier)
	job := NewDeliveryReminderJob(projects, notifier, time.Minute)

	p := models.GigProject{
		ID:       uuid.New(),
		PostID:   uuid.New(),
		PosterID: uuid.New(),
		Title:    "Ведущий на юбилей",
		Status:   models.ProjectStatusDelivered,
	}
	projects.On("ListDeliveredBetween", mock.Anything, mock.Anything, mock.Anything).Return([]models.GigProject{p}, nil)
	notifier.On("NotifyOnce", mock.Anything, p.PosterID, models.NotifyConfirmDelivery, p.PostID, 24*time.Hour, mock.Anything).Return(nil)

	job.Run(context.Background())
	notifier.AssertExpectations(t)
}

func TestRatingPromptJob_SkipsAlreadyRated(t *testing.T) {
	projects := new(mockProjectSource)
	ratings := new(mockRatingChecker)
	notifier := new(mockOnceNotifier)
	job := NewRatingPromptJob(projects, ratings, notifier, time.Minute)

	p := models.GigProject{
		ID:         uuid.New(),
		PostID:     uuid.New(),
		PosterID:   uuid.New(),
		ProviderID: uuid.New(),
		Status:     models.ProjectStatusCompleted,
	}
	projects.On("ListCompletedBetween", mock.Anything, mock.Anything, mock.Anything).Return([]models.GigProject{p}, nil)
	// Заказчик уже оценил, исполнитель ещё нет.
	ratings.On("GetByProjectAndRater", mock.Anything, p.ID, p.PosterID).Return(&models.Rating{ID: uuid.New()}, nil)
	ratings.On("GetByProjectAndRater", mock.Anything, p.ID, p.ProviderID).Return(nil, nil)
	notifier.On("NotifyOnce", mock.Anything, p.ProviderID, models.NotifyRatingPrompt, p.PostID, 24*time.Hour, mock.Anything).Return(nil)

	job.Run(context.Background())
	notifier.AssertExpectations(t)
	notifier.AssertNotCalled(t, "NotifyOnce", mock.Anything, p.PosterID, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayoutRetryJob_DispatchesEach(t *testing.T) {
	payouts := new(mockPayoutSource)
	dispatcher := new(mockDispatcher)
	job := NewPayoutRetryJob(payouts, dispatcher, time.Minute)

	pending := []models.Payout{
		{ID: uuid.New(), Status: models.PayoutStatusPending},
		{ID: uuid.New(), Status: models.PayoutStatusFailed},
	}
	payouts.On("ListRetryable", mock.Anything, payoutBatchSize).Return(pending, nil)
	dispatcher.On("DispatchPayout", mock.Anything, mock.Anything).Return()

	job.Run(context.Background())
	dispatcher.AssertNumberOfCalls(t, "DispatchPayout", 2)
}

func TestRefundRetryJob_RefundsEachAndContinuesAfterFailure(t *testing.T) {
	projects := new(mockProjectSource)
	refunder := new(mockRefunder)
	job := NewRefundRetryJob(projects, refunder, time.Minute)

	stuck := []models.GigProject{
		{ID: uuid.New(), Status: models.ProjectStatusCancelled},
		{ID: uuid.New(), Status: models.ProjectStatusCancelled},
	}
	projects.On("ListCancelledUnrefunded", mock.Anything, refundBatchSize).Return(stuck, nil)
	refunder.On("RefundProject", mock.Anything, stuck[0].ID).Return(errors.New("gateway down"))
	refunder.On("RefundProject", mock.Anything, stuck[1].ID).Return(nil)

	job.Run(context.Background())
	refunder.AssertNumberOfCalls(t, "RefundProject", 2)
}

func TestRefundRetryJob_ListFailure(t *testing.T) {
	projects := new(mockProjectSource)
	refunder := new(mockRefunder)
	job := NewRefundRetryJob(projects, refunder, time.Minute)

	projects.On("ListCancelledUnrefunded", mock.Anything, refundBatchSize).Return(nil, errors.New("db down"))

	job.Run(context.Background())
	refunder.AssertNotCalled(t, "RefundProject", mock.Anything, mock.Anything)
}

func TestManager_RunByName(t *testing.T) {
	mgr, err := NewManager()
	assert.NoError(t, err)
	defer mgr.Stop()

	gigs := new(mockGigSource)
	expirer := new(mockExpirer)
	gigs.On("ListExpiredSearching", mock.Anything, mock.Anything, expiryBatchSize).Return([]models.GigPost{}, nil)

	job := NewExpiryJob(gigs, expirer, time.Hour)
	assert.NoError(t, mgr.Register(job))
	assert.Contains(t, mgr.JobNames(), "gig_expiry")

	assert.NoError(t, mgr.RunByName(context.Background(), "gig_expiry"))
	gigs.AssertExpectations(t)

	err = mgr.RunByName(context.Background(), "no_such_job")
	assert.Error(t, err)
}
