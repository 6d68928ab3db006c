package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
	"github.com/stagelink/gig-backend/internal/repository/common"
)

// NotificationStore описывает хранилище уведомлений.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	AllowOnce(ctx context.Context, userID uuid.UUID, ntype string, gigID uuid.UUID, window time.Duration) (bool, error)
}

// Broadcaster доставляет уведомление в открытые websocket-сессии
// пользователя. Отсутствие подключений не считается ошибкой.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, payload []byte)
}

// NotificationService сохраняет уведомления и рассылает их по websocket.
// Сохранение первично: если запись в БД не удалась, рассылки нет.
type NotificationService struct {
	store NotificationStore
	hub   Broadcaster
}

// NewNotificationService создаёт сервис уведомлений. hub может быть nil —
// тогда уведомления только сохраняются.
func NewNotificationService(store NotificationStore, hub Broadcaster) *NotificationService {
	return &NotificationService{store: store, hub: hub}
}

// Notify сохраняет уведомление типа event и рассылает его в активные
// сессии пользователя.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("notification service: marshal payload %w", err)
	}

	n := &models.Notification{UserID: userID, Payload: payload}
	if err := s.store.Create(ctx, n); err != nil {
		logger.Log.WithField("user_id", userID).WithError(err).Error("notification: сохранение не удалось")
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(userID, payload)
	}
	return nil
}

// NotifyOnce отправляет уведомление, только если для (user, event, gig)
// оно ещё не уходило в пределах окна window. Используется периодическими
// задачами, чьи окна выборки перекрываются между запусками.
func (s *NotificationService) NotifyOnce(ctx context.Context, userID uuid.UUID, event string, gigID uuid.UUID, window time.Duration, data interface{}) error {
	allowed, err := s.store.AllowOnce(ctx, userID, event, gigID, window)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}
	return s.Notify(ctx, userID, event, data)
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	return s.store.List(ctx, userID, limit, offset, unreadOnly)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkAsRead отмечает уведомление прочитанным; чужое уведомление
// отметить нельзя.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	n, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		if err == common.ErrNotFound {
			return apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
		}
		return err
	}
	if n.UserID != userID {
		return apperror.ErrNotAuthorized
	}
	return s.store.MarkAsRead(ctx, notificationID)
}

// MarkAllAsRead отмечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkAllAsRead(ctx, userID)
}
