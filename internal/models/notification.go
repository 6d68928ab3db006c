package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений планировщика. Пара (user, type, gig) дедуплицируется
// через NotificationRateLimit.
const (
	NotifyGigExpired       = "gig_expired"
	NotifyGigPreStart      = "gig_pre_start"
	NotifyConfirmDelivery  = "gig_confirm_delivery"
	NotifyRatingPrompt     = "gig_rating_prompt"
	NotifyMatchConfirmed   = "gig_match_confirmed"
	NotifyAgreementAccept  = "gig_agreement_accepted"
	NotifyAgreementDecline = "gig_agreement_declined"
	NotifyDelivered        = "gig_delivered"
	NotifyCompleted        = "gig_completed"
	NotifyCancelled        = "gig_cancelled"
	NotifyDisputeOpened    = "gig_dispute_opened"
	NotifyDisputeResolved  = "gig_dispute_resolved"
)

// Notification сохранённое уведомление пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationRateLimit маркер дедупликации для периодических задач:
// повторный запуск задачи внутри окна не отправляет уведомление повторно.
type NotificationRateLimit struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Type   string    `db:"type" json:"type"`
	GigID  uuid.UUID `db:"gig_id" json:"gig_id"`
	SentAt time.Time `db:"sent_at" json:"sent_at"`
}
