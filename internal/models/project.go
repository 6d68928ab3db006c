package models

import (
	"time"

	"github.com/google/uuid"
)

// GigProject описывает договорённость между заказчиком и исполнителем
// после подтверждения отклика на срочное объявление.
// Инвариант: payout_amount + platform_fee == amount.
type GigProject struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PostID       uuid.UUID  `db:"post_id" json:"post_id"`
	PosterID     uuid.UUID  `db:"poster_id" json:"poster_id"`
	ProviderID   uuid.UUID  `db:"provider_id" json:"provider_id"`
	Title        string     `db:"title" json:"title"`
	Brief        *string    `db:"brief" json:"brief,omitempty"`
	Amount       float64    `db:"amount" json:"amount"`
	Currency     string     `db:"currency" json:"currency"`
	PlatformFee  float64    `db:"platform_fee" json:"platform_fee"`
	PayoutAmount float64    `db:"payout_amount" json:"payout_amount"`
	Deadline     time.Time  `db:"deadline" json:"deadline"`
	Status       string     `db:"status" json:"status"`
	ChatThreadID *uuid.UUID `db:"chat_thread_id" json:"chat_thread_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DeliveredAt  *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal сообщает, достиг ли проект терминального статуса.
func (p *GigProject) IsTerminal() bool {
	_, ok := TerminalProjectStatuses[p.Status]
	return ok
}

// CounterpartOf возвращает вторую сторону проекта для userID.
// Второе значение false, если userID не участвует в проекте.
func (p *GigProject) CounterpartOf(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case p.PosterID:
		return p.ProviderID, true
	case p.ProviderID:
		return p.PosterID, true
	default:
		return uuid.Nil, false
	}
}
