package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы транзакций кошелька
const (
	WalletTxTypeGigPayout   = "gig_payout"
	WalletTxTypeRefundDebit = "gig_refund_debit"
)

// Статусы транзакций кошелька
const (
	WalletTxStatusCompleted = "completed"
	WalletTxStatusShortfall = "shortfall"
)

// Статусы выплат
const (
	PayoutStatusPending = "pending"
	PayoutStatusSent    = "sent"
	PayoutStatusFailed  = "failed"
)

// WalletBalance внутренний баланс исполнителя.
type WalletBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available float64   `db:"available" json:"available"`
	Currency  string    `db:"currency" json:"currency"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction запись в леджере кошелька. Баланс никогда не меняется
// без соответствующей записи, и наоборот — обе операции выполняются в одной
// транзакции БД.
type WalletTransaction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	ProjectID *uuid.UUID      `db:"project_id" json:"project_id,omitempty"`
	Type      string          `db:"type" json:"type"`
	Amount    float64         `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Status    string          `db:"status" json:"status"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Payout заявка на вывод захваченных средств на внешний счёт исполнителя.
// Неуспешные заявки переотправляются планировщиком независимо от жизненного
// цикла проекта.
type Payout struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	ProjectID uuid.UUID  `db:"project_id" json:"project_id"`
	Amount    float64    `db:"amount" json:"amount"`
	Currency  string     `db:"currency" json:"currency"`
	Status    string     `db:"status" json:"status"`
	PayoutRef *string    `db:"payout_ref" json:"payout_ref,omitempty"`
	Attempts  int        `db:"attempts" json:"attempts"`
	LastError *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}
