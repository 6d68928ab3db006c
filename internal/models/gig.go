package models

import (
	"time"

	"github.com/google/uuid"
)

// GigPost описывает срочное объявление с предоплатой.
// Деньги удерживаются платёжным шлюзом до подтверждения исполнителя.
type GigPost struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PosterID           uuid.UUID  `db:"poster_id" json:"poster_id"`
	Title              string     `db:"title" json:"title"`
	Description        *string    `db:"description" json:"description,omitempty"`
	Amount             float64    `db:"amount" json:"amount"`
	Currency           string     `db:"currency" json:"currency"`
	UrgentStatus       string     `db:"urgent_status" json:"urgent_status"`
	PaymentStatus      string     `db:"payment_status" json:"payment_status"`
	SelectedProviderID *uuid.UUID `db:"selected_provider_id" json:"selected_provider_id,omitempty"`
	HoldRef            *string    `db:"hold_ref" json:"-"`
	ChargeRef          *string    `db:"charge_ref" json:"-"`
	ExpiresAt          time.Time  `db:"expires_at" json:"expires_at"`
	DateNeeded         time.Time  `db:"date_needed" json:"date_needed"`
	Location           *string    `db:"location" json:"location,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
