package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating односторонняя оценка по завершённому проекту.
// Третьим лицам видна только когда обе стороны оценили друг друга.
type Rating struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ProjectID         uuid.UUID `db:"project_id" json:"project_id"`
	RaterID           uuid.UUID `db:"rater_id" json:"rater_id"`
	RateeID           uuid.UUID `db:"ratee_id" json:"ratee_id"`
	Overall           int       `db:"overall" json:"overall"`
	Professionalism   int       `db:"professionalism" json:"professionalism"`
	Punctuality       int       `db:"punctuality" json:"punctuality"`
	Quality           int       `db:"quality" json:"quality"`
	PaymentPromptness int       `db:"payment_promptness" json:"payment_promptness"`
	Review            *string   `db:"review" json:"review,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// UserRatingSummary агрегат по видимым оценкам пользователя.
type UserRatingSummary struct {
	UserID  uuid.UUID `json:"user_id"`
	Average float64   `json:"average"`
	Count   int       `json:"count"`
	Ratings []Rating  `json:"ratings"`
}
