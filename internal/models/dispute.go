package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	DisputeStatusOpen            = "open"
	DisputeStatusUnderReview     = "under_review"
	DisputeStatusResolvedRelease = "resolved_release"
	DisputeStatusResolvedRefund  = "resolved_refund"
)

// Dispute блокирует продвижение проекта до решения администратора.
// На проект допускается не более одного спора в статусе open/under_review.
type Dispute struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	ProjectID       uuid.UUID      `db:"project_id" json:"project_id"`
	RaisedBy        uuid.UUID      `db:"raised_by" json:"raised_by"`
	Against         uuid.UUID      `db:"against" json:"against"`
	Reason          string         `db:"reason" json:"reason"`
	Evidence        pq.StringArray `db:"evidence" json:"evidence"`
	CounterResponse *string        `db:"counter_response" json:"counter_response,omitempty"`
	CounterEvidence pq.StringArray `db:"counter_evidence" json:"counter_evidence"`
	Status          string         `db:"status" json:"status"`
	ResolvedBy      *uuid.UUID     `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsResolved сообщает, завершён ли спор.
func (d *Dispute) IsResolved() bool {
	return d.Status == DisputeStatusResolvedRelease || d.Status == DisputeStatusResolvedRefund
}
