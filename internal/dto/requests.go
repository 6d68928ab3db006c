package dto

import (
	"time"
)

// CreateGigRequest represents the request to post an urgent gig
type CreateGigRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description"`
	Amount      float64   `json:"amount" binding:"required,gt=0"`
	Currency    string    `json:"currency" binding:"required,len=3"`
	DateNeeded  time.Time `json:"date_needed" binding:"required"`
	ExpiresAt   time.Time `json:"expires_at" binding:"required"`
	Location    *string   `json:"location"`
}

// ConfirmMatchRequest represents the request to confirm a provider
type ConfirmMatchRequest struct {
	ProviderID string `json:"provider_id" binding:"required,uuid"`
}

// CancelProjectRequest represents the request to cancel an in-flight project
type CancelProjectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OpenDisputeRequest represents the request to open a dispute
type OpenDisputeRequest struct {
	Reason   string   `json:"reason" binding:"required"`
	Evidence []string `json:"evidence"`
}

// RespondDisputeRequest represents the counter-response of the accused party
type RespondDisputeRequest struct {
	Response string   `json:"response" binding:"required"`
	Evidence []string `json:"evidence"`
}

// ResolveDisputeRequest represents the admin ruling on a dispute
type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=release refund"`
}

// SubmitRatingRequest represents the request to rate a counterpart
type SubmitRatingRequest struct {
	Overall           int     `json:"overall" binding:"required,min=1,max=5"`
	Professionalism   int     `json:"professionalism" binding:"required,min=1,max=5"`
	Punctuality       int     `json:"punctuality" binding:"required,min=1,max=5"`
	Quality           int     `json:"quality" binding:"required,min=1,max=5"`
	PaymentPromptness int     `json:"payment_promptness" binding:"required,min=1,max=5"`
	Review            *string `json:"review"`
}

// RunJobRequest represents the admin request to trigger a scheduler job
type RunJobRequest struct {
	Name string `json:"name" binding:"required"`
}
