package api

import "github.com/starford/clueword/internal/models"

// SaveSessionRequest is the create-or-update body (aliased from the domain layer).
type SaveSessionRequest = models.SessionPayload

// SessionDetail is the full session response type.
type SessionDetail = models.Session

// SessionListResponse wraps paginated session listings.
type SessionListResponse struct {
	Sessions []models.SessionSummary `json:"sessions" validate:"required"`
	Total    int                     `json:"total" example:"42" validate:"required"`
}
