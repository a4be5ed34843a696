package dto

import (
	"encoding/json"

	"github.com/noah-isme/provadm-api/internal/models"
)

// CreateRequestRequest payload for submitting a change request.
type CreateRequestRequest struct {
	Type         models.RequestType `json:"type" validate:"required"`
	SubjectScope string             `json:"subjectScope" validate:"required"`
	Reason       string             `json:"reason" validate:"max=2000"`
	Payload      json.RawMessage    `json:"payload" validate:"required"`
}

// ActionRequest captures a reviewer decision on a request.
type ActionRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// ActionResponse reports the outcome of a decision.
type ActionResponse struct {
	RequestID string               `json:"requestId"`
	NewStatus models.RequestStatus `json:"newStatus"`
	Message   string               `json:"message"`
}

// RequestQuery mirrors supported listing filters. Scope filters are not
// client-settable; they are derived from the actor.
type RequestQuery struct {
	Status []models.RequestStatus
	Type   models.RequestType
	Limit  int
	Offset int
}
