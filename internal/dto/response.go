package dto

import (
	"github.com/yokitheyo/thumbcache/internal/domain"
)

type ReferenceResponse struct {
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

type WarmResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapReferenceToResponse(ref *domain.Reference) *ReferenceResponse {
	if ref == nil {
		return nil
	}
	return &ReferenceResponse{
		Kind:        string(ref.Kind),
		URL:         ref.URL,
		Fingerprint: ref.Fingerprint,
	}
}
