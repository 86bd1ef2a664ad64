package server

import (
	"exclusivewire/internal/domain"
)

// Request payloads

type CreateUserRequest struct {
	ID          *string  `json:"id,omitempty"`
	Name        string   `json:"name"`
	Role        string   `json:"role" enum:"company,journalist"`
	BeatTags    []string `json:"beat_tags,omitempty"`
	CompanyName *string  `json:"company_name,omitempty"`
	Publication *string  `json:"publication,omitempty"`
}

type CreateAnnouncementRequest struct {
	ID                 *string  `json:"id,omitempty"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	FullContent        string   `json:"full_content"`
	Attachments        []string `json:"attachments,omitempty"`
	IndustryTags       []string `json:"industry_tags,omitempty"`
	JournalistBeatTags []string `json:"journalist_beat_tags"`
	EmbargoAt          string   `json:"embargo_at" format:"date-time"`
	Plan               string   `json:"plan" enum:"Basic,Premium"`
	Fee                int64    `json:"fee"`
}

type PublishRequest struct {
	PublishedURL string `json:"published_url"`
}

type PostChatMessageRequest struct {
	Message string `json:"message"`
}

type UpdateProfileRequest struct {
	Bio               *string             `json:"bio,omitempty"`
	YearsExperience   *int                `json:"years_experience,omitempty"`
	Specializations   []string            `json:"specializations,omitempty"`
	Beats             []domain.BeatDetail `json:"beats,omitempty"`
	ResponseTime      *string             `json:"response_time,omitempty" enum:"immediate,same-day,within-week,flexible"`
	ExclusiveInterest *string             `json:"exclusive_interest,omitempty" enum:"high,medium,low"`
	Searchable        *bool               `json:"searchable,omitempty"`
}

type CreateAPIKeyRequest struct {
	UserID string  `json:"user_id"`
	Name   *string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type ClaimResultResponse struct {
	Announcement domain.Announcement `json:"announcement"`
	ChatID       string              `json:"chat_id"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func apiKeyResponse(k domain.APIKey, plaintext string) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		UserID:    k.UserID,
		Name:      k.Name,
		Key:       plaintext,
		CreatedAt: k.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
