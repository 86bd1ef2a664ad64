package engine

import (
	"context"
	"fmt"

	"exclusivewire/internal/domain"
	"exclusivewire/internal/events"
	"exclusivewire/internal/repo"
)

// chatAccess resolves the announcement and enforces the two-party rule:
// only the owning company and the claimant may see or post to the thread.
func (e Engine) chatAccess(ctx context.Context, announcementID string, ident domain.Identity) (domain.Announcement, error) {
	a, err := e.Repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return domain.Announcement{}, err
	}
	if a.Status == domain.StatusArchived {
		return domain.Announcement{}, repo.ErrNotFound
	}
	if a.CompanyID == ident.UserID {
		return a, nil
	}
	if a.ClaimedBy != nil && *a.ClaimedBy == ident.UserID {
		return a, nil
	}
	return domain.Announcement{}, ForbiddenError{Reason: "access denied"}
}

// GetChat returns the announcement's thread with all messages, oldest first.
func (e Engine) GetChat(ctx context.Context, announcementID string, ident domain.Identity) (domain.ChatThread, error) {
	if _, err := e.chatAccess(ctx, announcementID, ident); err != nil {
		return domain.ChatThread{}, err
	}
	thread, err := e.Repo.GetThreadByAnnouncement(ctx, announcementID)
	if err != nil {
		return domain.ChatThread{}, err
	}
	messages, err := e.Repo.ListMessages(ctx, thread.ID)
	if err != nil {
		return domain.ChatThread{}, err
	}
	thread.Messages = messages
	return thread, nil
}

// PostChatMessage appends a message to the announcement's thread. The claim
// flow creates the thread, so a missing one surfaces as ErrNotFound rather
// than being created here.
func (e Engine) PostChatMessage(ctx context.Context, announcementID string, ident domain.Identity, body string) (domain.ChatMessage, error) {
	if body == "" {
		return domain.ChatMessage{}, fmt.Errorf("message body is required")
	}
	if _, err := e.chatAccess(ctx, announcementID, ident); err != nil {
		return domain.ChatMessage{}, err
	}
	thread, err := e.Repo.GetThreadByAnnouncement(ctx, announcementID)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	now := e.nowRFC3339()
	msg := domain.ChatMessage{
		ThreadID: thread.ID,
		SenderID: ident.UserID,
		Body:     body,
		SentAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMessageTx(ctx, tx, msg); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "chat.message", "announcement", announcementID, ident.UserID, events.EventPayload{
		"thread_id": thread.ID,
	}); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}
