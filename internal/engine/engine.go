package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exclusivewire/internal/config"
	"exclusivewire/internal/domain"
	"exclusivewire/internal/engine/match"
	"exclusivewire/internal/events"
	"exclusivewire/internal/repo"
)

// ClaimSeedMessage opens every claim chat thread.
const ClaimSeedMessage = "I have claimed this exclusive and am interested in covering it."

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// AnnouncementCreateOptions are parameters for creating an announcement.
type AnnouncementCreateOptions struct {
	ID                 string
	CompanyID          string
	Title              string
	Summary            string
	FullContent        string
	Attachments        []string
	IndustryTags       []string
	JournalistBeatTags []string
	EmbargoAt          string
	Plan               string
	Fee                int64
}

// CreateAnnouncement records a new exclusive offer, opening its escrow
// payment in the same transaction.
func (e Engine) CreateAnnouncement(ctx context.Context, opts AnnouncementCreateOptions) (domain.Announcement, error) {
	company, err := e.Repo.GetUser(ctx, opts.CompanyID)
	if err != nil {
		return domain.Announcement{}, fmt.Errorf("resolve company: %w", err)
	}
	if company.Role != domain.RoleCompany {
		return domain.Announcement{}, ForbiddenError{Reason: "only companies can create announcements"}
	}
	if opts.Title == "" {
		return domain.Announcement{}, errors.New("title is required")
	}
	if opts.Summary == "" {
		return domain.Announcement{}, errors.New("summary is required")
	}
	if opts.FullContent == "" {
		return domain.Announcement{}, errors.New("full content is required")
	}
	if len(opts.JournalistBeatTags) == 0 {
		return domain.Announcement{}, errors.New("at least one journalist beat tag is required")
	}
	embargoAt, err := time.Parse(time.RFC3339, opts.EmbargoAt)
	if err != nil {
		return domain.Announcement{}, fmt.Errorf("invalid embargo timestamp: %w", err)
	}
	plan, err := domain.ParsePlan(opts.Plan)
	if err != nil {
		return domain.Announcement{}, err
	}
	if opts.Fee < 0 {
		return domain.Announcement{}, errors.New("fee must not be negative")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	now := e.nowRFC3339()
	a := domain.Announcement{
		ID:                 opts.ID,
		CompanyID:          opts.CompanyID,
		Title:              opts.Title,
		Summary:            opts.Summary,
		FullContent:        opts.FullContent,
		Attachments:        opts.Attachments,
		IndustryTags:       opts.IndustryTags,
		JournalistBeatTags: opts.JournalistBeatTags,
		// Stored in UTC so the lexicographic embargo_at comparison in the
		// open listing stays a correct temporal order.
		EmbargoAt: embargoAt.UTC().Format(time.RFC3339),
		Plan:               plan,
		Fee:                opts.Fee,
		Status:             domain.StatusAwaitingClaim,
		CreatedAt:          now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Announcement{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAnnouncementTx(ctx, tx, a); err != nil {
		return domain.Announcement{}, fmt.Errorf("insert announcement: %w", err)
	}
	if err := e.Repo.InsertPaymentTx(ctx, tx, domain.Payment{
		AnnouncementID: a.ID,
		Amount:         a.Fee,
		Status:         domain.PaymentPending,
		TransactionAt:  now,
	}); err != nil {
		return domain.Announcement{}, fmt.Errorf("open payment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "announcement.created", "announcement", a.ID, opts.CompanyID, events.EventPayload{
		"plan": string(a.Plan),
		"fee":  a.Fee,
	}); err != nil {
		return domain.Announcement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Announcement{}, err
	}
	return a, nil
}

// GetAnnouncement enforces the detail access rule: the owning company, the
// claimant, or any journalist holding one of the required beats.
func (e Engine) GetAnnouncement(ctx context.Context, id string, ident domain.Identity) (domain.Announcement, error) {
	a, err := e.Repo.GetAnnouncement(ctx, id)
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
	if ident.Role == domain.RoleJournalist {
		caller, err := e.Repo.GetUser(ctx, ident.UserID)
		if err != nil {
			return domain.Announcement{}, err
		}
		if len(intersect(caller.BeatTags, a.JournalistBeatTags)) > 0 {
			return a, nil
		}
	}
	return domain.Announcement{}, ForbiddenError{Reason: "access denied"}
}

// ListAnnouncements is role-dependent: companies see their own records,
// journalists see open announcements on their beats whose embargo has not
// yet lapsed.
func (e Engine) ListAnnouncements(ctx context.Context, ident domain.Identity, limit int) ([]domain.Announcement, error) {
	switch ident.Role {
	case domain.RoleCompany:
		items, err := e.Repo.ListAnnouncements(ctx, repo.AnnouncementFilters{CompanyID: ident.UserID, Limit: limit})
		if err != nil {
			return nil, err
		}
		visible := items[:0]
		for _, a := range items {
			if a.Status != domain.StatusArchived {
				visible = append(visible, a)
			}
		}
		return visible, nil
	case domain.RoleJournalist:
		caller, err := e.Repo.GetUser(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		items, err := e.Repo.ListAnnouncements(ctx, repo.AnnouncementFilters{
			Status:       domain.StatusAwaitingClaim,
			EmbargoAfter: e.nowRFC3339(),
			Limit:        limit,
		})
		if err != nil {
			return nil, err
		}
		visible := items[:0]
		for _, a := range items {
			if len(intersect(caller.BeatTags, a.JournalistBeatTags)) > 0 {
				visible = append(visible, a)
			}
		}
		return visible, nil
	default:
		return nil, fmt.Errorf("unknown role %q", ident.Role)
	}
}

// ClaimResult is a successful claim: the updated announcement plus the chat
// thread opened for the pairing.
type ClaimResult struct {
	Announcement domain.Announcement
	ChatThreadID string
}

// ClaimExclusive grants exclusive coverage rights to one journalist. The
// transition, claim record, and chat thread commit atomically; concurrent
// attempts lose with ErrAlreadyClaimed and leave no rows behind.
func (e Engine) ClaimExclusive(ctx context.Context, announcementID, journalistID string) (ClaimResult, error) {
	caller, err := e.Repo.GetUser(ctx, journalistID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("resolve journalist: %w", err)
	}
	if caller.Role != domain.RoleJournalist {
		return ClaimResult{}, ForbiddenError{Reason: "only journalists can claim exclusives"}
	}
	a, err := e.Repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return ClaimResult{}, err
	}
	if a.Status == domain.StatusArchived {
		return ClaimResult{}, repo.ErrNotFound
	}
	if len(intersect(caller.BeatTags, a.JournalistBeatTags)) == 0 {
		return ClaimResult{}, NoMatchingBeatError{Required: a.JournalistBeatTags}
	}

	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ClaimResult{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.ClaimAnnouncementTx(ctx, tx, announcementID, journalistID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim announcement: %w", err)
	}
	if !ok {
		return ClaimResult{}, ErrAlreadyClaimed
	}
	claim := domain.Claim{
		ID:             uuid.NewString(),
		AnnouncementID: announcementID,
		JournalistID:   journalistID,
		Status:         domain.ClaimPending,
		ClaimedAt:      now,
	}
	if err := e.Repo.InsertClaimTx(ctx, tx, claim); err != nil {
		return ClaimResult{}, fmt.Errorf("insert claim: %w", err)
	}
	thread := domain.ChatThread{
		ID:             uuid.NewString(),
		AnnouncementID: announcementID,
		CreatedAt:      now,
	}
	if err := e.Repo.InsertThreadTx(ctx, tx, thread); err != nil {
		return ClaimResult{}, fmt.Errorf("open chat thread: %w", err)
	}
	if err := e.Repo.InsertMessageTx(ctx, tx, domain.ChatMessage{
		ThreadID: thread.ID,
		SenderID: journalistID,
		Body:     ClaimSeedMessage,
		SentAt:   now,
	}); err != nil {
		return ClaimResult{}, fmt.Errorf("seed chat thread: %w", err)
	}
	if err := e.Repo.TouchProfileActivityTx(ctx, tx, journalistID, now); err != nil {
		return ClaimResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "announcement.claimed", "announcement", announcementID, journalistID, events.EventPayload{
		"claim_id": claim.ID,
		"chat_id":  thread.ID,
	}); err != nil {
		return ClaimResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ClaimResult{}, err
	}

	a.Status = domain.StatusClaimed
	a.ClaimedBy = &journalistID
	return ClaimResult{Announcement: a, ChatThreadID: thread.ID}, nil
}

// PublishAnnouncement finalizes a claimed announcement. Either side of the
// pairing may call it: the claimant to report publication, the owning
// company to confirm it. On Premium plans the escrow payment settles to the
// claimant in the same transaction.
func (e Engine) PublishAnnouncement(ctx context.Context, announcementID, publishedURL string, ident domain.Identity) (domain.Announcement, error) {
	a, err := e.Repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return domain.Announcement{}, err
	}
	if a.Status == domain.StatusArchived {
		return domain.Announcement{}, repo.ErrNotFound
	}
	switch ident.Role {
	case domain.RoleJournalist:
		if a.ClaimedBy == nil || *a.ClaimedBy != ident.UserID {
			return domain.Announcement{}, ForbiddenError{Reason: "only the journalist who claimed this can mark it as published"}
		}
	case domain.RoleCompany:
		if a.CompanyID != ident.UserID {
			return domain.Announcement{}, ForbiddenError{Reason: "access denied"}
		}
	default:
		return domain.Announcement{}, ForbiddenError{Reason: "access denied"}
	}

	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Announcement{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.PublishAnnouncementTx(ctx, tx, announcementID)
	if err != nil {
		return domain.Announcement{}, fmt.Errorf("publish announcement: %w", err)
	}
	if !ok {
		// Re-read inside the tx so the error names the real current state.
		current, err := e.Repo.GetAnnouncementTx(ctx, tx, announcementID)
		if err != nil {
			return domain.Announcement{}, err
		}
		return domain.Announcement{}, InvalidTransitionError{From: current.Status, To: domain.StatusPublished}
	}
	if err := e.Repo.MarkClaimPublishedTx(ctx, tx, announcementID, publishedURL); err != nil {
		return domain.Announcement{}, fmt.Errorf("update claim: %w", err)
	}
	payload := events.EventPayload{"published_url": publishedURL}
	if a.Plan == domain.PlanPremium && a.ClaimedBy != nil {
		split := e.cfg().PayoutSplit(domain.PlanPremium)
		settled, err := e.Repo.SettlePaymentTx(ctx, tx, announcementID, *a.ClaimedBy, split, now)
		if err != nil {
			return domain.Announcement{}, fmt.Errorf("settle payment: %w", err)
		}
		if settled {
			payload["payout_to"] = *a.ClaimedBy
			payload["payout_split"] = split
		}
	}
	if err := e.Events.Append(ctx, tx, "announcement.published", "announcement", announcementID, ident.UserID, payload); err != nil {
		return domain.Announcement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Announcement{}, err
	}

	a.Status = domain.StatusPublished
	return a, nil
}

// GetClaim returns the audit claim row for an announcement.
func (e Engine) GetClaim(ctx context.Context, announcementID string) (domain.Claim, error) {
	return e.Repo.GetClaimByAnnouncement(ctx, announcementID)
}

// GetPayment returns the escrow summary for an announcement, restricted to
// the owning company and the claimant.
func (e Engine) GetPayment(ctx context.Context, announcementID string, ident domain.Identity) (domain.Payment, error) {
	a, err := e.Repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return domain.Payment{}, err
	}
	if a.CompanyID != ident.UserID && (a.ClaimedBy == nil || *a.ClaimedBy != ident.UserID) {
		return domain.Payment{}, ForbiddenError{Reason: "access denied"}
	}
	return e.Repo.GetPayment(ctx, announcementID)
}

// Matches ranks searchable journalist profiles against an announcement's
// required beats. Owning company only.
func (e Engine) Matches(ctx context.Context, announcementID string, ident domain.Identity) ([]match.Match, error) {
	if ident.Role != domain.RoleCompany {
		return nil, ForbiddenError{Reason: "only companies can get matches"}
	}
	a, err := e.Repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if a.CompanyID != ident.UserID {
		return nil, ForbiddenError{Reason: "access denied"}
	}
	candidates, err := e.Repo.ListSearchableProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return match.Rank(candidates, a.JournalistBeatTags, e.now()), nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var out []string
	for _, v := range b {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}
