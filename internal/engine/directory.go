package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"exclusivewire/internal/domain"
	"exclusivewire/internal/events"
	"exclusivewire/internal/repo"
)

// UserCreateOptions are parameters for registering a directory user.
type UserCreateOptions struct {
	ID          string
	Name        string
	Role        string
	BeatTags    []string
	CompanyName string
	Publication string
	ActorID     string
}

// CreateUser registers a marketplace participant. Journalists get a default
// profile so they are immediately visible to the matching engine.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Name == "" {
		return domain.User{}, errors.New("name is required")
	}
	role, err := domain.ParseRole(opts.Role)
	if err != nil {
		return domain.User{}, err
	}
	if role == domain.RoleJournalist && len(opts.BeatTags) == 0 {
		return domain.User{}, errors.New("journalists must declare at least one beat tag")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	now := e.nowRFC3339()
	u := domain.User{
		ID:          opts.ID,
		Name:        opts.Name,
		Role:        role,
		BeatTags:    opts.BeatTags,
		CompanyName: opts.CompanyName,
		Publication: opts.Publication,
		CreatedAt:   now,
	}
	actorID := opts.ActorID
	if actorID == "" {
		actorID = u.ID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if role == domain.RoleJournalist {
		beats := make([]domain.BeatDetail, 0, len(opts.BeatTags))
		for _, tag := range opts.BeatTags {
			beats = append(beats, domain.BeatDetail{Category: tag, Expertise: domain.ExpertiseIntermediate})
		}
		profile := domain.JournalistProfile{
			UserID:            u.ID,
			Beats:             beats,
			ResponseTime:      "flexible",
			ExclusiveInterest: "high",
			TrustScore:        50,
			Searchable:        true,
			LastActiveAt:      now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		profile.Completeness = completeness(profile)
		if err := e.Repo.UpsertProfileTx(ctx, tx, profile); err != nil {
			return domain.User{}, fmt.Errorf("seed journalist profile: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, actorID, events.EventPayload{
		"role": string(u.Role),
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetUser returns a directory record by ID.
func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

// ProfileUpdateOptions are the journalist-editable profile fields.
type ProfileUpdateOptions struct {
	Bio               string
	YearsExperience   int
	Specializations   []string
	Beats             []domain.BeatDetail
	ResponseTime      string
	ExclusiveInterest string
	Searchable        *bool
}

// UpdateJournalistProfile upserts the candidate profile, recomputing
// completeness. Verification fields are untouched; only VerifyJournalist
// moves them.
func (e Engine) UpdateJournalistProfile(ctx context.Context, userID string, opts ProfileUpdateOptions) (domain.JournalistProfile, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.JournalistProfile{}, fmt.Errorf("resolve user: %w", err)
	}
	if u.Role != domain.RoleJournalist {
		return domain.JournalistProfile{}, ForbiddenError{Reason: "only journalists have journalist profiles"}
	}
	switch opts.ResponseTime {
	case "", "immediate", "same-day", "within-week", "flexible":
	default:
		return domain.JournalistProfile{}, fmt.Errorf("unknown response time %q", opts.ResponseTime)
	}
	switch opts.ExclusiveInterest {
	case "", "high", "medium", "low":
	default:
		return domain.JournalistProfile{}, fmt.Errorf("unknown exclusive interest %q", opts.ExclusiveInterest)
	}
	for _, beat := range opts.Beats {
		if beat.Category == "" {
			return domain.JournalistProfile{}, errors.New("beat category is required")
		}
		switch beat.Expertise {
		case domain.ExpertiseBeginner, domain.ExpertiseIntermediate, domain.ExpertiseExpert:
		default:
			return domain.JournalistProfile{}, fmt.Errorf("unknown expertise level %q", beat.Expertise)
		}
	}

	now := e.nowRFC3339()
	profile, err := e.Repo.GetProfile(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		profile = domain.JournalistProfile{
			UserID:            userID,
			ResponseTime:      "flexible",
			ExclusiveInterest: "high",
			TrustScore:        50,
			Searchable:        true,
			CreatedAt:         now,
		}
	} else if err != nil {
		return domain.JournalistProfile{}, err
	}

	profile.Bio = opts.Bio
	profile.YearsExperience = opts.YearsExperience
	profile.Specializations = opts.Specializations
	profile.Beats = opts.Beats
	if opts.ResponseTime != "" {
		profile.ResponseTime = opts.ResponseTime
	}
	if opts.ExclusiveInterest != "" {
		profile.ExclusiveInterest = opts.ExclusiveInterest
	}
	if opts.Searchable != nil {
		profile.Searchable = *opts.Searchable
	}
	profile.LastActiveAt = now
	profile.UpdatedAt = now
	profile.Completeness = completeness(profile)

	if err := e.Repo.UpsertProfile(ctx, profile); err != nil {
		return domain.JournalistProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

// GetJournalistProfile returns the candidate view for one journalist.
func (e Engine) GetJournalistProfile(ctx context.Context, userID string) (domain.JournalistProfile, error) {
	return e.Repo.GetProfile(ctx, userID)
}

// VerifyJournalist marks the profile verified and raises trust by the
// configured bonus, capped at 100. Row change and event commit together.
func (e Engine) VerifyJournalist(ctx context.Context, userID, actorID string) (domain.JournalistProfile, error) {
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.JournalistProfile{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.VerifyProfileTx(ctx, tx, userID, e.cfg().TrustBonus(), now)
	if err != nil {
		return domain.JournalistProfile{}, err
	}
	if !ok {
		return domain.JournalistProfile{}, repo.ErrNotFound
	}
	if err := e.Events.Append(ctx, tx, "journalist.verified", "user", userID, actorID, nil); err != nil {
		return domain.JournalistProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JournalistProfile{}, err
	}
	return e.Repo.GetProfile(ctx, userID)
}

// completeness scores how filled-in a profile is, as a 0-100 percentage.
func completeness(p domain.JournalistProfile) int {
	score := 0
	if p.Bio != "" {
		score += 10
	}
	if p.YearsExperience > 0 {
		score += 5
	}
	if len(p.Specializations) > 0 {
		score += 10
	}
	if len(p.Beats) > 0 {
		score += 15
		for _, beat := range p.Beats {
			if beat.Description != "" {
				score += 10
				break
			}
		}
	}
	// The rubric tops out at 50 raw points; scale to a percentage.
	return score * 2
}
