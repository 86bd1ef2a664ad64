package domain

import "fmt"

// Role distinguishes the two marketplace sides. Authorization decisions
// switch exhaustively on this type rather than comparing raw strings.
type Role string

const (
	RoleCompany    Role = "company"
	RoleJournalist Role = "journalist"
)

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCompany:
		return RoleCompany, nil
	case RoleJournalist:
		return RoleJournalist, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is an authenticated caller: directory user ID plus its role.
type Identity struct {
	UserID string
	Role   Role
}

type AnnouncementStatus string

const (
	StatusAwaitingClaim AnnouncementStatus = "awaiting_claim"
	StatusClaimed       AnnouncementStatus = "claimed"
	StatusPublished     AnnouncementStatus = "published"
	StatusArchived      AnnouncementStatus = "archived"
)

type Plan string

const (
	PlanBasic   Plan = "Basic"
	PlanPremium Plan = "Premium"
)

func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanBasic:
		return PlanBasic, nil
	case PlanPremium:
		return PlanPremium, nil
	default:
		return "", fmt.Errorf("unknown plan %q", s)
	}
}

type Announcement struct {
	ID                 string             `json:"id"`
	CompanyID          string             `json:"company_id"`
	Title              string             `json:"title"`
	Summary            string             `json:"summary"`
	FullContent        string             `json:"full_content"`
	Attachments        []string           `json:"attachments,omitempty"`
	IndustryTags       []string           `json:"industry_tags,omitempty"`
	JournalistBeatTags []string           `json:"journalist_beat_tags,omitempty"`
	EmbargoAt          string             `json:"embargo_at" format:"date-time"`
	Plan               Plan               `json:"plan" enum:"Basic,Premium"`
	Fee                int64              `json:"fee"`
	Status             AnnouncementStatus `json:"status" enum:"awaiting_claim,claimed,published,archived"`
	ClaimedBy          *string            `json:"claimed_by,omitempty"`
	CreatedAt          string             `json:"created_at" format:"date-time"`
}

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimRejected  ClaimStatus = "rejected"
	ClaimPublished ClaimStatus = "published"
)

// Claim records a journalist taking exclusive rights to an announcement.
// Exactly one row exists per successfully claimed announcement; its status
// is tracked independently of the announcement for auditability.
type Claim struct {
	ID             string      `json:"id"`
	AnnouncementID string      `json:"announcement_id"`
	JournalistID   string      `json:"journalist_id"`
	Status         ClaimStatus `json:"status" enum:"pending,approved,rejected,published"`
	PublishedURL   *string     `json:"published_url,omitempty"`
	ClaimedAt      string      `json:"claimed_at" format:"date-time"`
}

type ChatThread struct {
	ID             string        `json:"id"`
	AnnouncementID string        `json:"announcement_id"`
	CreatedAt      string        `json:"created_at" format:"date-time"`
	Messages       []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	ID       int64  `json:"id"`
	ThreadID string `json:"thread_id"`
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at" format:"date-time"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is the escrow summary: one row per announcement, created pending
// at announcement creation and settled at most once at publication.
type Payment struct {
	AnnouncementID string        `json:"announcement_id"`
	Amount         int64         `json:"amount"`
	PayoutSplit    int           `json:"payout_split"`
	PayoutTo       *string       `json:"payout_to,omitempty"`
	Status         PaymentStatus `json:"status" enum:"pending,completed,failed"`
	TransactionAt  string        `json:"transaction_at" format:"date-time"`
}

// User is a directory record resolving an ID to a role and declared beats.
type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        Role     `json:"role" enum:"company,journalist"`
	BeatTags    []string `json:"beat_tags,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Publication string   `json:"publication,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

type BeatDetail struct {
	Category    string         `json:"category"`
	Expertise   ExpertiseLevel `json:"expertise" enum:"beginner,intermediate,expert"`
	YearsInBeat int            `json:"years_in_beat,omitempty"`
	Description string         `json:"description,omitempty"`
}

// JournalistProfile is the matching engine's candidate view of a journalist.
type JournalistProfile struct {
	UserID            string       `json:"user_id"`
	Bio               string       `json:"bio,omitempty"`
	YearsExperience   int          `json:"years_experience,omitempty"`
	Specializations   []string     `json:"specializations,omitempty"`
	Beats             []BeatDetail `json:"beats"`
	ResponseTime      string       `json:"response_time" enum:"immediate,same-day,within-week,flexible"`
	ExclusiveInterest string       `json:"exclusive_interest" enum:"high,medium,low"`
	Verified          bool         `json:"verified"`
	TrustScore        int          `json:"trust_score"`
	VerifiedAt        *string      `json:"verified_at,omitempty" format:"date-time"`
	Searchable        bool         `json:"searchable"`
	LastActiveAt      string       `json:"last_active_at" format:"date-time"`
	Completeness      int          `json:"completeness"`
	CreatedAt         string       `json:"created_at" format:"date-time"`
	UpdatedAt         string       `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
