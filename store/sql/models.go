package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string    `bun:"id,pk"`
	Email      string    `bun:"email,notnull"`
	Name       string    `bun:"name,notnull"`
	Locale     string    `bun:"locale,notnull"`
	IsActive   bool      `bun:"is_active,notnull"`
	IsVerified bool      `bun:"is_verified,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type organizationRecord struct {
	bun.BaseModel `bun:"table:organizations,alias:o"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	OwnerID   string    `bun:"owner_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type organizationMemberRecord struct {
	bun.BaseModel `bun:"table:organization_members,alias:om"`

	OrganizationID string    `bun:"organization_id,pk"`
	UserID         string    `bun:"user_id,pk"`
	Role           string    `bun:"role,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type initiativeRecord struct {
	bun.BaseModel `bun:"table:initiatives,alias:i"`

	ID                   string     `bun:"id,pk"`
	OrganizerID          string     `bun:"organizer_id,notnull"`
	OrganizationID       *string    `bun:"organization_id"`
	Title                string     `bun:"title,notnull"`
	Status               string     `bun:"status,notnull"`
	MaxParticipants      *int       `bun:"max_participants"`
	CurrentParticipants  int        `bun:"current_participants,notnull"`
	IsOpenParticipation  bool       `bun:"is_open_participation,notnull"`
	RegistrationDeadline *time.Time `bun:"registration_deadline,nullzero"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type participationRecord struct {
	bun.BaseModel `bun:"table:initiative_participants,alias:ip"`

	ID            string         `bun:"id,pk"`
	InitiativeID  string         `bun:"initiative_id,notnull"`
	UserID        string         `bun:"user_id,notnull"`
	Status        string         `bun:"status,notnull"`
	Role          string         `bun:"participant_role,notnull"`
	FormResponses map[string]any `bun:"form_responses,type:jsonb,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// participantRow is a participation joined with its user for manager lists.
type participantRow struct {
	participationRecord `bun:",extend"`

	UserName  string `bun:"user_name"`
	UserEmail string `bun:"user_email"`
}

type postRecord struct {
	bun.BaseModel `bun:"table:initiative_posts,alias:p"`

	ID           string    `bun:"id,pk"`
	InitiativeID string    `bun:"initiative_id,notnull"`
	AuthorID     string    `bun:"author_id,notnull"`
	Title        string    `bun:"title,notnull"`
	Body         string    `bun:"body,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// postRow is a post joined with the title of its initiative.
type postRow struct {
	postRecord `bun:",extend"`

	InitiativeTitle string `bun:"initiative_title"`
}

type postNotificationRecord struct {
	bun.BaseModel `bun:"table:post_notification_queue,alias:pnq"`

	ID              string    `bun:"id,pk"`
	RecipientEmail  string    `bun:"recipient_email,notnull"`
	RecipientName   string    `bun:"recipient_name,notnull"`
	RecipientLocale string    `bun:"recipient_locale,notnull"`
	PostID          string    `bun:"post_id,notnull"`
	InitiativeID    string    `bun:"initiative_id,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:webhook_event_queue,alias:weq"`

	ID         string         `bun:"id,pk"`
	Provider   string         `bun:"provider,notnull"`
	EventType  string         `bun:"event_type,notnull"`
	Payload    map[string]any `bun:"payload,type:jsonb,notnull,json_use_number"`
	ReceivedAt time.Time      `bun:"received_at,nullzero,notnull,default:current_timestamp"`
}

type subscriberRecord struct {
	bun.BaseModel `bun:"table:newsletter_subscribers,alias:ns"`

	ID          string         `bun:"id,pk"`
	Email       string         `bun:"email,notnull"`
	ProviderID  *string        `bun:"provider_id"`
	Name        string         `bun:"name,notnull"`
	Status      string         `bun:"status,notnull"`
	Fields      map[string]any `bun:"fields,type:jsonb,notnull,json_use_number"`
	LastEventAt *time.Time     `bun:"last_event_at,nullzero"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:provider_rate_limit_state,alias:prls"`

	ID                string         `bun:"id,pk"`
	Provider          string         `bun:"provider,notnull"`
	Bucket            string         `bun:"bucket,notnull"`
	Limit             int            `bun:"limit,notnull"`
	Remaining         int            `bun:"remaining,notnull"`
	ResetAt           *time.Time     `bun:"reset_at,nullzero"`
	RetryAfterSeconds *int           `bun:"retry_after_seconds"`
	ThrottledUntil    *time.Time     `bun:"throttled_until,nullzero"`
	LastStatus        int            `bun:"last_status,notnull"`
	Attempts          int            `bun:"attempts,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
