package notice

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shala/core"
)

type Type string

const (
	TypeGeneral Type = "general"
	TypeUrgent  Type = "urgent"
	TypeEvent   Type = "event"
	TypeHoliday Type = "holiday"
)

var Types = []Type{TypeGeneral, TypeUrgent, TypeEvent, TypeHoliday}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type AudienceKind string

const (
	AudienceAll      AudienceKind = "all"
	AudienceSelected AudienceKind = "selected"
	AudienceClass    AudienceKind = "class"
)

// Audience describes who should receive a notice. It is always intersected with the author's scope.
type Audience struct {
	Kind       AudienceKind `json:"kind" validate:"omitempty,oneof=all selected class"`
	StudentIDs []string     `json:"student_ids,omitempty"`
	Class      string       `json:"class,omitempty"`
	Section    string       `json:"section,omitempty"`
}

type Notice struct {
	ID             string       `json:"id" db:"id"`
	SchoolID       string       `json:"school_id" db:"school_id"`
	AuthorID       string       `json:"author_id" db:"author_id"`
	Title          string       `json:"title" db:"title"`
	Body           string       `json:"body" db:"body"`
	Type           Type         `json:"type" db:"type"`
	Priority       Priority     `json:"priority" db:"priority"`
	Audience       AudienceKind `json:"audience" db:"audience"`
	TargetClass    string       `json:"target_class,omitempty" db:"target_class"`
	TargetSection  string       `json:"target_section,omitempty" db:"target_section"`
	RecipientCount int          `json:"recipient_count" db:"recipient_count"`
	ExpiryDate     *core.Date   `json:"expiry_date" db:"expiry_date"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"` // UTC
}

// IsExpired reports whether the notice expired before `today`.
func (n Notice) IsExpired(today core.Date) bool {
	return n.ExpiryDate != nil && n.ExpiryDate.Before(today)
}

// NewNotice contains information needed to create a new Notice.
type NewNotice struct {
	Title      string   `json:"title" validate:"required,notblank,max=200"`
	Body       string   `json:"body" validate:"required,notblank"`
	Type       Type     `json:"type" validate:"required,oneof=general urgent event holiday"`
	Priority   Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Audience   Audience `json:"audience"`
	ExpiryDate string   `json:"expiry_date" validate:"omitempty,date"`
}

func (nn *NewNotice) Validate(validate *validator.Validate, today core.Date) (*core.Date, error) {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
	nn.Type = Type(core.CleanString(string(nn.Type), true /* lower */))
	nn.Priority = Priority(core.CleanString(string(nn.Priority), true /* lower */))
	if nn.Priority == "" {
		nn.Priority = PriorityMedium
	}
	nn.Audience.Kind = AudienceKind(core.CleanString(string(nn.Audience.Kind), true /* lower */))
	if nn.Audience.Kind == "" {
		nn.Audience.Kind = AudienceAll
	}

	if err := validate.Struct(nn); err != nil {
		return nil, err
	}
	return parseExpiry(nn.ExpiryDate, today)
}

// UpdateNotice defines what information may be provided to modify an existing Notice.
// The audience of a notice cannot change once it has been distributed.
type UpdateNotice struct {
	Title      string   `json:"title" validate:"omitempty,notblank,max=200"`
	Body       string   `json:"body" validate:"omitempty,notblank"`
	Type       Type     `json:"type" validate:"omitempty,oneof=general urgent event holiday"`
	Priority   Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	ExpiryDate *string  `json:"expiry_date" validate:"omitempty,date"`
}

func (un *UpdateNotice) Validate(validate *validator.Validate, orig Notice, today core.Date) (Notice, error) {
	un.Title = core.CleanString(un.Title)
	un.Body = core.CleanString(un.Body)
	un.Type = Type(core.CleanString(string(un.Type), true /* lower */))
	un.Priority = Priority(core.CleanString(string(un.Priority), true /* lower */))

	if err := validate.Struct(un); err != nil {
		return Notice{}, err
	}

	n := orig
	if un.Title != "" {
		n.Title = un.Title
	}
	if un.Body != "" {
		n.Body = un.Body
	}
	if un.Type != "" {
		n.Type = un.Type
	}
	if un.Priority != "" {
		n.Priority = un.Priority
	}
	if un.ExpiryDate != nil { // "" clears the expiry date
		expiry, err := parseExpiry(core.CleanString(*un.ExpiryDate), today)
		if err != nil {
			return Notice{}, err
		}
		n.ExpiryDate = expiry
	}
	return n, nil
}

func parseExpiry(s string, today core.Date) (*core.Date, error) {
	if s == "" {
		return nil, nil
	}
	expiry, err := core.ParseDate(s)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "expiry_date", Error: err.Error()})
	}
	if expiry.Before(today) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "expiry_date", Error: "expiry date cannot be in the past"})
	}
	return &expiry, nil
}

type CreateResult struct {
	Notice            Notice `json:"notice"`
	NotificationsSent int    `json:"notifications_sent"`
}

type QueryFilter struct {
	Type      Type
	From      core.Date // created on or after
	To        core.Date // created on or before
	Search    string    // case-insensitive match on title or body
	Page      core.Page
	Orderings []core.DBOrdering
}

// OrderingFields are the fields notices can be ordered by.
var OrderingFields = []string{"created_at", "priority", "title", "type"}

type Stats struct {
	Total    int          `json:"total"`
	ByType   map[Type]int `json:"by_type"`
	Today    int          `json:"today"`
	ThisWeek int          `json:"this_week"`
	Unread   int          `json:"unread"`
	Recent   []Notice     `json:"recent"`
}

// StudyMessage is a short homework or study note sent by a teacher to the parents of their class.
type StudyMessage struct {
	ID             string       `json:"id" db:"id"`
	SchoolID       string       `json:"school_id" db:"school_id"`
	AuthorID       string       `json:"author_id" db:"author_id"`
	Subject        string       `json:"subject" db:"subject"`
	Body           string       `json:"body" db:"body"`
	Date           core.Date    `json:"date" db:"date"`
	Audience       AudienceKind `json:"audience" db:"audience"`
	TargetClass    string       `json:"target_class,omitempty" db:"target_class"`
	TargetSection  string       `json:"target_section,omitempty" db:"target_section"`
	RecipientCount int          `json:"recipient_count" db:"recipient_count"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"` // UTC
}

type NewStudyMessage struct {
	Subject  string    `json:"subject" validate:"omitempty,max=100"`
	Body     string    `json:"body" validate:"required,notblank"`
	Date     string    `json:"date" validate:"omitempty,date"`
	Audience *Audience `json:"audience"` // principals only; teachers always target their class
}

func (nm *NewStudyMessage) Validate(validate *validator.Validate, today core.Date) (core.Date, error) {
	nm.Subject = core.CleanString(nm.Subject)
	if nm.Subject == "" {
		nm.Subject = "Study"
	}
	nm.Body = core.CleanString(nm.Body)
	nm.Date = core.CleanString(nm.Date)
	if nm.Audience != nil {
		nm.Audience.Kind = AudienceKind(core.CleanString(string(nm.Audience.Kind), true /* lower */))
		if nm.Audience.Kind == "" {
			nm.Audience.Kind = AudienceAll
		}
	}

	if err := validate.Struct(nm); err != nil {
		return core.Date{}, err
	}
	if nm.Date == "" {
		return today, nil
	}
	return core.ParseDate(nm.Date)
}

type StudyMessageResult struct {
	Message           StudyMessage `json:"message"`
	NotificationsSent int          `json:"notifications_sent"`
}

type StudyFilter struct {
	From  core.Date
	To    core.Date
	Limit int
}
