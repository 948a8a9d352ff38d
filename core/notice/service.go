package notice

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/core/student"
)

const (
	maxPageSize        = 100
	defaultStudyLimit  = 50
	recentNoticesCount = 5
)

var (
	ErrNotFound = core.NewNotFoundError("notice not found")

	errNotAuthor = core.NewForbiddenError("only the author or a principal can change this notice")
)

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		// GetNotice returns ErrNotFound if the notice does not exist in the school.
		GetNotice(ctx context.Context, schoolID, id string) (Notice, error)
		QueryNotices(ctx context.Context, schoolID string, filter QueryFilter) ([]Notice, error)
		UpdateNotice(ctx context.Context, n Notice) (Notice, error)
		// DeleteNotice deletes the notice and its read receipts.
		DeleteNotice(ctx context.Context, schoolID, id string) error
		// CountByType counts the notices of the school created at or after `since`.
		CountByType(ctx context.Context, schoolID string, since time.Time) (map[Type]int, error)

		// MarkRead records that the user read the notice. Calling it again is a no-op.
		MarkRead(ctx context.Context, noticeID, userID string, at time.Time) error
		// CountUnread counts the notices of the school not read by the user and not expired before `today`.
		CountUnread(ctx context.Context, schoolID, userID string, today core.Date) (int, error)

		CreateStudyMessage(ctx context.Context, m StudyMessage) (StudyMessage, error)
		// QueryStudyMessages returns the messages of the school, newest first. An empty authorID means every author.
		QueryStudyMessages(ctx context.Context, schoolID, authorID string, filter StudyFilter) ([]StudyMessage, error)
	}

	Service interface {
		Create(ctx context.Context, p identity.Principal, data NewNotice) (CreateResult, error)
		Query(ctx context.Context, p identity.Principal, filter QueryFilter) ([]Notice, error)
		Get(ctx context.Context, p identity.Principal, id string) (Notice, error)
		Update(ctx context.Context, p identity.Principal, id string, data UpdateNotice) (Notice, error)
		Delete(ctx context.Context, p identity.Principal, id string) error
		Stats(ctx context.Context, p identity.Principal) (Stats, error)
		MarkRead(ctx context.Context, p identity.Principal, id string) error
		UnreadCount(ctx context.Context, p identity.Principal) (int, error)

		CreateStudyMessage(ctx context.Context, p identity.Principal, data NewStudyMessage) (StudyMessageResult, error)
		QueryStudyMessages(ctx context.Context, p identity.Principal, filter StudyFilter) ([]StudyMessage, error)
	}

	service struct {
		repo       Repository
		students   student.Repository
		dispatcher notify.Dispatcher
		validate   *validator.Validate
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	students student.Repository,
	dispatcher notify.Dispatcher,
	validate *validator.Validate,
	conf *core.Config,
) Service {
	return &service{
		repo:       repo,
		students:   students,
		dispatcher: dispatcher,
		validate:   validate,
		conf:       conf,
	}
}

func (svc *service) today() core.Date {
	return core.Today(svc.conf.Location())
}

// target is a resolved audience.
type target struct {
	kind       AudienceKind
	class      string
	section    string
	recipients []notify.Recipient
}

// resolve computes the recipients of `aud`, restricted to the active students within the author's scope.
func (svc *service) resolve(ctx context.Context, p identity.Principal, sc identity.Scope, aud Audience) (target, error) {
	t := target{kind: aud.Kind}
	var ids []string

	switch aud.Kind {
	case AudienceAll:
		t.class, t.section = sc.Class, sc.Section

	case AudienceSelected:
		ids = core.CleanStrings(aud.StudentIDs)
		if len(ids) == 0 {
			return target{}, core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: "select at least one student"})
		}

	case AudienceClass:
		if p.IsTeacher() {
			narrowed := sc.Narrow(aud.Class, aud.Section)
			if narrowed.IsEmpty() {
				return target{}, core.NewForbiddenError("teachers can only address their own class")
			}
			sc = narrowed
		} else {
			if core.CleanString(aud.Class) == "" {
				return target{}, core.NewValidationError(nil, core.FieldError{Field: "class", Error: "this field is required"})
			}
			sc = sc.Narrow(aud.Class, aud.Section)
		}
		t.class, t.section = sc.Class, sc.Section

	default:
		return target{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid audience"})
	}

	stds, err := svc.students.QueryActive(ctx, sc, ids...)
	if err != nil {
		return target{}, errors.Wrap(err, "querying audience")
	}
	t.recipients = make([]notify.Recipient, 0, len(stds))
	for _, s := range stds {
		t.recipients = append(t.recipients, notify.Recipient{StudentID: s.ID, Name: s.Name, Contact: s.ParentContact})
	}
	return t, nil
}

func reachable(recipients []notify.Recipient) int {
	var n int
	for _, r := range recipients {
		if core.CleanString(r.Contact) != "" {
			n++
		}
	}
	return n
}

// Create stores the notice then publishes one notify.NoticeCreated event for its audience.
// An audience without any student is not an error.
func (svc *service) Create(ctx context.Context, p identity.Principal, data NewNotice) (CreateResult, error) {
	expiry, err := data.Validate(svc.validate, svc.today())
	if err != nil {
		return CreateResult{}, err
	}
	sc, err := p.WritableScope()
	if err != nil {
		return CreateResult{}, err
	}
	t, err := svc.resolve(ctx, p, sc, data.Audience)
	if err != nil {
		return CreateResult{}, err
	}

	now := core.NowFunc().UTC()
	n, err := svc.repo.CreateNotice(ctx, Notice{
		ID:             uuid.NewString(),
		SchoolID:       sc.SchoolID,
		AuthorID:       p.UserID,
		Title:          data.Title,
		Body:           data.Body,
		Type:           data.Type,
		Priority:       data.Priority,
		Audience:       t.kind,
		TargetClass:    t.class,
		TargetSection:  t.section,
		RecipientCount: len(t.recipients),
		ExpiryDate:     expiry,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return CreateResult{}, errors.Wrap(err, "creating notice")
	}

	svc.dispatcher.Dispatch(notify.NoticeCreated{
		SchoolID:   n.SchoolID,
		NoticeID:   n.ID,
		AuthorID:   n.AuthorID,
		Title:      n.Title,
		Body:       n.Body,
		Urgent:     n.Type == TypeUrgent || n.Priority == PriorityHigh,
		Recipients: t.recipients,
	})
	return CreateResult{Notice: n, NotificationsSent: reachable(t.recipients)}, nil
}

func (svc *service) Query(ctx context.Context, p identity.Principal, filter QueryFilter) ([]Notice, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.Page = filter.Page.Clean(maxPageSize)
	if filter.Page.Limit == 0 {
		filter.Page.Limit = maxPageSize
	}
	filter.Orderings = core.AllowedOrderings(filter.Orderings, OrderingFields...)
	if filter.Type != "" && !validType(filter.Type) {
		return []Notice{}, nil
	}

	notices, err := svc.repo.QueryNotices(ctx, p.SchoolID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}
	if notices == nil {
		notices = []Notice{}
	}
	return notices, nil
}

func validType(t Type) bool {
	for _, typ := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

func (svc *service) Get(ctx context.Context, p identity.Principal, id string) (Notice, error) {
	return svc.repo.GetNotice(ctx, p.SchoolID, core.CleanString(id))
}

// editable returns the notice if `p` may change it.
func (svc *service) editable(ctx context.Context, p identity.Principal, id string) (Notice, error) {
	n, err := svc.Get(ctx, p, id)
	if err != nil {
		return Notice{}, err
	}
	if n.AuthorID != p.UserID && !p.IsPrincipal() {
		return Notice{}, errNotAuthor
	}
	return n, nil
}

func (svc *service) Update(ctx context.Context, p identity.Principal, id string, data UpdateNotice) (Notice, error) {
	orig, err := svc.editable(ctx, p, id)
	if err != nil {
		return Notice{}, err
	}
	n, err := data.Validate(svc.validate, orig, svc.today())
	if err != nil {
		return Notice{}, err
	}
	n.UpdatedAt = core.NowFunc().UTC()

	n, err = svc.repo.UpdateNotice(ctx, n)
	return n, errors.Wrap(err, "updating notice")
}

func (svc *service) Delete(ctx context.Context, p identity.Principal, id string) error {
	n, err := svc.editable(ctx, p, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteNotice(ctx, n.SchoolID, n.ID), "deleting notice")
}

// Stats counts the notices of the caller's school, overall, created today and during the last 7 days.
func (svc *service) Stats(ctx context.Context, p identity.Principal) (Stats, error) {
	today := svc.today()
	loc := svc.conf.Location()
	startOfDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	stats := Stats{ByType: make(map[Type]int, len(Types))}
	for _, typ := range Types {
		stats.ByType[typ] = 0
	}

	all, err := svc.repo.CountByType(ctx, p.SchoolID, time.Time{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting notices")
	}
	for typ, n := range all {
		stats.ByType[typ] = n
		stats.Total += n
	}

	for _, c := range []struct {
		since time.Time
		count *int
	}{
		{startOfDay, &stats.Today},
		{startOfDay.AddDate(0, 0, -6), &stats.ThisWeek},
	} {
		byType, err := svc.repo.CountByType(ctx, p.SchoolID, c.since.UTC())
		if err != nil {
			return Stats{}, errors.Wrap(err, "counting notices")
		}
		for _, n := range byType {
			*c.count += n
		}
	}

	if stats.Unread, err = svc.repo.CountUnread(ctx, p.SchoolID, p.UserID, today); err != nil {
		return Stats{}, errors.Wrap(err, "counting unread notices")
	}
	if stats.Recent, err = svc.repo.QueryNotices(ctx, p.SchoolID, QueryFilter{Page: core.Page{Limit: recentNoticesCount}}); err != nil {
		return Stats{}, errors.Wrap(err, "querying recent notices")
	}
	if stats.Recent == nil {
		stats.Recent = []Notice{}
	}
	return stats, nil
}

// MarkRead is idempotent: concurrent calls for the same notice and user leave a single receipt.
// Marking again only moves the receipt's read time.
func (svc *service) MarkRead(ctx context.Context, p identity.Principal, id string) error {
	n, err := svc.Get(ctx, p, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.MarkRead(ctx, n.ID, p.UserID, core.NowFunc().UTC()), "marking notice as read")
}

// UnreadCount counts the notices of the caller's school that they have not read, ignoring expired ones.
func (svc *service) UnreadCount(ctx context.Context, p identity.Principal) (int, error) {
	n, err := svc.repo.CountUnread(ctx, p.SchoolID, p.UserID, svc.today())
	return n, errors.Wrap(err, "counting unread notices")
}

// CreateStudyMessage stores the message then publishes one notify.StudyMessageCreated event.
// Teachers always address their own class; principals may pick any audience of their school.
func (svc *service) CreateStudyMessage(ctx context.Context, p identity.Principal, data NewStudyMessage) (StudyMessageResult, error) {
	date, err := data.Validate(svc.validate, svc.today())
	if err != nil {
		return StudyMessageResult{}, err
	}
	sc, err := p.WritableScope()
	if err != nil {
		return StudyMessageResult{}, err
	}

	aud := Audience{Kind: AudienceClass}
	if p.IsPrincipal() && data.Audience != nil {
		aud = *data.Audience
	} else if p.IsPrincipal() {
		aud = Audience{Kind: AudienceAll}
	}
	t, err := svc.resolve(ctx, p, sc, aud)
	if err != nil {
		return StudyMessageResult{}, err
	}

	m, err := svc.repo.CreateStudyMessage(ctx, StudyMessage{
		ID:             uuid.NewString(),
		SchoolID:       sc.SchoolID,
		AuthorID:       p.UserID,
		Subject:        data.Subject,
		Body:           data.Body,
		Date:           date,
		Audience:       t.kind,
		TargetClass:    t.class,
		TargetSection:  t.section,
		RecipientCount: len(t.recipients),
		CreatedAt:      core.NowFunc().UTC(),
	})
	if err != nil {
		return StudyMessageResult{}, errors.Wrap(err, "creating study message")
	}

	svc.dispatcher.Dispatch(notify.StudyMessageCreated{
		SchoolID:   m.SchoolID,
		MessageID:  m.ID,
		AuthorID:   m.AuthorID,
		Subject:    m.Subject,
		Body:       m.Body,
		Recipients: t.recipients,
	})
	return StudyMessageResult{Message: m, NotificationsSent: reachable(t.recipients)}, nil
}

// QueryStudyMessages lists the caller's own messages (teachers) or the whole school's (principals).
func (svc *service) QueryStudyMessages(ctx context.Context, p identity.Principal, filter StudyFilter) ([]StudyMessage, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from must not be after to"})
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultStudyLimit
	}
	authorID := p.UserID
	if p.IsPrincipal() {
		authorID = ""
	}

	msgs, err := svc.repo.QueryStudyMessages(ctx, p.SchoolID, authorID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying study messages")
	}
	if msgs == nil {
		msgs = []StudyMessage{}
	}
	return msgs, nil
}
