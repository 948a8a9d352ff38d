package attendance

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/core/student"
)

type (
	Repository interface {
		// UpsertRecord inserts the record, or replaces the status, remarks and marker of the existing
		// (student, date) record. It is atomic per row.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		// CountDay counts the marks of `date` by status, over the active students within `sc`.
		CountDay(ctx context.Context, sc identity.Scope, date core.Date) (Summary, error)
		// QueryRegister lists every active student within `sc` along with their mark of `date`, if any.
		QueryRegister(ctx context.Context, sc identity.Scope, date core.Date) ([]ClassEntry, error)
		// QueryRange returns the records of the active students within `sc` between `from` and `to` (inclusive),
		// ordered by date (newest first), class, section and roll number.
		QueryRange(ctx context.Context, sc identity.Scope, from, to core.Date) ([]ExportRow, error)
	}

	Service interface {
		Mark(ctx context.Context, p identity.Principal, data MarkAttendance) (MarkResult, error)
		DailySummary(ctx context.Context, p identity.Principal, date core.Date) (Summary, error)
		ListForClass(ctx context.Context, p identity.Principal, filter ListFilter) ([]ClassEntry, error)
		Export(ctx context.Context, p identity.Principal, from, to core.Date) ([]ExportRow, error)
	}

	service struct {
		repo       Repository
		students   student.Repository
		dispatcher notify.Dispatcher
		validate   *validator.Validate
		logger     core.Logger
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	students student.Repository,
	dispatcher notify.Dispatcher,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:       repo,
		students:   students,
		dispatcher: dispatcher,
		validate:   validate,
		logger:     logger,
		conf:       conf,
	}
}

func (svc *service) today() core.Date {
	return core.Today(svc.conf.Location())
}

// Mark records a batch of marks for one day. Each entry is upserted on its own: a failing entry is
// reported in MarkResult.Errors and does not affect the others.
// Once every entry has been handled, the absentees are published in a single notify.AttendanceMarked event.
func (svc *service) Mark(ctx context.Context, p identity.Principal, data MarkAttendance) (MarkResult, error) {
	date, err := data.Validate(svc.validate, svc.today())
	if err != nil {
		return MarkResult{}, err
	}
	sc, err := p.WritableScope()
	if err != nil {
		return MarkResult{}, err
	}

	ids := make([]string, 0, len(data.Entries))
	for _, e := range data.Entries {
		ids = append(ids, e.StudentID)
	}
	known := make(map[string]student.Student)
	if ids = core.CleanStrings(ids); len(ids) > 0 {
		// look students up school-wide, so that out-of-scope students can be told apart from unknown ones
		stds, err := svc.students.QueryActive(ctx, identity.SchoolScope(sc.SchoolID), ids...)
		if err != nil {
			return MarkResult{}, errors.Wrap(err, "querying students")
		}
		known = student.Index(stds)
	}

	result := MarkResult{Date: date, Errors: make([]EntryError, 0)}
	absentees := make(map[string]notify.Recipient)
	var order []string // absentees, in input order
	written := 0
	now := core.NowFunc().UTC()

	for _, e := range data.Entries {
		result.TotalProcessed++

		id := core.CleanString(e.StudentID)
		status := Status(core.CleanString(string(e.Status), true /* lower */))
		if !status.Valid() {
			result.fail(id, ErrKindValidation, fmt.Sprintf("invalid status %q", e.Status))
			continue
		}
		std, ok := known[id]
		if !ok {
			result.fail(id, ErrKindNotFound, student.ErrNotFound.Error())
			continue
		}
		if !sc.Contains(std.SchoolID, std.Class, std.Section) {
			result.fail(id, ErrKindForbidden, "student is not in your class")
			continue
		}

		remarks := core.CleanString(e.Remarks)
		rec := Record{
			ID:        uuid.NewString(),
			StudentID: id,
			SchoolID:  sc.SchoolID,
			Date:      date,
			Status:    status,
			Remarks:   null.NewString(remarks, remarks != ""),
			MarkedBy:  p.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := svc.repo.UpsertRecord(ctx, rec); err != nil {
			svc.logger.Error(fmt.Sprintf("marking attendance of student %s: %v", id, err), err)
			result.fail(id, ErrKindPersistence, "could not save attendance")
			continue
		}
		written++
		result.count(status)

		// the last mark of a student in the batch wins
		if status == StatusAbsent {
			if _, seen := absentees[id]; !seen {
				order = append(order, id)
			}
			absentees[id] = notify.Recipient{StudentID: id, Name: std.Name, Contact: std.ParentContact}
		} else {
			delete(absentees, id)
		}
	}

	if written > 0 {
		ev := notify.AttendanceMarked{SchoolID: sc.SchoolID, Date: date, MarkedBy: p.UserID}
		for _, id := range order {
			if r, ok := absentees[id]; ok {
				ev.Absentees = append(ev.Absentees, r)
				if core.CleanString(r.Contact) != "" {
					result.NotificationsSent++
				}
			}
		}
		svc.dispatcher.Dispatch(ev)
	}
	return result, nil
}

// DailySummary counts the marks of `date` (today when zero) within the caller's scope.
func (svc *service) DailySummary(ctx context.Context, p identity.Principal, date core.Date) (Summary, error) {
	if date.IsZero() {
		date = svc.today()
	}
	sc := p.Scope()
	if sc.IsEmpty() {
		return Summary{Date: date}, nil
	}

	sum, err := svc.repo.CountDay(ctx, sc, date)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting day")
	}
	sum.Date = date
	sum.Unmarked = sum.TotalStudents - sum.Total
	return sum, nil
}

// ListForClass returns the register of `filter.Date` (today when zero).
// Class and section filters are intersected with the caller's scope: asking for another class yields no rows.
func (svc *service) ListForClass(ctx context.Context, p identity.Principal, filter ListFilter) ([]ClassEntry, error) {
	date := filter.Date
	if date.IsZero() {
		date = svc.today()
	}
	sc := p.Scope().Narrow(filter.Class, filter.Section)
	if sc.IsEmpty() {
		return []ClassEntry{}, nil
	}

	entries, err := svc.repo.QueryRegister(ctx, sc, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying register")
	}
	if entries == nil {
		entries = []ClassEntry{}
	}
	return entries, nil
}

// Export returns every record of the caller's scope between `from` and `to`.
func (svc *service) Export(ctx context.Context, p identity.Principal, from, to core.Date) ([]ExportRow, error) {
	if from.IsZero() || to.IsZero() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from and to are required"})
	}
	if from.After(to) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from must not be after to"})
	}
	sc := p.Scope()
	if sc.IsEmpty() {
		return []ExportRow{}, nil
	}

	rows, err := svc.repo.QueryRange(ctx, sc, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	if rows == nil {
		rows = []ExportRow{}
	}
	return rows, nil
}
