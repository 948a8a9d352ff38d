package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
)

const statisticsDefaultDays = 30

type (
	Repository interface {
		// TallyStudents counts the marks between `from` and `to` (inclusive) of every active student within `sc`,
		// ordered by class, section and roll number. Students without marks are included with zero counts.
		TallyStudents(ctx context.Context, sc identity.Scope, from, to core.Date) ([]StudentTally, error)
		// QueryClassDays returns the distinct (class, section, date) triples with at least one mark of an
		// active student within `sc`.
		QueryClassDays(ctx context.Context, sc identity.Scope, from, to core.Date) ([]ClassDay, error)
	}

	Service interface {
		Monthly(ctx context.Context, p identity.Principal, year, month int, class, section string) (Report, error)
		Yearly(ctx context.Context, p identity.Principal, year int, class, section string) (Report, error)
		Range(ctx context.Context, p identity.Principal, from, to core.Date, class, section string) (Report, error)
		Statistics(ctx context.Context, p identity.Principal, from, to core.Date) (Statistics, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{repo: repo, conf: conf}
}

func validateYear(year int) error {
	if year < 1900 || year > 9999 {
		return core.NewValidationError(nil, core.FieldError{Field: "year", Error: "year must be between 1900 and 9999"})
	}
	return nil
}

func validateRange(from, to core.Date) error {
	if from.After(to) {
		return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from must not be after to"})
	}
	return nil
}

func (svc *service) Monthly(ctx context.Context, p identity.Principal, year, month int, class, section string) (Report, error) {
	if err := validateYear(year); err != nil {
		return Report{}, err
	}
	if month < 1 || month > 12 {
		return Report{}, core.NewValidationError(nil, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	from, to := core.MonthRange(year, time.Month(month))
	return svc.build(ctx, p.Scope().Narrow(class, section), from, to)
}

func (svc *service) Yearly(ctx context.Context, p identity.Principal, year int, class, section string) (Report, error) {
	if err := validateYear(year); err != nil {
		return Report{}, err
	}
	from, to := core.YearRange(year)
	return svc.build(ctx, p.Scope().Narrow(class, section), from, to)
}

func (svc *service) Range(ctx context.Context, p identity.Principal, from, to core.Date, class, section string) (Report, error) {
	if from.IsZero() || to.IsZero() {
		return Report{}, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from and to are required"})
	}
	if err := validateRange(from, to); err != nil {
		return Report{}, err
	}
	return svc.build(ctx, p.Scope().Narrow(class, section), from, to)
}

// Statistics summarizes the caller's scope between `from` and `to`.
// Missing bounds default to the last 30 days.
func (svc *service) Statistics(ctx context.Context, p identity.Principal, from, to core.Date) (Statistics, error) {
	if to.IsZero() {
		to = core.Today(svc.conf.Location())
	}
	if from.IsZero() {
		from = to.AddDays(-(statisticsDefaultDays - 1))
	}
	if err := validateRange(from, to); err != nil {
		return Statistics{}, err
	}

	rep, err := svc.build(ctx, p.Scope(), from, to)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		From:                 from,
		To:                   to,
		TotalStudents:        rep.Totals.TotalStudents,
		TotalDays:            rep.Totals.WorkingDays,
		Present:              rep.Totals.Present,
		Absent:               rep.Totals.Absent,
		Late:                 rep.Totals.Late,
		Holiday:              rep.Totals.Holiday,
		Marked:               rep.Totals.Marked,
		AttendancePercentage: rep.Totals.AttendancePercentage,
	}, nil
}

func (svc *service) build(ctx context.Context, sc identity.Scope, from, to core.Date) (Report, error) {
	rep := Report{From: from, To: to, Students: []StudentTally{}, Classes: []ClassSummary{}}
	if sc.IsEmpty() {
		return rep, nil
	}

	var (
		tallies []StudentTally
		days    []ClassDay
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tallies, err = svc.repo.TallyStudents(gctx, sc, from, to)
		return errors.Wrap(err, "tallying students")
	})
	g.Go(func() (err error) {
		days, err = svc.repo.QueryClassDays(gctx, sc, from, to)
		return errors.Wrap(err, "querying class days")
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return aggregate(rep, tallies, days), nil
}

func aggregate(rep Report, tallies []StudentTally, days []ClassDay) Report {
	type classKey struct{ class, section string }

	workingDays := make(map[classKey]int)
	distinctDays := make(map[string]bool)
	for _, d := range days {
		workingDays[classKey{d.Class, d.Section}]++
		distinctDays[d.Date.String()] = true
	}

	idx := make(map[classKey]int) // position in rep.Classes
	for _, st := range tallies {
		st.AttendancePercentage = Percentage(st.PresentDays, st.TotalMarkedDays)
		rep.Students = append(rep.Students, st)
		rep.Totals.add(st)

		key := classKey{st.Class, st.Section}
		i, ok := idx[key]
		if !ok {
			i = len(rep.Classes)
			idx[key] = i
			rep.Classes = append(rep.Classes, ClassSummary{
				Class:   st.Class,
				Section: st.Section,
				Totals:  Totals{WorkingDays: workingDays[key]},
			})
		}
		rep.Classes[i].add(st)
	}

	for i := range rep.Classes {
		rep.Classes[i].AttendancePercentage = Percentage(rep.Classes[i].Present, rep.Classes[i].Marked)
	}
	rep.Totals.WorkingDays = len(distinctDays)
	rep.Totals.AttendancePercentage = Percentage(rep.Totals.Present, rep.Totals.Marked)
	return rep
}
