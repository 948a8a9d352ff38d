package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shala/core"
)

const orderingParam = "ordering"

// Ordering binds `?ordering=-priority,title` to DB orderings ("-" means descending).
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// parseDateParam parses an optional YYYY-MM-DD parameter. An empty value yields the zero Date.
func parseDateParam(name, value string) (core.Date, error) {
	value = core.CleanString(value)
	if value == "" {
		return core.Date{}, nil
	}
	date, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.NewValidationError(err, core.FieldError{Field: name, Error: "invalid date, expected YYYY-MM-DD"})
	}
	return date, nil
}

// DateRangeQuery binds `?from=&to=`.
// Query structs are exported: echo only binds embedded structs it can set.
type DateRangeQuery struct {
	From string `query:"from"`
	To   string `query:"to"`
}

func (q DateRangeQuery) parse() (from, to core.Date, err error) {
	if from, err = parseDateParam("from", q.From); err != nil {
		return
	}
	to, err = parseDateParam("to", q.To)
	return
}

// ScopeQuery binds the optional `?class=&section=` filters.
type ScopeQuery struct {
	Class   string `query:"class"`
	Section string `query:"section"`
}
