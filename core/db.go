package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops the orderings whose field is not in `fields`.
func AllowedOrderings(ords []DBOrdering, fields ...string) []DBOrdering {
	allowed := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		for _, f := range fields {
			if strings.EqualFold(ord.Field, f) {
				allowed = append(allowed, DBOrdering{Field: f, Ascending: ord.Ascending})
				break
			}
		}
	}
	return allowed
}

// Page is a LIMIT/OFFSET window. A zero Limit means "no limit".
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p Page) Clean(maxLimit int) Page {
	if p.Limit < 0 || p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
