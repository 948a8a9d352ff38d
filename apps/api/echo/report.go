package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/report"
)

type reportApi struct {
	svc report.Service
	loc *time.Location
}

func registerReportAPI(g *echo.Group, svc report.Service, loc *time.Location) {
	api := reportApi{svc: svc, loc: loc}

	rg := g.Group("/reports")
	rg.GET("/monthly", api.monthly)
	rg.GET("/yearly", api.yearly)
	rg.GET("/statistics", api.statistics)
}

type periodQuery struct {
	ScopeQuery
	Year  int `query:"year"`
	Month int `query:"month"`
}

// bind defaults the period to the current month (or year) of the school.
func (q *periodQuery) bind(ctx echo.Context, loc *time.Location) error {
	if err := ctx.Bind(q); err != nil {
		return errors.Wrap(err, "binding to period query")
	}
	today := core.Today(loc)
	if q.Year == 0 {
		q.Year = today.Year()
	}
	if q.Month == 0 {
		q.Month = int(today.Month())
	}
	return nil
}

// Handlers

func (api *reportApi) monthly(ctx echo.Context) error {
	var query periodQuery
	if err := query.bind(ctx, api.loc); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.Monthly(ctx.Request().Context(), p, query.Year, query.Month, query.Class, query.Section)
	if err != nil {
		return errors.Wrap(err, "building monthly report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) yearly(ctx echo.Context) error {
	var query periodQuery
	if err := query.bind(ctx, api.loc); err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.Yearly(ctx.Request().Context(), p, query.Year, query.Class, query.Section)
	if err != nil {
		return errors.Wrap(err, "building yearly report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) statistics(ctx echo.Context) error {
	var query DateRangeQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to statistics query")
	}
	from, to, err := query.parse()
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.Statistics(ctx.Request().Context(), p, from, to)
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
