package echoapi

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core/attendance"
)

type attendanceApi struct {
	svc attendance.Service
}

func registerAttendanceAPI(g *echo.Group, svc attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance")
	ag.POST("/mark", api.mark)
	ag.GET("/today", api.today)
	ag.GET("/list", api.list)
	ag.GET("/export", api.export)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Mark(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) today(ctx echo.Context) error {
	date, err := parseDateParam("date", ctx.QueryParam("date"))
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.DailySummary(ctx.Request().Context(), p, date)
	if err != nil {
		return errors.Wrap(err, "getting daily summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *attendanceApi) list(ctx echo.Context) error {
	var query struct {
		ScopeQuery
		Date string `query:"date"`
	}
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to list query")
	}
	date, err := parseDateParam("date", query.Date)
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.ListForClass(ctx.Request().Context(), p, attendance.ListFilter{
		Date:    date,
		Class:   query.Class,
		Section: query.Section,
	})
	if err != nil {
		return errors.Wrap(err, "listing class register")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	var query struct {
		DateRangeQuery
		Format string `query:"format"`
	}
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to export query")
	}
	if query.Format != "" && query.Format != "json" && query.Format != "csv" {
		return errUnknownFormat
	}
	from, to, err := query.parse()
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	rows, err := api.svc.Export(ctx.Request().Context(), p, from, to)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	if query.Format != "csv" {
		return ctx.JSON(http.StatusOK, rows)
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=attendance_%s_%s.csv", from, to),
	)
	resp.WriteHeader(http.StatusOK)

	w := csv.NewWriter(resp)
	if err = w.Write(attendance.ExportColumns); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range rows {
		if err = w.Write(row.Strings()); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing csv")
}
