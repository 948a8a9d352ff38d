package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notice"
)

type noticeApi struct {
	svc notice.Service
}

func registerNoticeAPI(g *echo.Group, svc notice.Service) {
	api := noticeApi{svc: svc}

	ng := g.Group("/notices")
	ng.POST("", api.create)
	ng.GET("", api.query)
	ng.GET("/unread/count", api.unreadCount)
	ng.GET("/stats", api.stats)

	// detail endpoints
	dg := ng.Group("/:id", noticeIDMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/read", api.markRead)
}

// noticeIDMiddleware rejects malformed notice IDs before they reach the store.
func noticeIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := uuid.Parse(ctx.Param("id")); err != nil {
			return errInvalidParamID
		}
		return next(ctx)
	}
}

// Handlers

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *noticeApi) query(ctx echo.Context) error {
	var query struct {
		DateRangeQuery
		core.Page
		Type   string `query:"type"`
		Search string `query:"search"`
	}
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to notice query")
	}
	from, to, err := query.parse()
	if err != nil {
		return err
	}
	var ordering Ordering
	ordering.Bind(ctx)
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	notices, err := api.svc.Query(ctx.Request().Context(), p, notice.QueryFilter{
		Type:      notice.Type(core.CleanString(query.Type, true /* lower */)),
		From:      from,
		To:        to,
		Search:    query.Search,
		Page:      query.Page,
		Orderings: ordering.Orderings,
	})
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) retrieve(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.Get(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) update(ctx echo.Context) error {
	var data notice.UpdateNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNotice")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.Update(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *noticeApi) markRead(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notice as read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *noticeApi) unreadCount(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "counting unread notices")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": count})
}

func (api *noticeApi) stats(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "computing notice stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

type studyMessageApi struct {
	svc notice.Service
}

func registerStudyMessageAPI(g *echo.Group, svc notice.Service) {
	api := studyMessageApi{svc: svc}

	sg := g.Group("/study-messages")
	sg.POST("", api.create)
	sg.GET("", api.query)
}

func (api *studyMessageApi) create(ctx echo.Context) error {
	var data notice.NewStudyMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudyMessage")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.CreateStudyMessage(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating study message")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studyMessageApi) query(ctx echo.Context) error {
	var query struct {
		DateRangeQuery
		Limit int `query:"limit"`
	}
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to study message query")
	}
	from, to, err := query.parse()
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	msgs, err := api.svc.QueryStudyMessages(ctx.Request().Context(), p, notice.StudyFilter{From: from, To: to, Limit: query.Limit})
	if err != nil {
		return errors.Wrap(err, "querying study messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}
