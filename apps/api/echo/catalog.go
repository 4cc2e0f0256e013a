package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shiv1431/MedAR/core/course"
	"github.com/Shiv1431/MedAR/core/user"
)

type catalogApi struct {
	svc *course.Service
}

func registerCatalogAPI(g *echo.Group, deps ServerDeps) {
	api := catalogApi{svc: deps.CourseSvc}

	ag := g.Group("", authMiddleware(user.RoleStudent, deps.UserSvc, deps.Conf))
	ag.GET("/courses", api.queryCourses)
	ag.GET("/classes", api.queryClasses)
}

func (api *catalogApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.QueryCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) queryClasses(ctx echo.Context) error {
	classes, err := api.svc.QueryClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}
