package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shiv1431/MedAR/core/user"
)

type adminApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("", authMiddleware(user.RoleAdmin, api.svc, deps.Conf), adminMiddleware())
	ag.POST("/approve/:role/:id", api.approve)
	ag.GET("/students", api.queryStudents)
	ag.GET("/teachers", api.queryTeachers)
}

// approve applies an admin decision on a pending account. The request must
// carry the account revision it was based on; a stale revision is rejected
// so two admins cannot silently override each other.
func (api *adminApi) approve(ctx echo.Context) error {
	role := ctx.Param("role")
	if !user.ValidRole(role) {
		return errHttpNotFound
	}

	var data user.ApprovalDecision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApprovalDecision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.SetApproval(ctx.Request().Context(), role, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting approval")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) queryStudents(ctx echo.Context) error {
	return api.query(ctx, user.RoleStudent)
}

func (api *adminApi) queryTeachers(ctx echo.Context) error {
	return api.query(ctx, user.RoleTeacher)
}

func (api *adminApi) query(ctx echo.Context, role string) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	filter.Role = role

	users, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}
