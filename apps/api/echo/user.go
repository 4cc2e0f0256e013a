package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Shiv1431/MedAR/core"
	"github.com/Shiv1431/MedAR/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	role       string
	svc        user.Service
	uploader   core.Uploader
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, role string, deps ServerDeps) {
	api := userApi{
		role:       role,
		svc:        deps.UserSvc,
		uploader:   deps.Uploader,
		conf:       deps.Conf,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// credential endpoints are rate limited per client IP
	var limited []echo.MiddlewareFunc
	if !deps.Conf.TestMode {
		limited = append(limited, rateLimitMiddleware(rate.Limit(1), 5))
	}

	// un-authed endpoints
	g.POST("/signup", api.signup)
	g.GET("/verify/:id", api.verifyEmail)
	g.POST("/login", api.login, limited...)
	g.POST("/token-refresh", api.refreshToken)
	g.POST("/forgetpassword", api.forgetPassword, limited...)
	g.POST("/forgetpassword/:token", api.resetPassword)

	// authed endpoints
	ag := g.Group("", authMiddleware(role, api.svc, api.conf))
	ag.POST("/logout", api.logout)

	// detail endpoints
	dg := ag.Group("/profile/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieveProfile)
	dg.PUT("", api.updateProfile)

	ag.POST("/verification/:id", api.submitVerification, ctxUserOrAdminMiddleware(api.svc))
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Role = api.role
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}

	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) verifyEmail(ctx echo.Context) error {
	usr, err := api.svc.ConfirmEmail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ctx.HTML(http.StatusNotFound, "<h2>This verification link is invalid.</h2>")
		}
		return errors.Wrap(err, "confirming email")
	}
	return ctx.HTML(http.StatusOK, fmt.Sprintf(
		"<h2>Thank you %s, your email has been verified!</h2><p>You can now log in to the %s portal.</p>",
		usr.FirstName, usr.Role,
	))
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), api.role, data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errAuthenticationFailed
		}
		return err
	}

	token, refreshToken, err := api.issueTokens(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{User: usr, Token: token, RefreshToken: refreshToken})
}

func (api *userApi) logout(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.ClearRefreshToken(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "clearing refresh token")
	}
	clearAuthCookies(ctx)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

// refreshToken swaps a valid refresh token for a fresh token pair. The old
// refresh token is dead after this call.
func (api *userApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if data.RefreshToken == "" {
		if cookie, err := ctx.Cookie(refreshCookieName); err == nil {
			data.RefreshToken = cookie.Value
		}
	}
	if data.RefreshToken == "" {
		return errUnauthorized
	}

	claims, err := parseRefreshToken(data.RefreshToken, api.conf)
	if err != nil {
		return err
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if usr.Role != api.role {
		return errHttpForbidden
	}
	if err = api.svc.CheckRefreshToken(usr, data.RefreshToken); err != nil {
		return errUnauthorized
	}

	token, refreshToken, err := api.issueTokens(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{User: usr, Token: token, RefreshToken: refreshToken})
}

func (api *userApi) forgetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	data.Token = ctx.Param("token")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) retrieveProfile(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// submitVerification receives the identity/education documents as a
// multipart form, stores the files and queues the account for approval.
func (api *userApi) submitVerification(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	data := user.NewDetails{
		Phone:            ctx.FormValue("phone"),
		Address:          ctx.FormValue("address"),
		HighestEducation: ctx.FormValue("highest_education"),
		SecondarySchool:  ctx.FormValue("secondary_school"),
		HigherSchool:     ctx.FormValue("higher_school"),
	}
	data.SecondaryMarks, _ = strconv.ParseFloat(ctx.FormValue("secondary_marks"), 64)
	data.HigherMarks, _ = strconv.ParseFloat(ctx.FormValue("higher_marks"), 64)

	var err error
	if data.AadhaarURL, err = api.uploadFormFile(ctx, "aadhaar"); err != nil {
		return err
	}
	if data.SecondaryURL, err = api.uploadFormFile(ctx, "secondary"); err != nil {
		return err
	}
	if data.HigherURL, err = api.uploadFormFile(ctx, "higher"); err != nil {
		return err
	}

	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.SubmitDocuments(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting documents")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) uploadFormFile(ctx echo.Context, field string) (string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: field, Error: "this file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	url, err := api.uploader.Upload(fh.Filename, f)
	return url, errors.Wrap(err, "storing uploaded file")
}

func (api *userApi) issueTokens(ctx echo.Context, usr user.User) (token, refreshToken string, err error) {
	if token, err = GenerateToken(usr, api.conf); err != nil {
		return "", "", err
	}
	if refreshToken, err = GenerateRefreshToken(usr, api.conf); err != nil {
		return "", "", err
	}
	if usr, err = api.svc.SetRefreshToken(ctx.Request().Context(), usr, refreshToken); err != nil {
		return "", "", errors.Wrap(err, "storing refresh token")
	}
	setAuthCookies(ctx, token, refreshToken, api.conf)
	return token, refreshToken, nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		User         user.User `json:"user"`
		Token        string    `json:"token"`
		RefreshToken string    `json:"refreshToken"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
