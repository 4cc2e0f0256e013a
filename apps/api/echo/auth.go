package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shiv1431/MedAR/core"
	"github.com/Shiv1431/MedAR/core/user"
)

var (
	contextUserKey   = "user"
	contextClaimsKey = "userClaims"

	accessCookieName  = "token"
	refreshCookieName = "refreshToken"
)

// refreshAudience marks refresh tokens; parseToken refuses them so a
// long-lived refresh token can never double as a bearer credential.
const refreshAudience = "refresh"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

func newUserClaims(usr user.User, expiry time.Duration, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  usr.Role + " portal",
			ExpiresAt: now.Add(expiry).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:     usr.Email,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Role:      usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(usr user.User, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newUserClaims(usr, conf.Server.AccessTokenExpiry, conf))
	ss, err := token.SignedString(conf.SecretKey)
	return ss, errors.Wrap(err, "signing token")
}

// GenerateRefreshToken generates a longer-lived token used only to mint
// new access tokens. It carries the account id alone.
func GenerateRefreshToken(usr user.User, conf *core.Config) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  refreshAudience,
			ExpiresAt: now.Add(conf.Server.RefreshTokenExpiry).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(conf.SecretKey)
	return ss, errors.Wrap(err, "signing refresh token")
}

func parseClaims(ss string, conf *core.Config) (*Claims, error) {
	token, err := jwt.ParseWithClaims(ss, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return conf.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errUnauthorized
	}
	return claims, nil
}

func parseToken(ss string, conf *core.Config) (*Claims, error) {
	claims, err := parseClaims(ss, conf)
	if err != nil {
		return nil, err
	}
	if claims.Audience == refreshAudience {
		return nil, errUnauthorized
	}
	return claims, nil
}

func parseRefreshToken(ss string, conf *core.Config) (*Claims, error) {
	claims, err := parseClaims(ss, conf)
	if err != nil {
		return nil, err
	}
	if claims.Audience != refreshAudience {
		return nil, errUnauthorized
	}
	return claims, nil
}

// extractToken looks the access token up in the Authorization header first
// and falls back to the auth cookie.
func extractToken(ctx echo.Context) (string, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > len("Bearer ") && header[:len("Bearer ")] == "Bearer " {
		return header[len("Bearer "):], nil
	}
	if cookie, err := ctx.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errUnauthorized
}

// authMiddleware authenticates requests on a role's portal: the token must
// be valid, its account must still exist and its role must match the portal
// (admins pass everywhere).
func authMiddleware(role string, svc user.Service, conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ss, err := extractToken(ctx)
			if err != nil {
				return err
			}
			claims, err := parseToken(ss, conf)
			if err != nil {
				return err
			}
			if claims.Role != role && claims.Role != user.RoleAdmin {
				return errHttpForbidden
			}

			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}

			ctx.Set(contextClaimsKey, *claims)
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func setAuthCookies(ctx echo.Context, token, refreshToken string, conf *core.Config) {
	ctx.SetCookie(newAuthCookie(accessCookieName, token, conf.Server.AccessTokenExpiry))
	ctx.SetCookie(newAuthCookie(refreshCookieName, refreshToken, conf.Server.RefreshTokenExpiry))
}

func clearAuthCookies(ctx echo.Context) {
	ctx.SetCookie(newAuthCookie(accessCookieName, "", -time.Hour))
	ctx.SetCookie(newAuthCookie(refreshCookieName, "", -time.Hour))
}

func newAuthCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
