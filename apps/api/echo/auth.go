package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
)

const (
	contextTokenKey     = "userToken"
	contextPrincipalKey = "principal"
	tokenAudience       = "Shala Dashboard"
)

// Claims represents the authorization claims transmitted via a JWT.
// They are issued by the identity provider; this API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Name     string        `json:"name,omitempty"`
	Role     identity.Role `json:"role"`
	SchoolID string        `json:"school_id"`
	Class    string        `json:"class,omitempty"`
	Section  string        `json:"section,omitempty"`
}

// NewClaims returns the claims of a token valid for conf.Server.JWTExpirationDelta.
func NewClaims(p identity.Principal, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   p.UserID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:     p.Name,
		Role:     p.Role,
		SchoolID: p.SchoolID,
		Class:    p.Class,
		Section:  p.Section,
	}
}

func (c Claims) Principal() identity.Principal {
	return identity.Principal{
		UserID:   c.Subject,
		Name:     c.Name,
		Role:     c.Role,
		SchoolID: c.SchoolID,
		Class:    c.Class,
		Section:  c.Section,
	}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextPrincipal returns the caller. Tokens without a user, a school or a known role are rejected.
func getContextPrincipal(ctx echo.Context) (identity.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(identity.Principal); ok {
		return p, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return identity.Principal{}, err
	}
	p := claims.Principal()
	if p.UserID == "" || p.SchoolID == "" || !p.Role.Valid() {
		return identity.Principal{}, errInvalidClaims
	}
	ctx.Set(contextPrincipalKey, p)
	return p, nil
}
