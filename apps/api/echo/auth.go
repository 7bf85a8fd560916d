package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-results/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	Roles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	tokenContextKey = "userToken"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the school portal (or `admin token`), the API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Username     string   `json:"username,omitempty"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	StudentIndex string   `json:"student_index,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func newJWTConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of actor, expiring after conf.Server.JWTExpirationDelta.
func NewClaims(actor core.Actor, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:     actor.Username,
		Name:         actor.Name,
		Email:        actor.Email,
		StudentIndex: actor.StudentIndex,
		Roles:        actor.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (c Claims) Actor() core.Actor {
	return core.Actor{
		ID:           c.Subject,
		Username:     c.Username,
		Name:         c.Name,
		Email:        c.Email,
		StudentIndex: c.StudentIndex,
		Roles:        c.Roles,
	}
}

func (c Claims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	owned := append([]string(nil), c.Roles...)
	sort.Strings(owned)
	for _, role := range roles {
		if i := sort.SearchStrings(owned, role); i < len(owned) && owned[i] == role {
			return true
		}
	}
	return false
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextActor returns the authenticated actor; the zero Actor if there is none.
func getContextActor(ctx echo.Context) core.Actor {
	actor, _ := core.ActorFrom(ctx.Request().Context())
	return actor
}
