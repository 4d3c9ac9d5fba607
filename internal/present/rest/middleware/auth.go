package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyActor resolves the Bearer token into an actor and stores it on the
// request context. A missing or broken token passes through anonymously;
// RequireActor decides whether to reject.
func (s *AuthMiddleware) IdentifyActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyActor")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")
		if authHeader != "" {
			authType, token, found := strings.Cut(authHeader, " ")
			if !found || authType != "Bearer" {
				span.RecordError(fmt.Errorf("malformed authorization header"))
				goto skipCheckAuthorization
			}

			actor, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyActor: AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.ActorCtxKey, actor)
			span.SetAttributes(attribute.String("ActorId", actor.ID))
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireActor rejects requests whose context holds no resolved actor.
func (s *AuthMiddleware) RequireActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := Actor(c.Request().Context()); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

// Actor extracts the authenticated user from a request context.
func Actor(ctx context.Context) (domain.User, bool) {
	actor, ok := ctx.Value(domain.ActorCtxKey).(domain.User)
	return actor, ok
}
