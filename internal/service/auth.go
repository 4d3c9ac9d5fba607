package service

import (
	"context"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/usecase"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	secret   []byte
	identity usecase.IdentityGateway
}

func NewAuthService(secret string, identity usecase.IdentityGateway) *AuthService {
	return &AuthService{
		secret:   []byte(secret),
		identity: identity,
	}
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	gojwt.RegisteredClaims
}

// AuthJwt validates a bearer token and resolves the actor behind it. The
// token carries the user ID as subject; email and name claims are trusted
// when present and otherwise looked up through the identity service.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	var claims accessClaims
	parsed, err := gojwt.ParseWithClaims(token, &claims, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return domain.User{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		err := fmt.Errorf("invalid token subject")
		span.RecordError(err)
		return domain.User{}, err
	}

	if claims.Email != "" {
		return domain.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
	}

	user, err := s.identity.Resolve(ctx, claims.Subject)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}
	return user, nil
}
