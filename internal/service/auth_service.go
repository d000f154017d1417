package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthService validates Supabase access tokens and delegates credential
// operations to GoTrue. No passwords are stored or hashed here.
type AuthService struct {
	gateway   port.AuthGateway
	jwtSecret []byte
	logger    *zap.Logger
}

func NewAuthService(gateway port.AuthGateway, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		gateway:   gateway,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses a GoTrue-issued HS256 token and returns the
// caller's identity. The admin flag is left unset; it is resolved from the
// profile row by the services that need it.
func (s *AuthService) ValidateAccessToken(tokenString string) (domain.Identity, error) {
	claims := &accessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return domain.Identity{}, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	return domain.Identity{UserID: userID, Email: claims.Email}, nil
}

// SignUp registers a new account with GoTrue. The profile row is created
// lazily on the first authenticated profile read.
func (s *AuthService) SignUp(ctx context.Context, creds domain.CredentialsRequest) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	session, err := s.gateway.SignUp(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("email", creds.Email))
	return session, nil
}

func (s *AuthService) SignIn(ctx context.Context, creds domain.CredentialsRequest) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	session, err := s.gateway.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		s.logger.Warn("sign-in failed", zap.String("email", creds.Email))
		return nil, err
	}
	return session, nil
}

// RecoverPassword triggers a reset email. The outcome is intentionally the
// same whether or not the address is known.
func (s *AuthService) RecoverPassword(ctx context.Context, req domain.EmailRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.RecoverPassword")
	defer span.End()

	if err := validateEmail(req.Email); err != nil {
		return err
	}
	return s.gateway.RecoverPassword(ctx, req.Email)
}

func (s *AuthService) ResendConfirmation(ctx context.Context, req domain.EmailRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ResendConfirmation")
	defer span.End()

	if err := validateEmail(req.Email); err != nil {
		return err
	}
	return s.gateway.ResendConfirmation(ctx, req.Email)
}

func validateCredentials(creds domain.CredentialsRequest) error {
	if err := validateEmail(creds.Email); err != nil {
		return err
	}
	if len(creds.Password) < 6 {
		return &domain.ErrValidation{Field: "password", Message: "must be at least 6 characters"}
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return &domain.ErrValidation{Field: "email", Message: "a valid email address is required"}
	}
	return nil
}
