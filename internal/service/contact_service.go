package service

import (
	"context"
	"strings"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var contactTracer = otel.Tracer("service/contact")

const maxContactMessageLength = 4000

// ContactService persists messages from the public contact form.
type ContactService struct {
	store   port.ContactStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewContactService(store port.ContactStore, metrics *observability.Metrics, logger *zap.Logger) *ContactService {
	return &ContactService{store: store, metrics: metrics, logger: logger}
}

func (s *ContactService) Submit(ctx context.Context, name, email, message string) (*domain.ContactMessage, error) {
	ctx, span := contactTracer.Start(ctx, "ContactService.Submit")
	defer span.End()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	message = strings.TrimSpace(message)

	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "is required"}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if message == "" {
		return nil, &domain.ErrValidation{Field: "message", Message: "is required"}
	}
	if len(message) > maxContactMessageLength {
		return nil, &domain.ErrValidation{Field: "message", Message: "is too long"}
	}

	msg := &domain.ContactMessage{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.store.InsertContactMessage(ctx, msg); err != nil {
		s.metrics.IncrExternalError("supabase/contact_messages")
		return nil, err
	}

	s.logger.Info("contact message received",
		zap.String("message_id", msg.ID),
		zap.String("email", email),
	)
	return msg, nil
}
