package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered = "auth.user.registered"
	TopicOTPRequested   = "auth.otp.requested"
	TopicPasswordReset  = "auth.password.reset"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// OTPRequestedData is the payload for an otp.requested event. The OTP itself
// stays in the credential store; the dispatcher reads it from there.
type OTPRequestedData struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

// PasswordResetData is the payload for a password.reset event.
type PasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

// Producer publishes auth domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
	})
}

// PublishOTPRequested publishes an otp.requested event.
func (p *Producer) PublishOTPRequested(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicOTPRequested, user.ID, OTPRequestedData{
		UserID: user.ID,
		Phone:  user.Phone,
	})
}

// PublishPasswordReset publishes a password.reset event.
func (p *Producer) PublishPasswordReset(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicPasswordReset, user.ID, PasswordResetData{
		UserID: user.ID,
		Email:  user.Email,
		Phone:  user.Phone,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_id", event.EventID),
	)
	return nil
}
