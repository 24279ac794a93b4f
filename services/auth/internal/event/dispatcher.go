package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
)

// OTPDispatcherGroup is the consumer group of the OTP dispatcher.
const OTPDispatcherGroup = "auth-otp-dispatcher"

// Sender delivers an OTP to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, otp string) error
}

// LogSender writes OTPs to the log instead of sending them. It is the
// default until an SMS gateway is configured. The code itself only appears
// at debug level.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, phone, otp string) error {
	s.Logger.InfoContext(ctx, "otp delivered to log sender", slog.String("phone", maskPhone(phone)))
	s.Logger.DebugContext(ctx, "otp value", slog.String("code", otp))
	return nil
}

// OTPDispatcher handles otp.requested events by sending the user's current
// OTP. Events whose OTP has since expired or been replaced are dropped.
type OTPDispatcher struct {
	users  repository.UserRepository
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewOTPDispatcher creates a dispatcher reading OTPs from users.
func NewOTPDispatcher(users repository.UserRepository, sender Sender, logger *slog.Logger) *OTPDispatcher {
	return &OTPDispatcher{users: users, sender: sender, logger: logger, now: time.Now}
}

// Handle implements pkgkafka.Handler.
func (d *OTPDispatcher) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var data OTPRequestedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode otp.requested data: %w", err)
	}

	user, err := d.users.GetByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			d.logger.WarnContext(ctx, "otp requested for unknown user, dropping",
				slog.String("user_id", data.UserID),
				slog.String("event_id", event.EventID),
			)
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.OTP == "" || user.OTPExpired(d.now().Unix()) {
		d.logger.InfoContext(ctx, "otp expired before dispatch, dropping",
			slog.String("user_id", user.ID),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	phone := data.Phone
	if phone == "" {
		phone = user.Phone
	}
	if err := d.sender.Send(ctx, phone, user.OTP); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	d.logger.InfoContext(ctx, "otp dispatched", slog.String("user_id", user.ID))
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
