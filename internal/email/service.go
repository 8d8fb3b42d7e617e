package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/medibook/booking-api/internal/config"
	"github.com/medibook/booking-api/internal/model"
)

type Service interface {
	SendBookingConfirmation(ctx context.Context, apt *model.Appointment) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg config.EmailConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendBookingConfirmation(_ context.Context, apt *model.Appointment) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", apt.PatientEmail)
	m.SetHeader("Subject", "Your appointment is confirmed")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s at %s is confirmed. See you then!\n",
		apt.PatientName, apt.Date, apt.Time,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

// NoopService drops all mail. Used when SMTP is not configured and in
// tests.
type NoopService struct{}

func (NoopService) SendBookingConfirmation(context.Context, *model.Appointment) error {
	return nil
}
