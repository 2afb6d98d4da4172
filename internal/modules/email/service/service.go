package service

import (
	"context"
	"fmt"

	"anoa.com/runclub/internal/modules/email/dto"
	"github.com/sirupsen/logrus"
)

type EmailService interface {
	Send(ctx context.Context, req dto.SendEmailRequest) error
	SendBookingConfirmation(ctx context.Context, msg dto.BookingConfirmation) error
}

type Options struct {
	ServiceID         string
	TemplateID        string
	BookingTemplateID string
}

type emailService struct {
	sender Sender
	opts   Options
	log    logrus.FieldLogger
}

func NewEmailService(sender Sender, opts Options, log logrus.FieldLogger) EmailService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &emailService{sender: sender, opts: opts, log: log}
}

func (s *emailService) Send(ctx context.Context, req dto.SendEmailRequest) error {
	msg := dto.Message{
		ServiceID:  firstNonEmpty(req.ServiceID, s.opts.ServiceID),
		TemplateID: firstNonEmpty(req.TemplateID, s.opts.TemplateID),
		Params:     req.Params,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	s.log.WithField("template_id", msg.TemplateID).Info("email sent")
	return nil
}

func (s *emailService) SendBookingConfirmation(ctx context.Context, b dto.BookingConfirmation) error {
	msg := dto.Message{
		ServiceID:  s.opts.ServiceID,
		TemplateID: s.opts.BookingTemplateID,
		Params: map[string]string{
			"subject":     "Booking confirmed: " + b.EventTitle,
			"to_email":    b.ToEmail,
			"to_name":     b.ToName,
			"event_title": b.EventTitle,
			"event_date":  b.EventDate.Format("Monday, 2 January 2006 15:04"),
			"amount":      FormatAmount(b.Amount, b.Currency),
			"payment_id":  b.PaymentID,
			"booking_id":  b.BookingID,
		},
	}
	return s.sender.Send(ctx, msg)
}

// FormatAmount renders an amount in minor units (paise, cents).
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, minor/100, minor%100)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
