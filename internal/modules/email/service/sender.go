package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"anoa.com/runclub/internal/modules/email/dto"
	"anoa.com/runclub/pkg/apperror"
	"github.com/go-resty/resty/v2"
	"gopkg.in/gomail.v2"
)

// Sender delivers one templated message.
type Sender interface {
	Send(ctx context.Context, msg dto.Message) error
}

type EmailJSConfig struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

// EmailJSSender posts messages to the EmailJS REST API. Templates live on
// the EmailJS side; only ids and params travel.
type EmailJSSender struct {
	client     *resty.Client
	publicKey  string
	privateKey string
}

func NewEmailJSSender(cfg EmailJSConfig) *EmailJSSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailJSSender{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
	}
}

type emailJSPayload struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *EmailJSSender) Send(ctx context.Context, msg dto.Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(emailJSPayload{
			ServiceID:      msg.ServiceID,
			TemplateID:     msg.TemplateID,
			UserID:         s.publicKey,
			AccessToken:    s.privateKey,
			TemplateParams: msg.Params,
		}).
		Post("/email/send")
	if err != nil {
		return apperror.New(http.StatusBadGateway, "email provider unreachable", err)
	}
	if resp.IsError() {
		return apperror.New(resp.StatusCode(), fmt.Sprintf("email provider rejected message: %s", strings.TrimSpace(resp.String())), nil)
	}
	return nil
}

// Dialer is the part of gomail.Dialer the SMTP sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender renders template params into a plain message. The recipient is
// taken from the to_email param and the subject from subject, falling back
// to the template id.
type SMTPSender struct {
	dialer Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

func NewSMTPSenderWithDialer(dialer Dialer, from string) *SMTPSender {
	return &SMTPSender{dialer: dialer, from: from}
}

func (s *SMTPSender) Send(ctx context.Context, msg dto.Message) error {
	to := msg.Params["to_email"]
	if to == "" {
		return apperror.Invalid("to_email is required for smtp delivery")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := BuildSMTPMessage(s.from, to, msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		return apperror.New(http.StatusBadGateway, "smtp delivery failed", err)
	}
	return nil
}

func BuildSMTPMessage(from, to string, msg dto.Message) *gomail.Message {
	subject := msg.Params["subject"]
	if subject == "" {
		subject = strings.ReplaceAll(msg.TemplateID, "_", " ")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	if name := msg.Params["to_name"]; name != "" {
		m.SetAddressHeader("To", to, name)
	} else {
		m.SetHeader("To", to)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", renderParams(msg.Params))
	return m
}

func renderParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		switch k {
		case "to_email", "subject":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", strings.ReplaceAll(k, "_", " "), params[k])
	}
	return b.String()
}
