package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"anoa.com/runclub/internal/entity"
	bookingDto "anoa.com/runclub/internal/modules/booking/dto"
	"anoa.com/runclub/internal/modules/payment/dto"
	"anoa.com/runclub/internal/modules/payment/gateway"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultCurrency = "INR"

type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	CreatePaymentLink(ctx context.Context, req gateway.PaymentLinkRequest) (*gateway.PaymentLink, error)
	FetchPaymentLink(ctx context.Context, linkID string) (*gateway.PaymentLink, error)
}

type EventChecker interface {
	EnsureBookable(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error)
}

type BookingRecorder interface {
	Record(ctx context.Context, input bookingDto.RecordBookingInput) (*entity.Booking, bool, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error)
	CreateQROrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.QROrderResponse, error)
	CheckStatus(ctx context.Context, orderID string) (*dto.PaymentStatusResponse, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, req dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*dto.WebhookResult, error)
	GetQRSession(ctx context.Context, id string, userID uuid.UUID) (*dto.QRSession, error)
	RetryQRSession(ctx context.Context, id string, userID uuid.UUID) (*dto.QRSession, error)
}

type Deps struct {
	Gateway       Gateway
	Events        EventChecker
	Bookings      BookingRecorder
	Sessions      SessionStore
	Poller        *Poller
	KeySecret     string
	WebhookSecret string
	QRTimeout     time.Duration
	Log           logrus.FieldLogger
}

type paymentService struct {
	Deps
	now func() time.Time
}

func NewPaymentService(deps Deps) PaymentService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.QRTimeout <= 0 {
		deps.QRTimeout = 5 * time.Minute
	}
	return &paymentService{Deps: deps, now: time.Now}
}

var errSignature = apperror.New(http.StatusBadRequest, "invalid payment signature", apperror.ErrSignatureMismatch)

// prepare validates an order request and builds the notes the booking is
// later reconstructed from. Nothing external is called before it passes.
func (s *paymentService) prepare(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (string, gateway.Notes, error) {
	if userID == uuid.Nil {
		return "", nil, apperror.Invalid("user is required")
	}
	if req.Amount <= 0 {
		return "", nil, apperror.Invalid("amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return "", nil, apperror.Invalid("currency must be a 3 letter code")
	}

	notes := gateway.Notes{}
	for k, v := range req.Notes {
		notes[k] = v
	}
	notes["user_id"] = userID.String()

	if req.EventID != "" {
		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			return "", nil, apperror.Invalid("invalid event id")
		}
		event, err := s.Events.EnsureBookable(ctx, eventID)
		if err != nil {
			return "", nil, err
		}
		if event.Price > 0 && event.Price != req.Amount {
			return "", nil, apperror.Invalid("amount does not match event price")
		}
		notes["event_id"] = eventID.String()
	}

	return currency, notes, nil
}

func (s *paymentService) CreateOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	currency, notes, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	receipt := req.Receipt
	if receipt == "" {
		receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	order, err := s.Gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   req.Amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"amount":   order.Amount,
	}).Info("payment order created")

	return &dto.OrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Status:   order.Status,
		KeyID:    s.Gateway.KeyID(),
	}, nil
}

func (s *paymentService) CreateQROrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.QROrderResponse, error) {
	currency, notes, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	link, err := s.Gateway.CreatePaymentLink(ctx, gateway.PaymentLinkRequest{
		Amount:      req.Amount,
		Currency:    currency,
		Description: "Run club booking",
		ReferenceID: sessionID,
		Notes:       notes,
	})
	if err != nil {
		return nil, err
	}

	qr, err := EncodeQRDataURL(link.ShortURL, qrImageSize)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &dto.QRSession{
		ID:            sessionID,
		PaymentLinkID: link.ID,
		ShortURL:      link.ShortURL,
		UserID:        userID,
		EventID:       parseOptionalUUID(notes["event_id"]),
		Amount:        req.Amount,
		Currency:      currency,
		Status:        dto.StatusPending,
		StartedAt:     now,
		Deadline:      now.Add(s.QRTimeout),
		UpdatedAt:     now,
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	if s.Poller != nil {
		s.Poller.Watch(session.ID)
	}

	return &dto.QROrderResponse{
		SessionID:     session.ID,
		PaymentLinkID: link.ID,
		ShortURL:      link.ShortURL,
		QRCode:        qr,
		Amount:        req.Amount,
		Currency:      currency,
		ExpiresAt:     session.Deadline,
	}, nil
}

func (s *paymentService) CheckStatus(ctx context.Context, orderID string) (*dto.PaymentStatusResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperror.Invalid("order id is required")
	}

	if strings.HasPrefix(orderID, "plink_") {
		link, err := s.Gateway.FetchPaymentLink(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &dto.PaymentStatusResponse{
			OrderID:       link.ID,
			Status:        MapLinkStatus(link.Status),
			GatewayStatus: link.Status,
			PaymentID:     link.CapturedPaymentID(),
			Amount:        link.Amount,
			AmountPaid:    link.AmountPaid,
		}, nil
	}

	order, err := s.Gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentStatusResponse{
		OrderID:       order.ID,
		Status:        MapOrderStatus(order.Status),
		GatewayStatus: order.Status,
		Amount:        order.Amount,
		AmountPaid:    order.AmountPaid,
	}, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, userID uuid.UUID, req dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error) {
	if !VerifyPaymentSignature(s.KeySecret, req.OrderID, req.PaymentID, req.Signature) {
		s.Log.WithFields(logrus.Fields{
			"order_id":   req.OrderID,
			"payment_id": req.PaymentID,
		}).Warn("payment signature mismatch")
		return nil, errSignature
	}

	order, err := s.Gateway.FetchOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if owner := order.Notes["user_id"]; owner != "" && owner != userID.String() {
		return nil, apperror.Forbidden("order belongs to another user")
	}

	booking, created, err := s.Bookings.Record(ctx, bookingInput(userID, parseOptionalUUID(order.Notes["event_id"]), req.PaymentID, order.ID, order.Amount, order.Currency))
	if err != nil {
		return nil, err
	}

	return &dto.VerifyPaymentResponse{Verified: true, BookingID: &booking.ID, Created: created}, nil
}

type paymentEntity struct {
	ID       string        `json:"id"`
	OrderID  string        `json:"order_id"`
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Status   string        `json:"status"`
	Notes    gateway.Notes `json:"notes"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		PaymentLink *struct {
			Entity gateway.PaymentLink `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*dto.WebhookResult, error) {
	if !VerifyWebhookSignature(s.WebhookSecret, body, signature) {
		s.Log.Warn("webhook signature mismatch")
		return nil, errSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperror.Invalid("malformed webhook payload")
	}

	result := &dto.WebhookResult{Event: env.Event}
	log := s.Log.WithField("event", env.Event)

	switch env.Event {
	case "payment.captured", "payment_link.paid":
	default:
		log.Debug("webhook event acknowledged")
		return result, nil
	}

	if env.Payload.Payment == nil {
		log.Warn("webhook without payment entity")
		return result, nil
	}
	payment := env.Payload.Payment.Entity

	notes := payment.Notes
	var link *gateway.PaymentLink
	if env.Payload.PaymentLink != nil {
		link = &env.Payload.PaymentLink.Entity
		if len(link.Notes) > 0 {
			notes = link.Notes
		}
	}

	userID, err := uuid.Parse(notes["user_id"])
	if err != nil {
		log.WithField("payment_id", payment.ID).Warn("webhook payment has no user in notes")
		return result, nil
	}

	booking, created, err := s.Bookings.Record(ctx, bookingInput(userID, parseOptionalUUID(notes["event_id"]), payment.ID, payment.OrderID, payment.Amount, payment.Currency))
	if err != nil {
		return nil, err
	}
	result.Handled = true
	result.BookingID = &booking.ID

	if link != nil {
		s.settleSession(ctx, link.ID, payment.ID, booking.ID)
	}

	log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"booking_id": booking.ID,
		"created":    created,
	}).Info("webhook payment recorded")
	return result, nil
}

// settleSession marks a pending QR session paid so its poller stops.
func (s *paymentService) settleSession(ctx context.Context, linkID, paymentID string, bookingID uuid.UUID) {
	session, err := s.Sessions.FindByLink(ctx, linkID)
	if err != nil || session.Status == dto.StatusPaid {
		return
	}
	now := s.now()
	_, err = s.Sessions.Update(ctx, session.ID, func(cur *dto.QRSession) bool {
		if cur.Status == dto.StatusPaid {
			return false
		}
		cur.Status = dto.StatusPaid
		cur.PaymentID = paymentID
		cur.BookingID = &bookingID
		cur.UpdatedAt = now
		return true
	})
	if err != nil {
		s.Log.WithError(err).WithField("session_id", session.ID).Warn("failed to settle qr session")
	}
}

func (s *paymentService) GetQRSession(ctx context.Context, id string, userID uuid.UUID) (*dto.QRSession, error) {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, apperror.NotFound("qr session not found")
	}
	return session, nil
}

var errNotRetryable = apperror.New(http.StatusConflict, "only timed out sessions can be retried", apperror.ErrConflict)

// RetryQRSession restarts polling for a session that timed out. The payment
// link itself stays valid on the gateway side.
func (s *paymentService) RetryQRSession(ctx context.Context, id string, userID uuid.UUID) (*dto.QRSession, error) {
	session, err := s.GetQRSession(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != dto.StatusTimeout {
		return nil, errNotRetryable
	}

	now := s.now()
	session, err = s.Sessions.Update(ctx, id, func(cur *dto.QRSession) bool {
		if cur.Status != dto.StatusTimeout {
			return false
		}
		cur.Status = dto.StatusPending
		cur.Attempts = 0
		cur.Deadline = now.Add(s.QRTimeout)
		cur.UpdatedAt = now
		return true
	})
	if err != nil {
		return nil, err
	}
	if session.Status != dto.StatusPending {
		return nil, errNotRetryable
	}
	if s.Poller != nil {
		s.Poller.Watch(session.ID)
	}
	return session, nil
}

func bookingInput(userID uuid.UUID, eventID *uuid.UUID, paymentID, orderID string, amount int64, currency string) bookingDto.RecordBookingInput {
	return bookingDto.RecordBookingInput{
		UserID:    userID,
		EventID:   eventID,
		PaymentID: paymentID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
	}
}

func parseOptionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
