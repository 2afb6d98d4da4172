package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateOrderRequest struct {
	Amount   int64             `json:"amount" binding:"required,gt=0"`
	Currency string            `json:"currency" binding:"omitempty,len=3"`
	EventID  string            `json:"event_id" binding:"omitempty,uuid"`
	Receipt  string            `json:"receipt" binding:"omitempty,max=40"`
	Notes    map[string]string `json:"notes"`
}

type OrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	KeyID    string `json:"key_id"`
}

type QROrderResponse struct {
	SessionID     string    `json:"session_id"`
	PaymentLinkID string    `json:"payment_link_id"`
	ShortURL      string    `json:"short_url"`
	QRCode        string    `json:"qr_code"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	ExpiresAt     time.Time `json:"expires_at"`
}

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusExpired = "expired"
	// StatusTimeout is reached only by QR sessions the poller gave up on.
	StatusTimeout = "timeout"
)

type PaymentStatusResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	GatewayStatus string `json:"gateway_status"`
	PaymentID     string `json:"payment_id,omitempty"`
	Amount        int64  `json:"amount"`
	AmountPaid    int64  `json:"amount_paid"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type VerifyPaymentResponse struct {
	Verified  bool       `json:"verified"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	Created   bool       `json:"created"`
}

type WebhookResult struct {
	Event     string     `json:"event"`
	Handled   bool       `json:"handled"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}

// QRSession tracks one QR payment while the poller watches it.
type QRSession struct {
	ID            string     `json:"id"`
	PaymentLinkID string     `json:"payment_link_id"`
	ShortURL      string     `json:"short_url"`
	UserID        uuid.UUID  `json:"user_id"`
	EventID       *uuid.UUID `json:"event_id,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PaymentID     string     `json:"payment_id,omitempty"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty"`
	Attempts      int        `json:"attempts"`
	StartedAt     time.Time  `json:"started_at"`
	Deadline      time.Time  `json:"deadline"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *QRSession) Terminal() bool {
	return s.Status != StatusPending
}
