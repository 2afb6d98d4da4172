package dto

import "time"

// SendEmailRequest is the body of the public email proxy.
type SendEmailRequest struct {
	TemplateID string            `json:"template_id"`
	ServiceID  string            `json:"service_id"`
	Params     map[string]string `json:"template_params" binding:"required"`
}

type Message struct {
	TemplateID string
	ServiceID  string
	Params     map[string]string
}

type BookingConfirmation struct {
	ToEmail    string
	ToName     string
	EventTitle string
	EventDate  time.Time
	Amount     int64
	Currency   string
	PaymentID  string
	BookingID  string
}
