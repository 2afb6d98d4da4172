package service

import "anoa.com/runclub/internal/modules/payment/dto"

// MapOrderStatus normalises a Razorpay order status. An "attempted" order
// may still be paid on a later attempt, so it stays pending.
func MapOrderStatus(status string) string {
	switch status {
	case "paid":
		return dto.StatusPaid
	default:
		return dto.StatusPending
	}
}

func MapLinkStatus(status string) string {
	switch status {
	case "paid":
		return dto.StatusPaid
	case "expired":
		return dto.StatusExpired
	case "cancelled":
		return dto.StatusFailed
	default:
		return dto.StatusPending
	}
}
