package delivery

import (
	"fmt"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
)

// DeliveryError describes a failed webhook call. StatusCode is 0 when no
// response was received.
type DeliveryError struct {
	WebhookID  int64
	StatusCode int
	Body       []byte
	Message    string
	Retryable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("webhook %d: %s", e.WebhookID, e.Message)
	}
	return fmt.Sprintf("webhook %d: status %d: %s", e.WebhookID, e.StatusCode, e.Message)
}

// Unwrap exposes both apperrors.ErrDelivery and the transport error.
func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrDelivery}
	}
	return []error{apperrors.ErrDelivery, e.Err}
}
