package models

import "github.com/shopspring/decimal"

// PaymentStatus is the terminal-or-pending state reported by the gateway.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// CheckoutIntent is a server-issued record of an initiated, not-yet-confirmed
// payment in the hosted-redirect flow. It is garbage once the session resets.
type CheckoutIntent struct {
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// CheckoutStatus reports whether a hosted checkout reached completion.
type CheckoutStatus struct {
	CheckoutID  string `json:"checkout_id"`
	Status      string `json:"status"`
	IsCompleted bool   `json:"is_completed"`
}

// PaymentPrepared carries the provider launch parameters for the inline-SDK
// flow. MerchantUID doubles as the payment proof once verified.
type PaymentPrepared struct {
	MerchantUID string          `json:"merchant_uid"`
	Amount      decimal.Decimal `json:"amount"`
	ProductName string          `json:"product_name"`
	MerchantID  string          `json:"merchant_id"`
	PGProvider  string          `json:"pg_provider"`
	ChannelKey  string          `json:"channel_key,omitempty"`
}

// PaymentVerification is the authoritative server-side confirmation of a
// payment attempt. Analysis must never run on a checkout whose most recent
// verification is not status=paid.
type PaymentVerification struct {
	Verified    bool            `json:"verified"`
	ImpUID      string          `json:"imp_uid"`
	MerchantUID string          `json:"merchant_uid"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PaymentStatus   `json:"status"`
	PaidAt      string          `json:"paid_at,omitempty"`
}

// Paid reports whether the verification allows analysis to proceed.
func (v *PaymentVerification) Paid() bool {
	return v != nil && v.Verified && v.Status == PaymentPaid
}
