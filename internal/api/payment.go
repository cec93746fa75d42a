package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/insightlab/stockinsight/internal/models"
)

// PaymentClient talks to the payment gateway facade on the backend. Every
// call requires a non-empty stock query as a caller precondition.
type PaymentClient struct {
	client   *resty.Client
	identity TokenSource
}

// NewPaymentClient creates a payment API client.
func NewPaymentClient(opts Options, identity TokenSource) *PaymentClient {
	return &PaymentClient{
		client:   newHTTPClient(opts),
		identity: identity,
	}
}

// paymentError maps non-success payment responses to structured kinds.
// 503 is the backend's "payment subsystem not configured" signal; callers
// branch on the kind, not the message text.
func paymentError(resp *resty.Response, fallback string) *Error {
	apiErr := decodeError(resp, fallback)
	if resp.StatusCode() == http.StatusServiceUnavailable {
		apiErr.Kind = KindPaymentUnconfigured
	}
	return apiErr
}

type checkoutRequest struct {
	StockCode  string           `json:"stock_code"`
	Timeframe  models.Timeframe `json:"timeframe"`
	SuccessURL string           `json:"success_url"`
	CancelURL  string           `json:"cancel_url,omitempty"`
}

// PrepareCheckout opens a hosted-checkout session. The returned intent's URL
// is where the user completes payment; the flow resumes at successURL.
func (pc *PaymentClient) PrepareCheckout(ctx context.Context, stockQuery string, timeframe models.Timeframe, successURL, cancelURL string) (*models.CheckoutIntent, error) {
	body := checkoutRequest{
		StockCode:  stockQuery,
		Timeframe:  timeframe,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	}

	resp, err := authRequest(pc.client, pc.identity).
		SetContext(ctx).
		SetBody(body).
		Post("/api/payment/checkout")
	if err != nil {
		return nil, networkError("failed to prepare checkout", err)
	}
	if resp.IsError() {
		return nil, paymentError(resp, "failed to prepare checkout")
	}

	var intent models.CheckoutIntent
	if err := json.Unmarshal(resp.Body(), &intent); err != nil {
		return nil, fmt.Errorf("parse checkout response: %w", err)
	}
	return &intent, nil
}

type prepareRequest struct {
	StockCode string           `json:"stock_code"`
	Timeframe models.Timeframe `json:"timeframe"`
}

// PreparePayment requests inline-SDK launch parameters for one analysis.
func (pc *PaymentClient) PreparePayment(ctx context.Context, stockQuery string, timeframe models.Timeframe) (*models.PaymentPrepared, error) {
	resp, err := authRequest(pc.client, pc.identity).
		SetContext(ctx).
		SetBody(prepareRequest{StockCode: stockQuery, Timeframe: timeframe}).
		Post("/api/payment/prepare")
	if err != nil {
		return nil, networkError("failed to prepare payment", err)
	}
	if resp.IsError() {
		return nil, paymentError(resp, "failed to prepare payment")
	}

	var prepared models.PaymentPrepared
	if err := json.Unmarshal(resp.Body(), &prepared); err != nil {
		return nil, fmt.Errorf("parse payment preparation: %w", err)
	}
	return &prepared, nil
}

type verifyRequest struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
}

// VerifyPayment asks the backend to confirm a completed payment attempt with
// the gateway. Idempotent: re-verifying the same ids returns a consistent
// result.
func (pc *PaymentClient) VerifyPayment(ctx context.Context, impUID, merchantUID string) (*models.PaymentVerification, error) {
	resp, err := authRequest(pc.client, pc.identity).
		SetContext(ctx).
		SetBody(verifyRequest{ImpUID: impUID, MerchantUID: merchantUID}).
		Post("/api/payment/verify")
	if err != nil {
		return nil, networkError("payment verification failed", err)
	}
	if resp.IsError() {
		return nil, paymentError(resp, "payment verification failed")
	}

	var verification models.PaymentVerification
	if err := json.Unmarshal(resp.Body(), &verification); err != nil {
		return nil, fmt.Errorf("parse verification: %w", err)
	}
	return &verification, nil
}

// GetCheckoutStatus queries completion of a hosted checkout after the
// redirect return, where no explicit verify step applies.
func (pc *PaymentClient) GetCheckoutStatus(ctx context.Context, checkoutID string) (*models.CheckoutStatus, error) {
	resp, err := authRequest(pc.client, pc.identity).
		SetContext(ctx).
		Get("/api/payment/checkout/" + checkoutID + "/status")
	if err != nil {
		return nil, networkError("failed to query checkout status", err)
	}
	if resp.IsError() {
		return nil, paymentError(resp, "failed to query checkout status")
	}

	var status models.CheckoutStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, fmt.Errorf("parse checkout status: %w", err)
	}
	return &status, nil
}
