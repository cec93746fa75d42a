package checkout

import (
	"context"
	"errors"

	"github.com/pkg/browser"
	"github.com/shopspring/decimal"
)

// PayRequest mirrors the provider SDK's request_pay parameters.
type PayRequest struct {
	PG          string
	PayMethod   string
	MerchantUID string
	Name        string
	Amount      decimal.Decimal
	RedirectURL string
}

// PayResponse is the SDK callback payload, delivered exactly once per
// payment attempt.
type PayResponse struct {
	Success     bool
	ImpUID      string
	MerchantUID string
	ErrorCode   string
	ErrorMsg    string
}

// Launcher bridges the inline variant to the provider's payment widget
// (init / request_pay contract). Implementations host the widget in an
// embedded webview; tests use fakes.
type Launcher interface {
	// Load fetches the SDK. Idempotent; safe to pre-warm at startup to hide
	// latency.
	Load(ctx context.Context) error
	// Init binds the SDK to the merchant account.
	Init(merchantID string) error
	// RequestPay opens the widget and blocks until its callback fires.
	RequestPay(ctx context.Context, req PayRequest) (PayResponse, error)
}

// Navigator performs the full-page navigation of the hosted variant.
type Navigator interface {
	OpenCheckout(url string) error
}

// BrowserNavigator opens the hosted checkout page in the default browser.
type BrowserNavigator struct{}

func (BrowserNavigator) OpenCheckout(url string) error {
	return browser.OpenURL(url)
}

// UnsupportedLauncher is wired when no embedded SDK host exists. The
// orchestrator surfaces its error through the normal failure path.
type UnsupportedLauncher struct{}

func (UnsupportedLauncher) Load(context.Context) error {
	return errors.New("inline payment SDK is not available in this build")
}

func (UnsupportedLauncher) Init(string) error {
	return errors.New("inline payment SDK is not available in this build")
}

func (UnsupportedLauncher) RequestPay(context.Context, PayRequest) (PayResponse, error) {
	return PayResponse{}, errors.New("inline payment SDK is not available in this build")
}

// PGParam builds the SDK's PG selector string. An explicit channel key
// always wins over the provider id.
func PGParam(provider, channelKey string) string {
	if channelKey != "" {
		return channelKey
	}
	return provider
}
