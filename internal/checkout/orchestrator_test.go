package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/stockinsight/internal/api"
	"github.com/insightlab/stockinsight/internal/models"
	"github.com/insightlab/stockinsight/internal/store"
)

// callLog records every backend interaction in order so tests can assert
// sequencing invariants, not just call counts.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeAnalysis struct {
	log        *callLog
	insight    *models.Insight
	analyzeErr error
	getErr     error
	hook       func() // runs inside GetAnalysisByID, before returning
}

func (f *fakeAnalysis) AnalyzeStock(_ context.Context, stockQuery string, timeframe models.Timeframe, paymentProof string) (*models.AnalysisTrigger, error) {
	f.log.add("analyze:%s:%s:%s", stockQuery, timeframe, paymentProof)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &models.AnalysisTrigger{InsightID: f.insight.ID, StockCode: f.insight.StockCode}, nil
}

func (f *fakeAnalysis) GetAnalysisByID(_ context.Context, id int64) (*models.Insight, error) {
	f.log.add("get:%d", id)
	if f.hook != nil {
		f.hook()
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.insight, nil
}

type fakePayment struct {
	log *callLog

	intent      *models.CheckoutIntent
	checkoutErr error

	prepared   *models.PaymentPrepared
	prepareErr error

	verification *models.PaymentVerification
	verifyErr    error

	status    *models.CheckoutStatus
	statusErr error

	gotSuccessURL string
}

func (f *fakePayment) PrepareCheckout(_ context.Context, stockQuery string, timeframe models.Timeframe, successURL, cancelURL string) (*models.CheckoutIntent, error) {
	f.log.add("prepare_checkout:%s:%s", stockQuery, timeframe)
	f.gotSuccessURL = successURL
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.intent, nil
}

func (f *fakePayment) PreparePayment(_ context.Context, stockQuery string, timeframe models.Timeframe) (*models.PaymentPrepared, error) {
	f.log.add("prepare_payment:%s:%s", stockQuery, timeframe)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return f.prepared, nil
}

func (f *fakePayment) VerifyPayment(_ context.Context, impUID, merchantUID string) (*models.PaymentVerification, error) {
	f.log.add("verify:%s:%s", impUID, merchantUID)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verification, nil
}

func (f *fakePayment) GetCheckoutStatus(_ context.Context, checkoutID string) (*models.CheckoutStatus, error) {
	f.log.add("status:%s", checkoutID)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

type fakeLauncher struct {
	log     *callLog
	resp    PayResponse
	loadErr error

	gotPG       string
	gotMerchant string
}

func (f *fakeLauncher) Load(context.Context) error {
	f.log.add("sdk_load")
	return f.loadErr
}

func (f *fakeLauncher) Init(merchantID string) error {
	f.log.add("sdk_init:%s", merchantID)
	f.gotMerchant = merchantID
	return nil
}

func (f *fakeLauncher) RequestPay(_ context.Context, req PayRequest) (PayResponse, error) {
	f.log.add("sdk_pay:%s", req.MerchantUID)
	f.gotPG = req.PG
	return f.resp, nil
}

type fakeNavigator struct {
	log    *callLog
	opened []string
	err    error
}

func (f *fakeNavigator) OpenCheckout(url string) error {
	f.log.add("navigate:%s", url)
	f.opened = append(f.opened, url)
	return f.err
}

func testInsight() *models.Insight {
	return &models.Insight{
		ID:             42,
		StockCode:      "AAPL",
		StockName:      "Apple Inc.",
		Market:         "US",
		Timeframe:      models.TimeframeMid,
		Recommendation: models.Buy,
		RiskScore:      4,
	}
}

func unconfigured() error {
	return &api.Error{Kind: api.KindPaymentUnconfigured, StatusCode: 503, Message: "payment service is not configured"}
}

type fixture struct {
	log       *callLog
	store     *store.Store
	analysis  *fakeAnalysis
	payment   *fakePayment
	launcher  *fakeLauncher
	navigator *fakeNavigator
}

func newFixture() *fixture {
	log := &callLog{}
	return &fixture{
		log:       log,
		store:     store.New(),
		analysis:  &fakeAnalysis{log: log, insight: testInsight()},
		payment:   &fakePayment{log: log},
		launcher:  &fakeLauncher{log: log},
		navigator: &fakeNavigator{log: log},
	}
}

func (f *fixture) orchestrator(variant Variant) *Orchestrator {
	return New(Options{
		Variant:   variant,
		ReturnURL: "http://127.0.0.1:43110/payment/complete",
		CancelURL: "http://127.0.0.1:43110/payment/cancel",
		Store:     f.store,
		Analysis:  f.analysis,
		Payment:   f.payment,
		Launcher:  f.launcher,
		Navigator: f.navigator,
	})
}

func TestSubmitEmptyQueryStaysIdle(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(VariantHosted)

	_, err := o.Submit(context.Background(), "   ", models.TimeframeMid)
	require.Error(t, err)

	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, "enter a stock code", f.store.Snapshot().Err)
	assert.Empty(t, f.log.all(), "no network call may happen on validation failure")
}

func TestSubmitInvalidTimeframeStaysIdle(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(VariantHosted)

	_, err := o.Submit(context.Background(), "AAPL", models.Timeframe("decade"))
	require.Error(t, err)
	assert.Empty(t, f.log.all())
}

func TestUnconfiguredPaymentFallsBackToDirectAnalysis(t *testing.T) {
	f := newFixture()
	f.payment.checkoutErr = unconfigured()
	o := f.orchestrator(VariantHosted)

	outcome, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Direct)
	assert.True(t, outcome.Applied)
	assert.Equal(t, StateDone, o.State())

	calls := f.log.all()
	assert.Contains(t, calls, "analyze:AAPL:mid:", "analysis must run without a payment proof")
	for _, c := range calls {
		assert.NotContains(t, c, "verify", "no verification on the fallback path")
		assert.NotContains(t, c, "navigate", "no checkout page on the fallback path")
	}

	st := f.store.Snapshot()
	require.NotNil(t, st.CurrentInsight)
	assert.EqualValues(t, 42, st.CurrentInsight.ID)
	assert.False(t, st.Analyzing)
	assert.False(t, st.CheckingOut)
}

func TestHostedSubmitHandsOffToCheckoutPage(t *testing.T) {
	f := newFixture()
	f.payment.intent = &models.CheckoutIntent{
		CheckoutID:  "chk_abc",
		CheckoutURL: "https://pay.example.com/c/chk_abc",
		Status:      "open",
	}
	o := f.orchestrator(VariantHosted)

	outcome, err := o.Submit(context.Background(), "AAPL", models.TimeframeShort)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.AwaitingRedirect)
	assert.Equal(t, "chk_abc", outcome.CheckoutID)

	assert.Equal(t, []string{"https://pay.example.com/c/chk_abc"}, f.navigator.opened)
	assert.Equal(t, "chk_abc", f.store.Snapshot().CheckoutID)
	assert.Equal(t, StateAwaitingPayment, o.State())

	// The return URL must carry enough context for a fresh process to resume.
	assert.Contains(t, f.payment.gotSuccessURL, "stock_code=AAPL")
	assert.Contains(t, f.payment.gotSuccessURL, "timeframe=short")

	// No analysis may run before the resumed verification.
	for _, c := range f.log.all() {
		assert.False(t, strings.HasPrefix(c, "analyze:"))
	}
}

func TestHostedPrepareFailureSurfacesError(t *testing.T) {
	f := newFixture()
	f.payment.checkoutErr = &api.Error{Kind: api.KindHTTP, StatusCode: 500, Message: "checkout session could not be created"}
	o := f.orchestrator(VariantHosted)

	_, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.Error(t, err)

	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, "checkout session could not be created", f.store.Snapshot().Err)
	assert.False(t, f.store.Snapshot().CheckingOut)
}

func inlinePrepared() *models.PaymentPrepared {
	return &models.PaymentPrepared{
		MerchantUID: "m_001",
		Amount:      decimal.NewFromInt(1900),
		ProductName: "AAPL deep research",
		MerchantID:  "imp_merchant",
		PGProvider:  "tosspayments",
	}
}

func TestInlinePaymentSuccessVerifiesThenAnalyzes(t *testing.T) {
	f := newFixture()
	f.payment.prepared = inlinePrepared()
	f.payment.verification = &models.PaymentVerification{
		Verified:    true,
		ImpUID:      "imp_123",
		MerchantUID: "m_001",
		Status:      models.PaymentPaid,
	}
	f.launcher.resp = PayResponse{Success: true, ImpUID: "imp_123", MerchantUID: "m_001"}
	o := f.orchestrator(VariantInline)

	outcome, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.NoError(t, err)
	require.NotNil(t, outcome.Insight)
	assert.True(t, outcome.Applied)
	assert.Equal(t, StateDone, o.State())

	calls := f.log.all()
	verifyIdx, analyzeIdx := -1, -1
	for i, c := range calls {
		if strings.HasPrefix(c, "verify:") {
			verifyIdx = i
		}
		if strings.HasPrefix(c, "analyze:") {
			analyzeIdx = i
		}
	}
	require.GreaterOrEqual(t, verifyIdx, 0)
	require.GreaterOrEqual(t, analyzeIdx, 0)
	assert.Less(t, verifyIdx, analyzeIdx, "verification must precede analysis")
	assert.Contains(t, calls, "analyze:AAPL:mid:m_001", "analysis carries the verified merchant uid as proof")

	st := f.store.Snapshot()
	assert.Empty(t, st.CheckoutID, "checkout id cleared after completion")
	require.NotNil(t, st.CurrentInsight)
	assert.Equal(t, "imp_merchant", f.launcher.gotMerchant)
}

func TestInlineCancelSurfacesProviderMessage(t *testing.T) {
	f := newFixture()
	f.payment.prepared = inlinePrepared()
	f.launcher.resp = PayResponse{Success: false, ErrorMsg: "사용자취소"}
	o := f.orchestrator(VariantInline)

	_, err := o.Submit(context.Background(), "NVDA", models.TimeframeLong)
	require.Error(t, err)

	st := f.store.Snapshot()
	assert.Equal(t, "사용자취소", st.Err)
	assert.Empty(t, st.CheckoutID, "in-flight checkout id cleared on cancel")
	assert.Equal(t, StateIdle, o.State())

	for _, c := range f.log.all() {
		assert.False(t, strings.HasPrefix(c, "verify:"), "no verification after cancel")
		assert.False(t, strings.HasPrefix(c, "analyze:"), "no analysis after cancel")
	}
}

func TestInlineCancelWithoutMessageUsesDefault(t *testing.T) {
	f := newFixture()
	f.payment.prepared = inlinePrepared()
	f.launcher.resp = PayResponse{Success: false}
	o := f.orchestrator(VariantInline)

	_, err := o.Submit(context.Background(), "NVDA", models.TimeframeLong)
	require.Error(t, err)
	assert.Equal(t, "payment cancelled", f.store.Snapshot().Err)
}

func TestInlineVerificationNotPaidFailsWithoutAnalysis(t *testing.T) {
	f := newFixture()
	f.payment.prepared = inlinePrepared()
	f.payment.verification = &models.PaymentVerification{
		Verified:    false,
		ImpUID:      "imp_123",
		MerchantUID: "m_001",
		Status:      models.PaymentPending,
	}
	f.launcher.resp = PayResponse{Success: true, ImpUID: "imp_123", MerchantUID: "m_001"}
	o := f.orchestrator(VariantInline)

	_, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.Error(t, err)

	assert.Contains(t, f.store.Snapshot().Err, "verification failed")
	assert.Equal(t, StateIdle, o.State())
	for _, c := range f.log.all() {
		assert.False(t, strings.HasPrefix(c, "analyze:"), "unpaid verification must block analysis")
	}
}

func TestInlineChannelKeyWinsOverProvider(t *testing.T) {
	f := newFixture()
	prepared := inlinePrepared()
	prepared.ChannelKey = "channel-key-live-1"
	f.payment.prepared = prepared
	f.payment.verification = &models.PaymentVerification{
		Verified: true, ImpUID: "imp_123", MerchantUID: "m_001", Status: models.PaymentPaid,
	}
	f.launcher.resp = PayResponse{Success: true, ImpUID: "imp_123", MerchantUID: "m_001"}
	o := f.orchestrator(VariantInline)

	_, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.NoError(t, err)
	assert.Equal(t, "channel-key-live-1", f.launcher.gotPG)
}

func TestResumeRequiresAllParameters(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(VariantHosted)

	_, err := o.Resume(context.Background(), ResumeParams{CheckoutID: "chk_abc", StockQuery: "AAPL"})
	require.Error(t, err)
	assert.Empty(t, f.log.all())
}

func TestResumeIncompleteCheckoutFailsWithoutAnalysis(t *testing.T) {
	f := newFixture()
	f.payment.status = &models.CheckoutStatus{CheckoutID: "abc", Status: "open", IsCompleted: false}
	o := f.orchestrator(VariantHosted)

	_, err := o.Resume(context.Background(), ResumeParams{
		CheckoutID: "abc",
		StockQuery: "AAPL",
		Timeframe:  models.TimeframeShort,
	})
	require.Error(t, err)

	assert.Equal(t, "payment is not completed", f.store.Snapshot().Err)
	for _, c := range f.log.all() {
		assert.False(t, strings.HasPrefix(c, "analyze:"))
	}
}

func TestResumeCompletedCheckoutRunsPaidAnalysis(t *testing.T) {
	f := newFixture()
	f.payment.status = &models.CheckoutStatus{CheckoutID: "abc", Status: "succeeded", IsCompleted: true}
	o := f.orchestrator(VariantHosted)

	outcome, err := o.Resume(context.Background(), ResumeParams{
		CheckoutID: "abc",
		StockQuery: "AAPL",
		Timeframe:  models.TimeframeShort,
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Insight)
	assert.True(t, outcome.Applied)

	calls := f.log.all()
	assert.Equal(t, "status:abc", calls[0], "completion check must come first")
	assert.Contains(t, calls, "analyze:AAPL:short:abc", "analysis carries the checkout id as proof")

	st := f.store.Snapshot()
	assert.Empty(t, st.CheckoutID)
	require.NotNil(t, st.CurrentInsight)
}

func TestSupersededRunResultIsDropped(t *testing.T) {
	f := newFixture()
	f.payment.checkoutErr = unconfigured()
	// A newer submission begins while the first run's analysis is in flight.
	f.analysis.hook = func() { f.store.BeginRun() }
	o := f.orchestrator(VariantHosted)

	outcome, err := o.Submit(context.Background(), "AAPL", models.TimeframeMid)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Nil(t, f.store.Snapshot().CurrentInsight, "stale result must not overwrite state")
}

func TestAnalysisFailureAfterVerificationReturnsToIdle(t *testing.T) {
	f := newFixture()
	f.payment.status = &models.CheckoutStatus{CheckoutID: "abc", Status: "succeeded", IsCompleted: true}
	f.analysis.analyzeErr = errors.New("analysis backend unavailable")
	o := f.orchestrator(VariantHosted)

	_, err := o.Resume(context.Background(), ResumeParams{
		CheckoutID: "abc",
		StockQuery: "AAPL",
		Timeframe:  models.TimeframeMid,
	})
	require.Error(t, err)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, "analysis backend unavailable", f.store.Snapshot().Err)
}

// TestPaidAnalysisAlwaysPrecededByVerification drives the inline flow across
// randomized gateway behavior and checks the core invariant on the observed
// call order: an analysis call carrying a payment proof always follows a
// paid verification of the same id.
func TestPaidAnalysisAlwaysPrecededByVerification(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		f := newFixture()
		f.payment.prepared = inlinePrepared()

		paid := rng.Intn(3) == 0
		switch rng.Intn(4) {
		case 0:
			f.payment.prepareErr = unconfigured()
		case 1:
			f.launcher.resp = PayResponse{Success: false, ErrorMsg: "declined"}
		default:
			f.launcher.resp = PayResponse{Success: true, ImpUID: "imp_x", MerchantUID: "m_001"}
			status := models.PaymentFailed
			if paid {
				status = models.PaymentPaid
			}
			f.payment.verification = &models.PaymentVerification{
				Verified: paid, ImpUID: "imp_x", MerchantUID: "m_001", Status: status,
			}
		}
		if rng.Intn(5) == 0 {
			f.analysis.analyzeErr = errors.New("flaky backend")
		}

		o := f.orchestrator(VariantInline)
		_, _ = o.Submit(context.Background(), "AAPL", models.TimeframeMid)

		verifiedPaid := false
		for _, c := range f.log.all() {
			if c == "verify:imp_x:m_001" && f.payment.verification.Paid() {
				verifiedPaid = true
			}
			if strings.HasPrefix(c, "analyze:") && strings.HasSuffix(c, ":m_001") {
				assert.True(t, verifiedPaid,
					"iteration %d: analysis with proof before paid verification: %v", i, f.log.all())
			}
		}
	}
}
