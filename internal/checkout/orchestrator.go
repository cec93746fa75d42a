// Package checkout coordinates the multi-step purchase-then-analyze
// workflow: prepare payment, collect it via the inline SDK widget or a
// hosted checkout page, verify server-side, then run the paid analysis.
// Verification always precedes analysis; an analysis request carrying a
// payment proof is unreachable without a prior paid/completed confirmation
// of the same id within the same run.
package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/insightlab/stockinsight/internal/api"
	"github.com/insightlab/stockinsight/internal/models"
	"github.com/insightlab/stockinsight/internal/store"
)

// Variant selects which of the two observed checkout designs runs. The
// choice is made once at construction, never per call.
type Variant string

const (
	// VariantHosted redirects to a gateway-hosted checkout page (default).
	VariantHosted Variant = "hosted"
	// VariantInline drives the provider SDK widget in-process.
	VariantInline Variant = "inline"
)

// State is the orchestrator's position in the purchase-then-analyze flow.
type State string

const (
	StateIdle              State = "idle"
	StatePreparingCheckout State = "preparing_checkout"
	StateAwaitingPayment   State = "awaiting_payment"
	StateVerifyingPayment  State = "verifying_payment"
	StateAnalyzing         State = "analyzing"
	StateDone              State = "done"
)

// AnalysisAPI is the slice of the analysis backend the orchestrator needs.
type AnalysisAPI interface {
	AnalyzeStock(ctx context.Context, stockQuery string, timeframe models.Timeframe, paymentProof string) (*models.AnalysisTrigger, error)
	GetAnalysisByID(ctx context.Context, id int64) (*models.Insight, error)
}

// PaymentAPI is the slice of the payment backend the orchestrator needs.
type PaymentAPI interface {
	PrepareCheckout(ctx context.Context, stockQuery string, timeframe models.Timeframe, successURL, cancelURL string) (*models.CheckoutIntent, error)
	PreparePayment(ctx context.Context, stockQuery string, timeframe models.Timeframe) (*models.PaymentPrepared, error)
	VerifyPayment(ctx context.Context, impUID, merchantUID string) (*models.PaymentVerification, error)
	GetCheckoutStatus(ctx context.Context, checkoutID string) (*models.CheckoutStatus, error)
}

// Recorder persists fetched insights locally. Recording failures never fail
// the run.
type Recorder interface {
	Record(insight *models.Insight) error
}

// Options wires an Orchestrator.
type Options struct {
	Variant Variant
	// ReturnURL is the base URL of the payment-return handler; stock query
	// and timeframe are appended so the flow can resume after the redirect.
	ReturnURL string
	CancelURL string

	Store     *store.Store
	Analysis  AnalysisAPI
	Payment   PaymentAPI
	Launcher  Launcher
	Navigator Navigator
	Recorder  Recorder
	Logger    *zap.Logger
}

// Orchestrator runs the checkout/payment state machine. One logical flow at
// a time; overlapping submissions are resolved by the store's run tokens
// (last issued run wins, stale completions are dropped).
type Orchestrator struct {
	variant   Variant
	returnURL string
	cancelURL string

	store     *store.Store
	analysis  AnalysisAPI
	payment   PaymentAPI
	launcher  Launcher
	navigator Navigator
	recorder  Recorder
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// New creates an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	variant := opts.Variant
	if variant != VariantInline {
		variant = VariantHosted
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = UnsupportedLauncher{}
	}

	return &Orchestrator{
		variant:   variant,
		returnURL: opts.ReturnURL,
		cancelURL: opts.CancelURL,
		store:     opts.Store,
		analysis:  opts.Analysis,
		payment:   opts.Payment,
		launcher:  launcher,
		navigator: opts.Navigator,
		recorder:  opts.Recorder,
		logger:    logger,
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Outcome is the result of one orchestration run.
type Outcome struct {
	// Insight is set when the run completed an analysis.
	Insight *models.Insight
	// Direct marks the unpaid fallback path (payment subsystem unconfigured).
	Direct bool
	// AwaitingRedirect marks a hosted run that handed off to the checkout
	// page; completion arrives later through Resume.
	AwaitingRedirect bool
	// CheckoutID is the in-flight checkout for an AwaitingRedirect outcome.
	CheckoutID string
	// Applied is false when a newer run superseded this one and its result
	// was dropped.
	Applied bool
}

// Prewarm loads the inline SDK ahead of the first submission to hide its
// latency. Errors are deferred to the actual payment attempt.
func (o *Orchestrator) Prewarm(ctx context.Context) {
	if o.variant != VariantInline {
		return
	}
	if err := o.launcher.Load(ctx); err != nil {
		o.logger.Debug("sdk prewarm failed", zap.Error(err))
	}
}

// Submit starts the purchase-then-analyze flow for one form submission.
// Every failure is written to the session store's error field as well as
// returned.
func (o *Orchestrator) Submit(ctx context.Context, stockQuery string, timeframe models.Timeframe) (*Outcome, error) {
	stockQuery = strings.TrimSpace(stockQuery)
	if stockQuery == "" {
		// Validation failures never leave Idle and never reach the network.
		o.store.SetError("enter a stock code")
		return nil, errors.New("enter a stock code")
	}
	if !timeframe.Valid() {
		o.store.SetError("invalid timeframe")
		return nil, errors.New("invalid timeframe")
	}

	token := o.store.BeginRun()
	o.store.ClearError()
	o.store.SetStockQuery(stockQuery)
	o.store.SetTimeframe(timeframe)
	o.store.SetCheckingOut(true)
	o.setState(StatePreparingCheckout)

	if o.variant == VariantInline {
		return o.submitInline(ctx, token, stockQuery, timeframe)
	}
	return o.submitHosted(ctx, token, stockQuery, timeframe)
}

func (o *Orchestrator) submitHosted(ctx context.Context, token uint64, stockQuery string, timeframe models.Timeframe) (*Outcome, error) {
	intent, err := o.payment.PrepareCheckout(ctx, stockQuery, timeframe, o.successURL(stockQuery, timeframe), o.cancelURL)
	if api.IsPaymentUnconfigured(err) {
		o.logger.Info("payment subsystem unconfigured, falling back to direct analysis",
			zap.String("stock", stockQuery))
		return o.directAnalysis(ctx, token, stockQuery, timeframe)
	}
	if err != nil {
		return nil, o.fail(token, err)
	}

	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CheckoutID = intent.CheckoutID
	})
	o.setState(StateAwaitingPayment)

	o.logger.Info("opening hosted checkout",
		zap.String("checkout_id", intent.CheckoutID),
		zap.String("stock", stockQuery))
	if err := o.navigator.OpenCheckout(intent.CheckoutURL); err != nil {
		o.store.ApplyIf(token, func(st *store.SessionState) { st.CheckoutID = "" })
		return nil, o.fail(token, err)
	}

	// The flow now lives on the checkout page; this machine instance is
	// done until the return handler calls Resume.
	return &Outcome{AwaitingRedirect: true, CheckoutID: intent.CheckoutID, Applied: true}, nil
}

func (o *Orchestrator) submitInline(ctx context.Context, token uint64, stockQuery string, timeframe models.Timeframe) (*Outcome, error) {
	prepared, err := o.payment.PreparePayment(ctx, stockQuery, timeframe)
	if api.IsPaymentUnconfigured(err) {
		o.logger.Info("payment subsystem unconfigured, falling back to direct analysis",
			zap.String("stock", stockQuery))
		return o.directAnalysis(ctx, token, stockQuery, timeframe)
	}
	if err != nil {
		return nil, o.fail(token, err)
	}

	if err := o.launcher.Load(ctx); err != nil {
		return nil, o.fail(token, err)
	}
	if err := o.launcher.Init(prepared.MerchantID); err != nil {
		return nil, o.fail(token, err)
	}

	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CheckoutID = prepared.MerchantUID
	})
	o.setState(StateAwaitingPayment)

	resp, err := o.launcher.RequestPay(ctx, PayRequest{
		PG:          PGParam(prepared.PGProvider, prepared.ChannelKey),
		PayMethod:   "card",
		MerchantUID: prepared.MerchantUID,
		Name:        prepared.ProductName,
		Amount:      prepared.Amount,
	})
	if err != nil {
		o.store.ApplyIf(token, func(st *store.SessionState) { st.CheckoutID = "" })
		return nil, o.fail(token, err)
	}
	if !resp.Success {
		// User-initiated abort or provider decline: surface the provider's
		// message verbatim, no verification attempt.
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "payment cancelled"
		}
		o.store.ApplyIf(token, func(st *store.SessionState) { st.CheckoutID = "" })
		return nil, o.fail(token, errors.New(msg))
	}

	o.setState(StateVerifyingPayment)
	verification, err := o.payment.VerifyPayment(ctx, resp.ImpUID, prepared.MerchantUID)
	if err != nil {
		return nil, o.fail(token, err)
	}
	if !verification.Paid() {
		// Fatal to this run. Never auto-retried; the user contacts support
		// or resubmits.
		return nil, o.fail(token, errors.New("payment verification failed, please contact support"))
	}

	return o.runPaidAnalysis(ctx, token, stockQuery, timeframe, prepared.MerchantUID)
}

// ResumeParams carry the return-page query parameters after a hosted
// checkout redirect.
type ResumeParams struct {
	CheckoutID string
	StockQuery string
	Timeframe  models.Timeframe
}

// Complete reports whether all parameters required for resumption are
// present.
func (p ResumeParams) Complete() bool {
	return p.CheckoutID != "" && p.StockQuery != "" && p.Timeframe.Valid()
}

// Resume re-enters the flow after the hosted-checkout redirect. The
// checkout's completion status is the verification gate here; analysis runs
// only when the gateway reports the checkout completed.
func (o *Orchestrator) Resume(ctx context.Context, params ResumeParams) (*Outcome, error) {
	if !params.Complete() {
		err := errors.New("payment return parameters are incomplete")
		o.store.SetError(err.Error())
		return nil, err
	}

	token := o.store.BeginRun()
	o.store.ClearError()
	o.store.SetStockQuery(params.StockQuery)
	o.store.SetTimeframe(params.Timeframe)
	o.store.SetCheckingOut(true)
	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CheckoutID = params.CheckoutID
	})
	o.setState(StateVerifyingPayment)

	status, err := o.payment.GetCheckoutStatus(ctx, params.CheckoutID)
	if err != nil {
		return nil, o.fail(token, err)
	}
	if !status.IsCompleted {
		return nil, o.fail(token, errors.New("payment is not completed"))
	}

	return o.runPaidAnalysis(ctx, token, params.StockQuery, params.Timeframe, params.CheckoutID)
}

// runPaidAnalysis is reachable only behind a paid verification or a
// completed checkout status for the proof it is handed.
func (o *Orchestrator) runPaidAnalysis(ctx context.Context, token uint64, stockQuery string, timeframe models.Timeframe, paymentProof string) (*Outcome, error) {
	o.setState(StateAnalyzing)
	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CheckingOut = false
		st.Analyzing = true
	})

	insight, err := o.fetchAnalysis(ctx, stockQuery, timeframe, paymentProof)
	if err != nil {
		return nil, o.fail(token, err)
	}

	applied := o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CurrentInsight = insight
		st.CheckoutID = ""
		st.Analyzing = false
		st.Err = ""
	})
	if !applied {
		o.logger.Info("dropping superseded analysis result",
			zap.Int64("insight_id", insight.ID))
		return &Outcome{Insight: insight}, nil
	}

	o.record(insight)
	o.setState(StateDone)
	return &Outcome{Insight: insight, Applied: true}, nil
}

// directAnalysis is the designed bypass when the payment subsystem reports
// itself unconfigured: no payment calls, no payment proof.
func (o *Orchestrator) directAnalysis(ctx context.Context, token uint64, stockQuery string, timeframe models.Timeframe) (*Outcome, error) {
	o.setState(StateAnalyzing)
	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CheckingOut = false
		st.Analyzing = true
	})

	insight, err := o.fetchAnalysis(ctx, stockQuery, timeframe, "")
	if err != nil {
		return nil, o.fail(token, err)
	}

	applied := o.store.ApplyIf(token, func(st *store.SessionState) {
		st.CurrentInsight = insight
		st.Analyzing = false
		st.Err = ""
	})
	if !applied {
		o.logger.Info("dropping superseded analysis result",
			zap.Int64("insight_id", insight.ID))
		return &Outcome{Insight: insight, Direct: true}, nil
	}

	o.record(insight)
	o.setState(StateDone)
	return &Outcome{Insight: insight, Direct: true, Applied: true}, nil
}

func (o *Orchestrator) fetchAnalysis(ctx context.Context, stockQuery string, timeframe models.Timeframe, paymentProof string) (*models.Insight, error) {
	trigger, err := o.analysis.AnalyzeStock(ctx, stockQuery, timeframe, paymentProof)
	if err != nil {
		return nil, err
	}
	return o.analysis.GetAnalysisByID(ctx, trigger.InsightID)
}

func (o *Orchestrator) record(insight *models.Insight) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(insight); err != nil {
		o.logger.Warn("failed to record insight locally", zap.Error(err))
	}
}

// fail converts any mid-flow error into the Idle state with the message in
// the session store, scoped to the failing run.
func (o *Orchestrator) fail(token uint64, err error) error {
	o.setState(StateIdle)
	o.store.ApplyIf(token, func(st *store.SessionState) {
		st.Err = err.Error()
		st.Analyzing = false
		st.CheckingOut = false
	})
	o.logger.Warn("checkout flow failed", zap.Error(err))
	return err
}

// successURL embeds the stock query and timeframe into the return URL so a
// fresh process can resume the flow; the gateway appends the checkout id.
func (o *Orchestrator) successURL(stockQuery string, timeframe models.Timeframe) string {
	u, err := url.Parse(o.returnURL)
	if err != nil {
		return o.returnURL
	}
	q := u.Query()
	q.Set("stock_code", stockQuery)
	q.Set("timeframe", string(timeframe))
	u.RawQuery = q.Encode()
	return u.String()
}
