// Package cli is the terminal front end: cobra commands, survey prompts and
// the wiring that connects the API clients, the session store and the
// checkout orchestrator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insightlab/stockinsight/config"
	"github.com/insightlab/stockinsight/internal/api"
	"github.com/insightlab/stockinsight/internal/callback"
	"github.com/insightlab/stockinsight/internal/checkout"
	"github.com/insightlab/stockinsight/internal/display"
	"github.com/insightlab/stockinsight/internal/history"
	"github.com/insightlab/stockinsight/internal/identity"
	"github.com/insightlab/stockinsight/internal/models"
	"github.com/insightlab/stockinsight/internal/store"
)

// App holds the long-lived pieces shared by every command.
type App struct {
	manager  *config.Manager
	logger   *zap.Logger
	renderer *display.Renderer
	identity *identity.Provider
	analysis *api.AnalysisClient
	payment  *api.PaymentClient
	session  *store.Store
	history  *history.Store
}

// newApp wires the application from the managed configuration.
func newApp(manager *config.Manager) (*App, error) {
	cfg := manager.Get()
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create state directories: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	provider := identity.NewProvider(cfg.StateDir)
	opts := api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout(),
	}

	app := &App{
		manager:  manager,
		logger:   logger,
		renderer: display.NewRenderer(nil),
		identity: provider,
		analysis: api.NewAnalysisClient(opts, provider),
		payment:  api.NewPaymentClient(opts, provider),
		session:  store.New(),
	}

	// The local cache is best effort; the CLI works without it.
	hist, err := history.NewStore(cfg.InsightDBPath())
	if err != nil {
		logger.Warn("local insight cache unavailable", zap.Error(err))
	} else {
		app.history = hist
	}

	return app, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zcfg.Build()
}

func (a *App) cfg() config.Config {
	return a.manager.Get()
}

// Close releases the local cache and flushes logs.
func (a *App) Close() {
	if a.history != nil {
		_ = a.history.Close()
	}
	_ = a.logger.Sync()
}

func (a *App) recorder() checkout.Recorder {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *App) variant() checkout.Variant {
	if a.cfg().PaymentVariant == config.VariantInline {
		return checkout.VariantInline
	}
	return checkout.VariantHosted
}

// lazyResumer breaks the construction cycle between the callback server,
// which needs a resumer, and the orchestrator, which needs the server's
// return URL.
type lazyResumer struct {
	mu   sync.Mutex
	orch *checkout.Orchestrator
}

func (l *lazyResumer) set(o *checkout.Orchestrator) {
	l.mu.Lock()
	l.orch = o
	l.mu.Unlock()
}

func (l *lazyResumer) Resume(ctx context.Context, params checkout.ResumeParams) (*checkout.Outcome, error) {
	l.mu.Lock()
	orch := l.orch
	l.mu.Unlock()
	if orch == nil {
		return nil, errors.New("checkout flow is not ready")
	}
	return orch.Resume(ctx, params)
}

// announcingNavigator tells the user which URL opened before delegating to
// the real browser launch.
type announcingNavigator struct {
	renderer *display.Renderer
	inner    checkout.Navigator
}

func (n announcingNavigator) OpenCheckout(url string) error {
	n.renderer.CheckoutHandoff(url)
	return n.inner.OpenCheckout(url)
}

// Analyze runs the full purchase-then-analyze flow for one stock and renders
// the resulting report.
func (a *App) Analyze(ctx context.Context, stockQuery string, timeframe models.Timeframe) error {
	if a.variant() == checkout.VariantInline {
		return a.analyzeInline(ctx, stockQuery, timeframe)
	}
	return a.analyzeHosted(ctx, stockQuery, timeframe)
}

func (a *App) analyzeHosted(ctx context.Context, stockQuery string, timeframe models.Timeframe) error {
	lazy := &lazyResumer{}
	server := callback.NewServer(a.cfg().CallbackAddr, lazy, a.logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start payment return listener: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	orch := checkout.New(checkout.Options{
		Variant:   checkout.VariantHosted,
		ReturnURL: server.ReturnURL(),
		CancelURL: server.CancelURL(),
		Store:     a.session,
		Analysis:  a.analysis,
		Payment:   a.payment,
		Navigator: announcingNavigator{renderer: a.renderer, inner: checkout.BrowserNavigator{}},
		Recorder:  a.recorder(),
		Logger:    a.logger,
	})
	lazy.set(orch)

	outcome, err := orch.Submit(ctx, stockQuery, timeframe)
	if err != nil {
		return err
	}
	if !outcome.AwaitingRedirect {
		return a.renderOutcome(outcome)
	}

	// The user is in the browser now; the gateway redirects back to the
	// local listener, which resumes the flow and delivers the result here.
	select {
	case res := <-server.Results():
		if res.Cancelled {
			return errors.New("payment cancelled")
		}
		if res.Err != nil {
			return res.Err
		}
		return a.renderOutcome(res.Outcome)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) analyzeInline(ctx context.Context, stockQuery string, timeframe models.Timeframe) error {
	orch := checkout.New(checkout.Options{
		Variant:  checkout.VariantInline,
		Store:    a.session,
		Analysis: a.analysis,
		Payment:  a.payment,
		Recorder: a.recorder(),
		Logger:   a.logger,
	})
	orch.Prewarm(ctx)

	outcome, err := orch.Submit(ctx, stockQuery, timeframe)
	if err != nil {
		return err
	}
	return a.renderOutcome(outcome)
}

func (a *App) renderOutcome(outcome *checkout.Outcome) error {
	if outcome == nil || outcome.Insight == nil {
		return errors.New("analysis produced no result")
	}
	if outcome.Direct {
		a.renderer.Info("Payment is not configured on the server; the analysis ran without charge.")
	}
	a.renderer.Insight(outcome.Insight)
	return nil
}
