// Package callback hosts the local payment-return endpoint the hosted
// checkout redirects back to. It is the detached half of the checkout state
// machine: the gateway sends the user's browser here with the checkout id
// and the original form inputs in the query string, resumption is invoked,
// and the parameters are stripped from the visible URL by an immediate
// redirect so a manual refresh cannot replay the flow.
package callback

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/insightlab/stockinsight/internal/checkout"
	"github.com/insightlab/stockinsight/internal/models"
)

// Resumer re-enters the checkout flow from return-page parameters.
type Resumer interface {
	Resume(ctx context.Context, params checkout.ResumeParams) (*checkout.Outcome, error)
}

// Result is delivered to the waiting CLI once a return has been processed.
type Result struct {
	Outcome   *checkout.Outcome
	Err       error
	Cancelled bool
}

// Server is the localhost HTTP listener registered as the checkout's
// success/cancel destination.
type Server struct {
	resumer Resumer
	logger  *zap.Logger
	// resumeTimeout bounds verification plus analysis for one return.
	resumeTimeout time.Duration

	results chan Result
	srv     *http.Server
	ln      net.Listener
}

// NewServer creates a server bound to addr (host:port on loopback).
func NewServer(addr string, resumer Resumer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resumer:       resumer,
		logger:        logger,
		resumeTimeout: 5 * time.Minute,
		results:       make(chan Result, 1),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/payment/complete", s.handleComplete).Methods(http.MethodGet)
	r.HandleFunc("/payment/complete/done", s.handleDone).Methods(http.MethodGet)
	r.HandleFunc("/payment/cancel", s.handleCancel).Methods(http.MethodGet)
	return r
}

// Start begins listening. Serve errors other than graceful shutdown are
// logged, not fatal: payment resumption degrades, the CLI stays usable.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("payment return server stopped", zap.Error(err))
		}
	}()
	return nil
}

// BaseURL returns the externally visible base of this server.
func (s *Server) BaseURL() string {
	addr := s.srv.Addr
	if s.ln != nil {
		addr = s.ln.Addr().String()
	}
	return "http://" + addr
}

// ReturnURL is the success destination to hand to checkout preparation.
func (s *Server) ReturnURL() string {
	return s.BaseURL() + "/payment/complete"
}

// CancelURL is the cancel destination to hand to checkout preparation.
func (s *Server) CancelURL() string {
	return s.BaseURL() + "/payment/cancel"
}

// Results delivers one Result per processed return.
func (s *Server) Results() <-chan Result {
	return s.results
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := checkout.ResumeParams{
		CheckoutID: q.Get("checkout_id"),
		StockQuery: q.Get("stock_code"),
		Timeframe:  models.Timeframe(q.Get("timeframe")),
	}

	if !params.Complete() {
		s.logger.Warn("payment return with incomplete parameters",
			zap.String("query", r.URL.RawQuery))
		s.deliver(Result{Err: errors.New("payment return parameters are incomplete")})
		http.Error(w, "invalid payment return", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.resumeTimeout)
	defer cancel()

	outcome, err := s.resumer.Resume(ctx, params)
	s.deliver(Result{Outcome: outcome, Err: err})

	// Strip the checkout parameters from the visible URL whether resumption
	// succeeded or not; refreshing the done page must not re-submit.
	http.Redirect(w, r, "/payment/complete/done", http.StatusSeeOther)
}

func (s *Server) handleDone(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!doctype html>
<html><head><title>stockinsight</title></head>
<body><h3>Payment processed.</h3>
<p>You can close this tab and return to the terminal.</p></body></html>
`))
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.deliver(Result{Cancelled: true, Err: errors.New("payment cancelled")})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!doctype html>
<html><head><title>stockinsight</title></head>
<body><h3>Payment cancelled.</h3>
<p>You can close this tab and return to the terminal.</p></body></html>
`))
}

// deliver pushes a result without ever blocking the HTTP handler. If nobody
// is waiting anymore the result is dropped.
func (s *Server) deliver(res Result) {
	select {
	case s.results <- res:
	default:
		s.logger.Debug("dropping unclaimed payment result")
	}
}
