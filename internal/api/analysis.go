package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/insightlab/stockinsight/internal/models"
)

// AnalysisClient talks to the AI analysis backend. It never retries; retry
// decisions belong to the user resubmitting.
type AnalysisClient struct {
	client   *resty.Client
	identity TokenSource
}

// NewAnalysisClient creates an analysis API client.
func NewAnalysisClient(opts Options, identity TokenSource) *AnalysisClient {
	return &AnalysisClient{
		client:   newHTTPClient(opts),
		identity: identity,
	}
}

type analyzeRequest struct {
	StockCode  string           `json:"stock_code"`
	Timeframe  models.Timeframe `json:"timeframe"`
	CheckoutID string           `json:"checkout_id,omitempty"`
}

// AnalyzeStock triggers a new deep-research analysis. paymentProof is the
// verified checkout/merchant id, or empty for the unpaid fallback path.
// Non-empty query is the caller's precondition, not enforced here.
func (ac *AnalysisClient) AnalyzeStock(ctx context.Context, stockQuery string, timeframe models.Timeframe, paymentProof string) (*models.AnalysisTrigger, error) {
	body := analyzeRequest{
		StockCode:  stockQuery,
		Timeframe:  timeframe,
		CheckoutID: paymentProof,
	}

	resp, err := authRequest(ac.client, ac.identity).
		SetContext(ctx).
		SetBody(body).
		Post("/api/analysis/stock")
	if err != nil {
		return nil, networkError("analysis request failed", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp, "analysis request failed")
	}

	var trigger models.AnalysisTrigger
	if err := json.Unmarshal(resp.Body(), &trigger); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	return &trigger, nil
}

// GetAnalysisByID fetches the full insight for a completed analysis.
func (ac *AnalysisClient) GetAnalysisByID(ctx context.Context, id int64) (*models.Insight, error) {
	resp, err := authRequest(ac.client, ac.identity).
		SetContext(ctx).
		Get("/api/analysis/" + strconv.FormatInt(id, 10))
	if err != nil {
		return nil, networkError("failed to fetch analysis", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp, "failed to fetch analysis")
	}

	var insight models.Insight
	if err := json.Unmarshal(resp.Body(), &insight); err != nil {
		return nil, fmt.Errorf("parse insight: %w", err)
	}
	return &insight, nil
}

// GetLatestAnalysis fetches the most recent insight for a stock code.
func (ac *AnalysisClient) GetLatestAnalysis(ctx context.Context, stockCode string) (*models.Insight, error) {
	resp, err := authRequest(ac.client, ac.identity).
		SetContext(ctx).
		SetQueryParam("stock_code", stockCode).
		Get("/api/analysis/latest")
	if err != nil {
		return nil, networkError("failed to fetch analysis", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp, "failed to fetch analysis")
	}

	var insight models.Insight
	if err := json.Unmarshal(resp.Body(), &insight); err != nil {
		return nil, fmt.Errorf("parse insight: %w", err)
	}
	return &insight, nil
}

// HistoryQuery narrows an analysis-history page. Zero values are omitted.
type HistoryQuery struct {
	StockCode string
	Limit     int
	Skip      int
}

// GetAnalysisHistory fetches one page of past analyses.
func (ac *AnalysisClient) GetAnalysisHistory(ctx context.Context, q HistoryQuery) (*models.InsightList, error) {
	req := authRequest(ac.client, ac.identity).SetContext(ctx)
	if q.StockCode != "" {
		req.SetQueryParam("stock_code", q.StockCode)
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		req.SetQueryParam("skip", strconv.Itoa(q.Skip))
	}

	resp, err := req.Get("/api/analysis/history")
	if err != nil {
		return nil, networkError("failed to fetch analysis history", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp, "failed to fetch analysis history")
	}

	var list models.InsightList
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return &list, nil
}

type searchResponse struct {
	Results []models.StockMatch `json:"results"`
}

// SearchStock looks up symbols matching query for autocomplete. Public
// lookup: no identity header is attached. Debouncing and empty-query
// short-circuiting are the caller's responsibility.
func (ac *AnalysisClient) SearchStock(ctx context.Context, query string) ([]models.StockMatch, error) {
	resp, err := ac.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		Get("/api/analysis/search/stock")
	if err != nil {
		return nil, networkError("stock search failed", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp, "stock search failed")
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	return parsed.Results, nil
}
