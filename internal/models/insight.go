package models

// Timeframe is the investment horizon an analysis is scoped to.
type Timeframe string

const (
	TimeframeShort Timeframe = "short"
	TimeframeMid   Timeframe = "mid"
	TimeframeLong  Timeframe = "long"
)

// Valid reports whether the timeframe is one of the supported horizons.
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeShort, TimeframeMid, TimeframeLong:
		return true
	}
	return false
}

// Recommendation is the 5-point trading call produced by the analysis backend.
type Recommendation string

const (
	StrongBuy  Recommendation = "strong_buy"
	Buy        Recommendation = "buy"
	Hold       Recommendation = "hold"
	Sell       Recommendation = "sell"
	StrongSell Recommendation = "strong_sell"
)

// Confidence is the backend's self-reported confidence in a recommendation.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Sentiment is the aggregate market mood attached to an insight.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentNeutral Sentiment = "neutral"
	SentimentBearish Sentiment = "bearish"
)

// RiskAnalysis breaks the risk score down by category.
type RiskAnalysis struct {
	Volatility      string `json:"volatility,omitempty"`
	CompanySpecific string `json:"company_specific,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Macro           string `json:"macro,omitempty"`
	Liquidity       string `json:"liquidity,omitempty"`
	Regulatory      string `json:"regulatory,omitempty"`
}

// MarketOverview captures the price and volume context at analysis time.
type MarketOverview struct {
	CurrentPrice        float64 `json:"current_price,omitempty"`
	PriceMovement       string  `json:"price_movement,omitempty"`
	VolumeTrend         string  `json:"volume_trend,omitempty"`
	SupportResistance   string  `json:"support_resistance,omitempty"`
	RelativePerformance string  `json:"relative_performance,omitempty"`
}

// SentimentDetails breaks market sentiment down by signal source.
type SentimentDetails struct {
	Overall         string `json:"overall,omitempty"`
	SocialMedia     string `json:"social_media,omitempty"`
	OptionsActivity string `json:"options_activity,omitempty"`
	InsiderTrading  string `json:"insider_trading,omitempty"`
	Institutional   string `json:"institutional,omitempty"`
	ShortInterest   string `json:"short_interest,omitempty"`
}

// CurrentDrivers lists what is moving the stock right now.
type CurrentDrivers struct {
	NewsBased   string `json:"news_based,omitempty"`
	Technical   string `json:"technical,omitempty"`
	Fundamental string `json:"fundamental,omitempty"`
}

// FutureCatalysts lists expected catalysts per horizon.
type FutureCatalysts struct {
	ShortTerm string `json:"short_term,omitempty"`
	MidTerm   string `json:"mid_term,omitempty"`
	LongTerm  string `json:"long_term,omitempty"`
}

// Insight is the full deep-research report for one stock and timeframe.
// Immutable once fetched; a newer analysis supersedes rather than mutates it.
type Insight struct {
	ID        int64     `json:"id"`
	StockCode string    `json:"stock_code"`
	StockName string    `json:"stock_name"`
	Market    string    `json:"market"`
	Timeframe Timeframe `json:"timeframe"`
	CreatedAt string    `json:"created_at"`

	DeepResearch string `json:"deep_research"`

	Recommendation       Recommendation `json:"recommendation"`
	ConfidenceLevel      Confidence     `json:"confidence_level"`
	RecommendationReason string         `json:"recommendation_reason,omitempty"`

	RiskScore    int           `json:"risk_score"`
	RiskAnalysis *RiskAnalysis `json:"risk_analysis,omitempty"`

	CurrentPrice   float64         `json:"current_price,omitempty"`
	PriceChange1D  float64         `json:"price_change_1d,omitempty"`
	PriceChange1W  float64         `json:"price_change_1w,omitempty"`
	PriceChange1M  float64         `json:"price_change_1m,omitempty"`
	MarketOverview *MarketOverview `json:"market_overview,omitempty"`

	MarketSentiment  Sentiment         `json:"market_sentiment,omitempty"`
	SentimentDetails *SentimentDetails `json:"sentiment_details,omitempty"`

	KeySummary     []string        `json:"key_summary,omitempty"`
	CurrentDrivers *CurrentDrivers `json:"current_drivers,omitempty"`

	FutureCatalysts *FutureCatalysts `json:"future_catalysts,omitempty"`

	AIModel          string `json:"ai_model,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
}

// InsightSummary is the list-view projection of an insight.
type InsightSummary struct {
	ID             int64          `json:"id"`
	StockCode      string         `json:"stock_code"`
	StockName      string         `json:"stock_name"`
	Market         string         `json:"market"`
	Timeframe      Timeframe      `json:"timeframe"`
	Recommendation Recommendation `json:"recommendation"`
	RiskScore      int            `json:"risk_score"`
	CurrentPrice   float64        `json:"current_price,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// InsightList is one page of analysis history.
type InsightList struct {
	Total int              `json:"total"`
	Items []InsightSummary `json:"items"`
}

// AnalysisTrigger is the backend's acknowledgement of a new analysis run.
type AnalysisTrigger struct {
	Message        string `json:"message"`
	InsightID      int64  `json:"insight_id"`
	StockCode      string `json:"stock_code"`
	StockName      string `json:"stock_name"`
	Recommendation string `json:"recommendation"`
}

// StockMatch is one symbol-search autocomplete hit.
type StockMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market string `json:"market"`
}
